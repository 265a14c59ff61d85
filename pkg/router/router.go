/**
 * Copyright (c) 2025, Hoposhell Project.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package router is the command router (spec.md §4.4): it dispatches a
// reassembled Request to one of the cmd handlers and compresses the
// resulting payload at level 4 zstd, or returns the plain-JSON error body
// the protocol requires on failure.
package router

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/hoposhell/agent/pkg/wire"
)

// Handler executes one RPC cmd against its raw request payload and
// returns the raw (uncompressed) success payload, or an error describing
// why the request is a BadRequest.
type Handler func(log logrus.FieldLogger, folder string, payload []byte) ([]byte, error)

// Router dispatches by cmd name to a fixed handler table.
type Router struct {
	log      logrus.FieldLogger
	folder   string
	handlers map[string]Handler
	encoder  *zstd.Encoder
}

// New builds the dispatch table described in spec.md §4.4: ls, glob,
// download, http, tcp, scripts. folder is the hoposhell home directory
// (scripts/ and bin/ live under it).
func New(log logrus.FieldLogger, folder string) (*Router, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(4)))
	if err != nil {
		return nil, fmt.Errorf("router: creating zstd encoder: %w", err)
	}
	return &Router{
		log:     log,
		folder:  folder,
		encoder: enc,
		handlers: map[string]Handler{
			"ls":       HandleLs,
			"glob":     HandleGlob,
			"download": HandleDownload,
			"http":     HandleHTTP,
			"tcp":      HandleTCP,
			"scripts":  HandleScripts,
		},
	}, nil
}

// Dispatch executes req and produces a fully formed Response, applying
// the compression/status contract of spec.md §4.4: Ok payloads are
// zstd-compressed, error payloads are plain JSON, and a compression
// failure on an otherwise-successful handler downgrades to
// InternalError with an empty payload.
func (r *Router) Dispatch(req wire.Request) wire.Response {
	handler, known := r.handlers[req.Cmd]
	if !known {
		return r.errorResponse(req, fmt.Errorf("unknown cmd %q", req.Cmd))
	}

	out, err := handler(r.log, r.folder, req.Payload)
	if err != nil {
		return r.errorResponse(req, err)
	}

	compressed, err := r.compress(out)
	if err != nil {
		r.log.WithError(err).Error("router: compression failed")
		return wire.Response{
			Cmd:       req.Cmd,
			MessageID: req.MessageID,
			Status:    wire.InternalError,
			Payload:   nil,
		}
	}

	return wire.Response{
		Cmd:       req.Cmd,
		MessageID: req.MessageID,
		Status:    wire.Ok,
		Payload:   compressed,
	}
}

func (r *Router) compress(p []byte) ([]byte, error) {
	return r.encoder.EncodeAll(p, make([]byte, 0, len(p))), nil
}

func (r *Router) errorResponse(req wire.Request, cause error) wire.Response {
	body, _ := json.Marshal(errorBody{Error: cause.Error()})
	return wire.Response{
		Cmd:       req.Cmd,
		MessageID: req.MessageID,
		Status:    wire.BadRequest,
		Payload:   body,
	}
}

type errorBody struct {
	Error string `json:"error"`
}
