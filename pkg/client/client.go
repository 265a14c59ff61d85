/**
 * Copyright (c) 2025, Hoposhell Project.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package client is the Client driver (spec.md §4.7): it builds one RPC
// request, sends it chunked over a fresh transport connection, collects
// the chunked response, and decompresses the result.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/hoposhell/agent/pkg/transport"
	"github.com/hoposhell/agent/pkg/wire"
)

const protocolVersion = "1"

// ErrTimeout is returned by Invoke when no terminating frame arrives
// within the configured command timeout.
type ErrTimeout struct{ MessageID string }

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("client: timed out waiting for response to %s", e.MessageID)
}

// ErrRemote wraps the {"error": "..."} body the router returns on a
// non-Ok status.
type ErrRemote struct {
	Status  wire.Status
	Message string
}

func (e *ErrRemote) Error() string { return fmt.Sprintf("remote error (%d): %s", e.Status, e.Message) }

// NewMessageID builds a message id of the shape
// "<clientShellID>:<random_alnum_8>" (spec.md §3), deriving the random
// suffix from the last 8 characters of a freshly minted xid — xid already
// produces a lowercase base-32 identifier, so no further alphabet
// filtering is needed.
func NewMessageID(clientShellID string) string {
	id := xid.New().String()
	return clientShellID + ":" + id[len(id)-8:]
}

// Invoke builds a request for cmd/target/payload, sends it over dialer,
// and waits up to timeout for the reassembled, decompressed response.
func Invoke(log logrus.FieldLogger, dialer transport.Dialer, clientShellID, cmd, target string, payload []byte, timeout time.Duration) ([]byte, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	dialer.HeaderBody = "v" + protocolVersion + "/command"

	conn, err := dialer.Dial(0)
	if err != nil {
		return nil, fmt.Errorf("client: connecting: %w", err)
	}
	defer conn.Close()

	messageID := NewMessageID(clientShellID)
	for _, chunk := range wire.ChunkRequest(cmd, messageID, target, payload) {
		if err := conn.WriteFrame(wire.Control, wire.EncodeRequestChunk(chunk)); err != nil {
			return nil, fmt.Errorf("client: sending request chunk: %w", err)
		}
	}

	reasm := wire.NewReassembler()
	readBuf := make([]byte, 32*1024)
	deadline := time.Now().Add(timeout)

	for {
		if time.Now().After(deadline) {
			return nil, &ErrTimeout{MessageID: messageID}
		}
		frames, err := conn.ReadFrames(readBuf)
		if err != nil {
			return nil, fmt.Errorf("client: reading response: %w", err)
		}
		for _, f := range frames {
			if f.Kind != wire.Control {
				continue
			}
			_, respChunk, ok := wire.DecodeChunk(f.Body)
			if !ok || respChunk == nil || respChunk.MessageID != messageID {
				continue // stray frame for another in-flight message; ignore per spec.md §4.7
			}
			resp := reasm.FeedResponse(*respChunk)
			if resp == nil {
				continue
			}
			return finalize(resp)
		}
	}
}

func finalize(resp *wire.Response) ([]byte, error) {
	if resp.Status != wire.Ok {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(resp.Payload, &body); err != nil {
			return nil, &ErrRemote{Status: resp.Status, Message: string(resp.Payload)}
		}
		return nil, &ErrRemote{Status: resp.Status, Message: body.Error}
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("client: creating zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(resp.Payload, nil)
	if err != nil {
		return nil, fmt.Errorf("client: decompressing response: %w", err)
	}
	return out, nil
}
