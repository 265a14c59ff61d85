/**
 * Copyright (c) 2025, Hoposhell Project.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package wire implements the on-wire framing used by the hoposhell Agent
// and Client: the outer stream envelope (Frame) and the inner chunked RPC
// envelope (Request/Response) carried inside Control frames.
package wire

import (
	"encoding/base64"
	"strings"

	"github.com/sirupsen/logrus"
)

// Kind discriminates the three payload types that travel inside a Frame.
type Kind int

const (
	// Stdout carries raw bytes produced by the PTY.
	Stdout Kind = iota
	// Header carries the protocol version line sent once per connection.
	Header
	// Control carries RPC chunks, resize notifications, and restart requests.
	Control
)

const (
	trailer      = "---\n"
	kindStdout   = "ooo"
	kindHeader   = "hhh"
	kindControl  = "ccc"
	kindTagWidth = 3
)

func (k Kind) tag() string {
	switch k {
	case Stdout:
		return kindStdout
	case Header:
		return kindHeader
	case Control:
		return kindControl
	default:
		return ""
	}
}

func kindFromTag(tag string) (Kind, bool) {
	switch tag {
	case kindStdout:
		return Stdout, true
	case kindHeader:
		return Header, true
	case kindControl:
		return Control, true
	default:
		return 0, false
	}
}

// Frame is one outer-codec record.
type Frame struct {
	Kind Kind
	Body []byte
}

// Encode renders a Frame as it appears on the wire:
// base64(body) + "-" + kind + "---\n". Base64 never contains "---", so the
// trailer is unambiguous and no escaping of Body is required.
func Encode(kind Kind, body []byte) []byte {
	var b strings.Builder
	b.WriteString(base64.StdEncoding.EncodeToString(body))
	b.WriteByte('-')
	b.WriteString(kind.tag())
	b.WriteString(trailer)
	return []byte(b.String())
}

// EncodeKeepalive renders a bare keepalive frame: the trailer with no body.
func EncodeKeepalive() []byte {
	return []byte(trailer)
}

// Decoder accumulates bytes read off a connection and splits them into
// Frames on the "---\n" trailer. It is not safe for concurrent use; each
// connection owns exactly one Decoder.
type Decoder struct {
	log logrus.FieldLogger
	buf strings.Builder
}

// NewDecoder returns a Decoder that logs dropped/malformed candidates
// through log. A nil log falls back to logrus.StandardLogger().
func NewDecoder(log logrus.FieldLogger) *Decoder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Decoder{log: log}
}

// Feed appends newly read bytes and returns every complete Frame found.
// Keepalive frames (an empty-bodied candidate) are consumed but never
// surfaced. A malformed candidate (no recognized kind tag) is logged and
// dropped; it cannot be retained for a later attempt because the split
// already consumed it.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf.Write(chunk)
	pending := d.buf.String()
	parts := strings.Split(pending, trailer)
	if len(parts) == 1 {
		// No trailer seen yet; keep accumulating.
		d.buf.Reset()
		d.buf.WriteString(parts[0])
		return nil
	}

	// The last element is a partial frame (possibly empty); retain it.
	complete, rest := parts[:len(parts)-1], parts[len(parts)-1]
	d.buf.Reset()
	d.buf.WriteString(rest)

	var frames []Frame
	for _, candidate := range complete {
		if candidate == "" {
			// Bare "---\n": keepalive, not surfaced.
			continue
		}
		frame, ok := decodeCandidate(candidate)
		if !ok {
			d.log.WithField("candidate", candidate).Warn("wire: dropping frame with unrecognized kind tag")
			continue
		}
		frames = append(frames, frame)
	}
	return frames
}

func decodeCandidate(candidate string) (Frame, bool) {
	if len(candidate) < kindTagWidth+1 {
		return Frame{}, false
	}
	tagStart := len(candidate) - kindTagWidth
	tag := candidate[tagStart:]
	kind, ok := kindFromTag(tag)
	if !ok {
		return Frame{}, false
	}
	encoded := candidate[:tagStart-1] // drop the "-" separator before the tag
	body, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Frame{}, false
	}
	return Frame{Kind: kind, Body: body}, true
}
