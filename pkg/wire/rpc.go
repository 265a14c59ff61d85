package wire

import (
	"fmt"
	"strings"
)

// ChunkPayloadSize is the maximum payload carried by a single chunk
// (COMMAND_PAYLOAD_SIZE in the protocol description).
const ChunkPayloadSize = 10 * 1024

// ChunkType discriminates the last chunk of a logical message from the rest.
type ChunkType int

const (
	NotLast ChunkType = iota
	Last
)

func (c ChunkType) String() string {
	if c == Last {
		return "last"
	}
	return "not-last"
}

func parseChunkType(s string) (ChunkType, bool) {
	switch s {
	case "last":
		return Last, true
	case "not-last":
		return NotLast, true
	default:
		return 0, false
	}
}

// Status is the inner-protocol response status code.
type Status int

const (
	Ok           Status = 200
	BadRequest   Status = 400
	InternalError Status = 500
)

func parseStatus(s string) (Status, bool) {
	switch s {
	case "200":
		return Ok, true
	case "400":
		return BadRequest, true
	case "500":
		return InternalError, true
	default:
		return 0, false
	}
}

// RequestChunk is one wire-level slice of a chunked Request:
// cmd/req/message_id/target/chunk_type/payload
type RequestChunk struct {
	Cmd       string
	MessageID string
	Target    string
	ChunkType ChunkType
	Payload   []byte
}

// ResponseChunk is one wire-level slice of a chunked Response:
// cmd/res/message_id/status_code/chunk_type/payload
type ResponseChunk struct {
	Cmd       string
	MessageID string
	Status    Status
	ChunkType ChunkType
	Payload   []byte
}

const fieldSep = "/"

// EncodeRequestChunk renders a RequestChunk as the six-field inner frame.
func EncodeRequestChunk(c RequestChunk) []byte {
	return encodeSix(c.Cmd, "req", c.MessageID, c.Target, c.ChunkType.String(), c.Payload)
}

// EncodeResponseChunk renders a ResponseChunk as the six-field inner frame.
func EncodeResponseChunk(c ResponseChunk) []byte {
	status := fmt.Sprintf("%d", c.Status)
	return encodeSix(c.Cmd, "res", c.MessageID, status, c.ChunkType.String(), c.Payload)
}

func encodeSix(cmd, dir, id, third, chunkType string, payload []byte) []byte {
	var b strings.Builder
	b.WriteString(cmd)
	b.WriteString(fieldSep)
	b.WriteString(dir)
	b.WriteString(fieldSep)
	b.WriteString(id)
	b.WriteString(fieldSep)
	b.WriteString(third)
	b.WriteString(fieldSep)
	b.WriteString(chunkType)
	b.WriteString(fieldSep)
	b.Write(payload)
	return []byte(b.String())
}

// splitSix splits body into exactly six fields, left to right, with the
// sixth taking the raw remainder (which may itself contain the separator).
func splitSix(body []byte) ([6]string, bool) {
	var fields [6]string
	rest := string(body)
	for i := 0; i < 5; i++ {
		idx := strings.IndexByte(rest, fieldSep[0])
		if idx < 0 {
			return fields, false
		}
		fields[i] = rest[:idx]
		rest = rest[idx+1:]
	}
	fields[5] = rest
	return fields, true
}

// DecodeChunk parses a Control-frame body into either a RequestChunk or a
// ResponseChunk, distinguished by the second field ("req" or "res"). A
// missing or unparsable field yields ok=false; the caller must discard the
// frame without dropping the connection.
func DecodeChunk(body []byte) (req *RequestChunk, resp *ResponseChunk, ok bool) {
	fields, ok := splitSix(body)
	if !ok {
		return nil, nil, false
	}
	cmd, dir, id, third, chunkTypeStr, payload := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]
	if cmd == "" || id == "" {
		return nil, nil, false
	}
	chunkType, ok := parseChunkType(chunkTypeStr)
	if !ok {
		return nil, nil, false
	}
	switch dir {
	case "req":
		return &RequestChunk{
			Cmd:       cmd,
			MessageID: id,
			Target:    third,
			ChunkType: chunkType,
			Payload:   []byte(payload),
		}, nil, true
	case "res":
		status, ok := parseStatus(third)
		if !ok {
			return nil, nil, false
		}
		return nil, &ResponseChunk{
			Cmd:       cmd,
			MessageID: id,
			Status:    status,
			ChunkType: chunkType,
			Payload:   []byte(payload),
		}, true
	default:
		return nil, nil, false
	}
}

// ChunkRequest splits payload into ceil(len/ChunkPayloadSize) chunks (at
// least one), marking only the last as Last.
func ChunkRequest(cmd, messageID, target string, payload []byte) []RequestChunk {
	n := numChunks(len(payload))
	chunks := make([]RequestChunk, n)
	for i := 0; i < n; i++ {
		start, end := i*ChunkPayloadSize, min((i+1)*ChunkPayloadSize, len(payload))
		ct := NotLast
		if i == n-1 {
			ct = Last
		}
		chunks[i] = RequestChunk{
			Cmd:       cmd,
			MessageID: messageID,
			Target:    target,
			ChunkType: ct,
			Payload:   payload[start:end],
		}
	}
	return chunks
}

// ChunkResponse splits payload the same way ChunkRequest does, for the
// response direction.
func ChunkResponse(cmd, messageID string, status Status, payload []byte) []ResponseChunk {
	n := numChunks(len(payload))
	chunks := make([]ResponseChunk, n)
	for i := 0; i < n; i++ {
		start, end := i*ChunkPayloadSize, min((i+1)*ChunkPayloadSize, len(payload))
		ct := NotLast
		if i == n-1 {
			ct = Last
		}
		chunks[i] = ResponseChunk{
			Cmd:       cmd,
			MessageID: messageID,
			Status:    status,
			ChunkType: ct,
			Payload:   payload[start:end],
		}
	}
	return chunks
}

func numChunks(payloadLen int) int {
	if payloadLen == 0 {
		return 1
	}
	return (payloadLen + ChunkPayloadSize - 1) / ChunkPayloadSize
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
