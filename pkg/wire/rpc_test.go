package wire

import (
	"bytes"
	"testing"
)

func TestChunkRequestSizingAndLast(t *testing.T) {
	cases := []struct {
		name       string
		payloadLen int
		wantChunks int
	}{
		{"empty", 0, 1},
		{"one byte", 1, 1},
		{"exact boundary", ChunkPayloadSize, 1},
		{"one over boundary", ChunkPayloadSize + 1, 2},
		{"three chunks", ChunkPayloadSize*2 + 1, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := bytes.Repeat([]byte{'x'}, tc.payloadLen)
			chunks := ChunkRequest("ls", "abc:12345678", "shell:x", payload)
			if len(chunks) != tc.wantChunks {
				t.Fatalf("got %d chunks, want %d", len(chunks), tc.wantChunks)
			}
			lastCount := 0
			var reassembled []byte
			for i, c := range chunks {
				reassembled = append(reassembled, c.Payload...)
				if c.ChunkType == Last {
					lastCount++
					if i != len(chunks)-1 {
						t.Errorf("Last chunk at index %d, want last index %d", i, len(chunks)-1)
					}
				}
			}
			if lastCount != 1 {
				t.Errorf("got %d Last chunks, want exactly 1", lastCount)
			}
			if !bytes.Equal(reassembled, payload) {
				t.Errorf("reassembled payload mismatch: got %d bytes, want %d", len(reassembled), len(payload))
			}
		})
	}
}

func TestRequestChunkEncodeDecodeRoundTrip(t *testing.T) {
	c := RequestChunk{
		Cmd:       "download",
		MessageID: "shell1:abcd1234",
		Target:    "shell:abc",
		ChunkType: NotLast,
		Payload:   []byte("some/path/with/slashes"),
	}
	encoded := EncodeRequestChunk(c)
	req, resp, ok := DecodeChunk(encoded)
	if !ok || resp != nil || req == nil {
		t.Fatalf("decode failed: ok=%v req=%v resp=%v", ok, req, resp)
	}
	if req.Cmd != c.Cmd || req.MessageID != c.MessageID || req.Target != c.Target || req.ChunkType != c.ChunkType || !bytes.Equal(req.Payload, c.Payload) {
		t.Errorf("got %+v, want %+v", *req, c)
	}
}

func TestResponseChunkEncodeDecodeRoundTrip(t *testing.T) {
	c := ResponseChunk{
		Cmd:       "ls",
		MessageID: "shell1:abcd1234",
		Status:    BadRequest,
		ChunkType: Last,
		Payload:   []byte(`{"error":"no such file"}`),
	}
	encoded := EncodeResponseChunk(c)
	req, resp, ok := DecodeChunk(encoded)
	if !ok || req != nil || resp == nil {
		t.Fatalf("decode failed: ok=%v req=%v resp=%v", ok, req, resp)
	}
	if resp.Cmd != c.Cmd || resp.MessageID != c.MessageID || resp.Status != c.Status || resp.ChunkType != c.ChunkType || !bytes.Equal(resp.Payload, c.Payload) {
		t.Errorf("got %+v, want %+v", *resp, c)
	}
}

func TestDecodeChunkMissingFieldDiscarded(t *testing.T) {
	_, _, ok := DecodeChunk([]byte("ls/req/onlyid"))
	if ok {
		t.Fatal("expected discard for missing fields")
	}
}

func TestDecodeChunkUnknownDirectionDiscarded(t *testing.T) {
	_, _, ok := DecodeChunk([]byte("ls/other/id/target/last/payload"))
	if ok {
		t.Fatal("expected discard for unknown direction")
	}
}

func TestDecodeChunkPayloadMayContainSeparator(t *testing.T) {
	req, _, ok := DecodeChunk([]byte("download/req/id1/shell:abc/last/a/b/c"))
	if !ok || req == nil {
		t.Fatalf("decode failed: ok=%v req=%v", ok, req)
	}
	if string(req.Payload) != "a/b/c" {
		t.Errorf("payload = %q, want %q", req.Payload, "a/b/c")
	}
}
