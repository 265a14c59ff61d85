package wire

import (
	"bytes"
	"testing"
)

func TestReassemblerSingleChunkMessage(t *testing.T) {
	r := NewReassembler()
	req := r.FeedRequest(RequestChunk{
		Cmd: "ls", MessageID: "m1", Target: "shell:x", ChunkType: Last, Payload: []byte("/tmp"),
	})
	if req == nil {
		t.Fatal("expected immediate request on single Last chunk")
	}
	if req.Cmd != "ls" || req.Target != "shell:x" || string(req.Payload) != "/tmp" {
		t.Errorf("unexpected request: %+v", req)
	}
	if r.PendingRequests() != 0 {
		t.Errorf("table should have no entry for a single-chunk message, got %d", r.PendingRequests())
	}
}

func TestReassemblerMultiChunkMessage(t *testing.T) {
	r := NewReassembler()
	chunks := ChunkRequest("download", "m2", "shell:x", bytes.Repeat([]byte("y"), ChunkPayloadSize*2+500))

	var req *Request
	for i, c := range chunks {
		got := r.FeedRequest(c)
		if i < len(chunks)-1 {
			if got != nil {
				t.Fatalf("got early request at chunk %d", i)
			}
			if r.PendingRequests() != 1 {
				t.Errorf("expected 1 pending request mid-stream, got %d", r.PendingRequests())
			}
		} else {
			req = got
		}
	}
	if req == nil {
		t.Fatal("expected request on final Last chunk")
	}
	if len(req.Payload) != ChunkPayloadSize*2+500 {
		t.Errorf("payload length = %d, want %d", len(req.Payload), ChunkPayloadSize*2+500)
	}
	if r.PendingRequests() != 0 {
		t.Errorf("entry should be removed after Last, got %d pending", r.PendingRequests())
	}
}

func TestReassemblerResponsePreservesFirstChunkMetadata(t *testing.T) {
	r := NewReassembler()
	chunks := ChunkResponse("http", "m3", Ok, bytes.Repeat([]byte("z"), ChunkPayloadSize+1))
	var resp *Response
	for _, c := range chunks {
		if got := r.FeedResponse(c); got != nil {
			resp = got
		}
	}
	if resp == nil {
		t.Fatal("expected a reassembled response")
	}
	if resp.Cmd != "http" || resp.Status != Ok {
		t.Errorf("unexpected metadata: cmd=%s status=%v", resp.Cmd, resp.Status)
	}
}

func TestReassemblerZeroLengthPayloadIsOneLastChunk(t *testing.T) {
	chunks := ChunkRequest("ls", "m4", "shell:x", nil)
	if len(chunks) != 1 || chunks[0].ChunkType != Last {
		t.Fatalf("zero-length payload should produce exactly one Last chunk, got %+v", chunks)
	}
}
