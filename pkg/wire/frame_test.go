package wire

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		body []byte
	}{
		{"stdout", Stdout, []byte("hello\n")},
		{"header", Header, []byte("v1")},
		{"control", Control, []byte("size/40/120")},
		{"empty body", Stdout, []byte{}},
		{"binary", Control, []byte{0x00, 0xff, 0x10, '-', '-', '-', '\n'}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := Encode(tc.kind, tc.body)
			d := NewDecoder(logrus.StandardLogger())
			frames := d.Feed(encoded)
			if len(frames) != 1 {
				t.Fatalf("expected 1 frame, got %d", len(frames))
			}
			if frames[0].Kind != tc.kind {
				t.Errorf("kind = %v, want %v", frames[0].Kind, tc.kind)
			}
			if !bytes.Equal(frames[0].Body, tc.body) {
				t.Errorf("body = %q, want %q", frames[0].Body, tc.body)
			}
		})
	}
}

func TestDecoderKeepaliveNotSurfaced(t *testing.T) {
	d := NewDecoder(logrus.StandardLogger())
	frames := d.Feed(EncodeKeepalive())
	if len(frames) != 0 {
		t.Fatalf("keepalive produced %d frames, want 0", len(frames))
	}
}

func TestDecoderSplitAcrossReads(t *testing.T) {
	d := NewDecoder(logrus.StandardLogger())
	full := Encode(Stdout, []byte("partial read test"))
	mid := len(full) / 2

	if frames := d.Feed(full[:mid]); len(frames) != 0 {
		t.Fatalf("got %d frames from a half frame, want 0", len(frames))
	}
	frames := d.Feed(full[mid:])
	if len(frames) != 1 {
		t.Fatalf("got %d frames after completion, want 1", len(frames))
	}
	if string(frames[0].Body) != "partial read test" {
		t.Errorf("body = %q", frames[0].Body)
	}
}

func TestDecoderMultipleFramesOneRead(t *testing.T) {
	d := NewDecoder(logrus.StandardLogger())
	buf := append(Encode(Stdout, []byte("a")), Encode(Control, []byte("b"))...)
	buf = append(buf, EncodeKeepalive()...)
	buf = append(buf, Encode(Header, []byte("v1"))...)

	frames := d.Feed(buf)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3 (keepalive dropped)", len(frames))
	}
	if frames[0].Kind != Stdout || frames[1].Kind != Control || frames[2].Kind != Header {
		t.Errorf("unexpected kind sequence: %v %v %v", frames[0].Kind, frames[1].Kind, frames[2].Kind)
	}
}

func TestDecoderDropsMalformedCandidate(t *testing.T) {
	d := NewDecoder(logrus.StandardLogger())
	// "zzz" is not a recognized kind tag.
	frames := d.Feed([]byte("AAAA-zzz---\n"))
	if len(frames) != 0 {
		t.Fatalf("got %d frames from malformed candidate, want 0", len(frames))
	}
}

func TestDecoderDropsBadBase64(t *testing.T) {
	d := NewDecoder(logrus.StandardLogger())
	frames := d.Feed([]byte("not-valid-base64!!-ooo---\n"))
	if len(frames) != 0 {
		t.Fatalf("got %d frames from bad base64, want 0", len(frames))
	}
}
