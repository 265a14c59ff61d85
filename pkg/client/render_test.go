package client

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestRenderJSONPassesThroughValidJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, ModeJSON, "ls", []byte(`{"entries":[]}`)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if _, ok := out["entries"]; !ok {
		t.Error("expected entries key to pass through unmodified")
	}
}

func TestRenderJSONWrapsNonJSONAsRaw(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, ModeJSON, "download", []byte{0x00, 0x01, 0xff}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if _, ok := out["raw"]; !ok {
		t.Error("expected a raw key for non-JSON payload")
	}
}

func TestRenderRawWritesBytesUnmodified(t *testing.T) {
	var buf bytes.Buffer
	want := []byte{1, 2, 3, 4}
	if err := Render(&buf, ModeRaw, "download", want); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got %v, want %v", buf.Bytes(), want)
	}
}

func TestRenderTextScriptsStripsExitCodeHeader(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, 4+len("hello\n"))
	binary.LittleEndian.PutUint32(payload[:4], 0)
	copy(payload[4:], "hello\n")
	if err := Render(&buf, ModeText, "scripts", payload); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.String() != "hello\n" {
		t.Errorf("got %q, want %q", buf.String(), "hello\n")
	}
}

func TestRenderTextScriptsNonZeroExitCodeStillWritesStdout(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, 4+len("boom"))
	binary.LittleEndian.PutUint32(payload[:4], 1)
	copy(payload[4:], "boom")
	if err := Render(&buf, ModeText, "scripts", payload); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.String() != "boom" {
		t.Errorf("got %q, want %q", buf.String(), "boom")
	}
}

func TestWriteToFileWritesDestination(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	if err := WriteToFile(path, []byte("contents")); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "contents" {
		t.Errorf("got %q, want %q", got, "contents")
	}
}

func TestWriteToFileDashMeansStdout(t *testing.T) {
	if err := WriteToFile("-", []byte("x")); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}
}
