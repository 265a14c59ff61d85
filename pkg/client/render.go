package client

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Mode selects how Render writes a successful RPC result to a sink.
type Mode int

const (
	// ModeText writes ls/glob listings as their JSON text plus a newline,
	// strips the exit-code header from scripts results, and writes other
	// payloads unmodified. It does not reformat listings into a table.
	ModeText Mode = iota
	// ModeJSON renders the command's JSON payload verbatim, or
	// {"raw":"<base64>"} when the payload isn't JSON (e.g. download/tcp).
	ModeJSON
	// ModeRaw writes the bytes unmodified.
	ModeRaw
)

// Render writes result (the decompressed success payload) to w according
// to mode.
func Render(w io.Writer, mode Mode, cmd string, result []byte) error {
	switch mode {
	case ModeRaw:
		_, err := w.Write(result)
		return err
	case ModeJSON:
		return renderJSON(w, result)
	default:
		return renderText(w, cmd, result)
	}
}

func renderJSON(w io.Writer, result []byte) error {
	var probe json.RawMessage
	if json.Unmarshal(result, &probe) == nil {
		_, err := w.Write(result)
		if err == nil {
			_, err = w.Write([]byte("\n"))
		}
		return err
	}
	out, err := json.Marshal(map[string]string{"raw": base64.StdEncoding.EncodeToString(result)})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func renderText(w io.Writer, cmd string, result []byte) error {
	switch cmd {
	case "ls", "glob":
		_, err := w.Write(result)
		if err == nil {
			_, err = w.Write([]byte("\n"))
		}
		return err
	case "scripts":
		return renderScripts(w, result)
	default:
		_, err := w.Write(result)
		return err
	}
}

// renderScripts splits a scripts RPC result into its pkg/router/scripts.go
// wire format (4 little-endian bytes of exit code, then stdout), writes the
// stdout body to w, and reports a non-zero exit code to stderr.
func renderScripts(w io.Writer, result []byte) error {
	if len(result) < 4 {
		_, err := w.Write(result)
		return err
	}
	exitCode := binary.LittleEndian.Uint32(result[:4])
	if _, err := w.Write(result[4:]); err != nil {
		return err
	}
	if exitCode != 0 {
		fmt.Fprintf(os.Stderr, "script exited with code %d\n", exitCode)
	}
	return nil
}

// WriteToFile writes raw result bytes to path, or to stdout when path is
// "-" or empty (spec.md §6's `download`/`cp` destination rules).
func WriteToFile(path string, result []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(result)
		return err
	}
	return os.WriteFile(path, result, 0644)
}
