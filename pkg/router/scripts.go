package router

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

type scriptsRequestPayload struct {
	Name string `json:"name"`
}

// HandleScripts implements the `scripts` RPC. Execution is restricted to
// files in <folder>/scripts/ located by an exact filename match obtained
// from a manual directory scan: request.Name is never joined onto the
// scripts directory path, so a value like "../../etc/passwd" simply fails
// to match any scanned entry instead of escaping the directory.
//
// The response payload is 4 little-endian bytes of exit code followed by
// the script's stdout (spec.md §9 open question 2 resolves the source's
// native-endian encoding to little-endian for portability).
func HandleScripts(log logrus.FieldLogger, folder string, payload []byte) ([]byte, error) {
	var req scriptsRequestPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("scripts: parsing request JSON: %w", err)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("scripts: missing name")
	}

	scriptsDir := filepath.Join(folder, "scripts")
	entries, err := os.ReadDir(scriptsDir)
	if err != nil {
		return nil, fmt.Errorf("scripts: reading %s: %w", scriptsDir, err)
	}

	var matched string
	for _, e := range entries {
		if !e.IsDir() && e.Name() == req.Name {
			matched = e.Name()
			break
		}
	}
	if matched == "" {
		return nil, fmt.Errorf("scripts: no script named %q in %s", req.Name, scriptsDir)
	}

	cmd := exec.Command(filepath.Join(scriptsDir, matched))
	stdout, runErr := cmd.Output()

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("scripts: running %q: %w", matched, runErr)
		}
	}

	log.WithFields(logrus.Fields{"script": matched, "exitCode": exitCode}).Debug("scripts: execution completed")

	out := make([]byte, 4+len(stdout))
	binary.LittleEndian.PutUint32(out[:4], uint32(exitCode))
	copy(out[4:], stdout)
	return out, nil
}
