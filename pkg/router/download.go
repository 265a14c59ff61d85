package router

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// HandleDownload implements the `download` RPC: return the raw bytes of a
// file. Responses are materialized in memory (spec.md's Non-goals
// exclude streaming partial bodies to disk).
func HandleDownload(log logrus.FieldLogger, folder string, payload []byte) ([]byte, error) {
	path, err := expandTilde(string(payload))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("download %q: %w", path, err)
	}
	return data, nil
}
