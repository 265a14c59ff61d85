package router

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// HandleGlob implements the `glob` RPC: expand a glob pattern and report
// the matched paths in the same JSON shape as `ls`, with name set to each
// matched path.
func HandleGlob(log logrus.FieldLogger, folder string, payload []byte) ([]byte, error) {
	pattern, err := expandTilde(string(payload))
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	out := listing{Entries: make([]entry, 0, len(matches))}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			log.WithError(err).WithField("match", m).Warn("glob: skipping unreadable match")
			continue
		}
		out.Entries = append(out.Entries, entryFor(m, info))
	}
	return json.Marshal(out)
}
