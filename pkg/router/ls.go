package router

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// entry is one member of the `ls`/`glob` entries array.
type entry struct {
	Name                 string `json:"name"`
	FileType             string `json:"fileType"`
	CreationTimestamp    int64  `json:"creationTimestamp"`
	ModificationTimestamp int64  `json:"modificationTimestamp"`
	SizeInBytes          int64  `json:"sizeInBytes"`
}

type listing struct {
	Entries []entry `json:"entries"`
}

// expandTilde expands a leading "~" to the current user's home directory,
// matching the shell's own convention, since the Agent receives paths
// typed by a remote operator rather than a shell that would expand them.
func expandTilde(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving ~: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

func entryFor(path string, info os.FileInfo) entry {
	fileType := "file"
	if info.IsDir() {
		fileType = "dir"
	}
	return entry{
		Name:                  path,
		FileType:              fileType,
		CreationTimestamp:     info.ModTime().Unix(), // birth time isn't portably available; fall back to mtime
		ModificationTimestamp: info.ModTime().Unix(),
		SizeInBytes:           info.Size(),
	}
}

// HandleLs implements the `ls` RPC: list the immediate children of a
// directory.
func HandleLs(log logrus.FieldLogger, folder string, payload []byte) ([]byte, error) {
	dir, err := expandTilde(string(payload))
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ls %q: %w", dir, err)
	}

	out := listing{Entries: make([]entry, 0, len(dirEntries))}
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			log.WithError(err).WithField("entry", de.Name()).Warn("ls: skipping unreadable entry")
			continue
		}
		out.Entries = append(out.Entries, entryFor(de.Name(), info))
	}
	return json.Marshal(out)
}
