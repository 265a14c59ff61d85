/**
 * Copyright (c) 2025, Hoposhell Project.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package ptysup is the PTY supervisor (spec.md §4.3): it owns a child
// interactive shell running under a pseudo-terminal, pumps its output,
// accepts remote keystrokes, and exposes resize and restart.
package ptysup

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
)

const (
	outputChunkSize = 16 * 1024
	sendRetryDelay  = 100 * time.Millisecond
)

// Size is a terminal size in character cells.
type Size struct {
	Rows, Cols uint16
}

// Supervisor owns the child shell's pseudo-terminal master. Writers
// (keystroke injection and resize) serialize through writeMu; the output
// pump owns the read side exclusively.
type Supervisor struct {
	log      logrus.FieldLogger
	shellID  string
	shellCmd string
	folder   string

	master *os.File
	cmd    *exec.Cmd

	writeMu sync.Mutex
	size    Size

	// Stdout is where output chunks are published; ResizeNotify is where
	// the "size/<r>/<c>" control echo is published. Stdout is an unbuffered
	// handoff and ResizeNotify holds one pending size; the caller (the agent
	// event loop) owns the outbound-to-stream mailbox.
	Stdout       chan []byte
	ResizeNotify chan Size
	done         chan struct{}
}

// Start spawns shellCmd under a pseudo-terminal of the given size, with
// the environment spec.md §4.3 mandates: HOPOSHELL_SHELL_ID,
// HOPOSHELL_CONNECTED=1, and folder/bin prepended to PATH.
func Start(log logrus.FieldLogger, shellID, shellCmd, folder string, size Size) (*Supervisor, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cmd := exec.Command(shellCmd)
	cmd.Env = append(os.Environ(),
		"HOPOSHELL_SHELL_ID="+shellID,
		"HOPOSHELL_CONNECTED=1",
		"PATH="+prependBin(folder),
	)

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
	if err != nil {
		return nil, fmt.Errorf("ptysup: starting %s under pty: %w", shellCmd, err)
	}

	s := &Supervisor{
		log:          log,
		shellID:      shellID,
		shellCmd:     shellCmd,
		folder:       folder,
		master:       master,
		cmd:          cmd,
		size:         size,
		Stdout:       make(chan []byte),
		ResizeNotify: make(chan Size, 1),
		done:         make(chan struct{}),
	}
	go s.pumpOutput()
	return s, nil
}

func prependBin(folder string) string {
	bin := folder + "/bin"
	if existing := os.Getenv("PATH"); existing != "" {
		return bin + ":" + existing
	}
	return bin
}

// pumpOutput drains the master continuously, publishing each chunk to
// Stdout. Sends retry with a fixed backoff rather than dropping the chunk,
// so output survives a transport disconnect and reconnect (spec.md §4.3).
// It exits (closing done) when the master returns EOF, i.e. the child
// shell died.
func (s *Supervisor) pumpOutput() {
	defer close(s.done)
	buf := make([]byte, outputChunkSize)
	for {
		n, err := s.master.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			s.publish(chunk)
		}
		if err != nil {
			if err != io.EOF {
				s.log.WithError(err).Warn("ptysup: master read error, treating as EOF")
			}
			return
		}
	}
}

func (s *Supervisor) publish(chunk []byte) {
	for {
		select {
		case s.Stdout <- chunk:
			return
		case <-s.done:
			return
		case <-time.After(sendRetryDelay):
			// Outbound mailbox has no reader (disconnect mid-flight); retry.
		}
	}
}

// Write injects remote keystrokes into the master.
func (s *Supervisor) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.master.Write(p)
}

// Resize applies a new size to the master and returns the size that
// should be echoed back to the peer as a Control "size/<r>/<c>" frame.
// It always returns a size to echo, even when unchanged, so the server
// can correct its display (spec.md §4.3).
func (s *Supervisor) Resize(size Size) Size {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := pty.Setsize(s.master, &pty.Winsize{Rows: size.Rows, Cols: size.Cols}); err != nil {
		s.log.WithError(err).Warn("ptysup: resize failed")
	} else {
		s.size = size
	}
	select {
	case s.ResizeNotify <- s.size:
	default:
	}
	return s.size
}

// Size returns the last size applied to the master.
func (s *Supervisor) Size() Size {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.size
}

// Restart exits the process with code 0, trusting an external supervisor
// (or the binary's own reconnect logic run from a fresh process) to spawn
// a replacement shell, per spec.md §4.3.
func (s *Supervisor) Restart() {
	s.log.Info("ptysup: restart requested, exiting process")
	os.Exit(0)
}

// Done reports when the child shell has exited.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Close releases the master and waits for the child to exit.
func (s *Supervisor) Close() error {
	_ = s.master.Close()
	return s.cmd.Wait()
}
