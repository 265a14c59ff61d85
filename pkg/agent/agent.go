/**
 * Copyright (c) 2025, Hoposhell Project.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package agent is the Agent event loop (spec.md §4.6, §4.3): it wires
// together the PTY supervisor, the command router, and the transport
// connection manager, interleaving stream reads, PTY/router writes, and
// keepalives.
package agent

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hoposhell/agent/pkg/ptysup"
	"github.com/hoposhell/agent/pkg/router"
	"github.com/hoposhell/agent/pkg/transport"
	"github.com/hoposhell/agent/pkg/wire"
)

const protocolVersion = "1"

// Agent owns the long-lived state that survives reconnection: the PTY,
// the output-history ring, and the outbound mailbox. A fresh
// wire.Reassembler is created per connection, since request chunks never
// span a reconnect (spec.md §3's Lifecycles).
type Agent struct {
	log     logrus.FieldLogger
	shellID string
	folder  string
	pty     *ptysup.Supervisor
	router  *router.Router
	history *transport.History
	mbox    *mailbox
}

// New starts the PTY and wires the router, but does not dial. Call Run to
// start the connection loop.
func New(log logrus.FieldLogger, shellID, shellCmd, folder string, size ptysup.Size) (*Agent, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	sup, err := ptysup.Start(log, shellID, shellCmd, folder, size)
	if err != nil {
		return nil, err
	}
	r, err := router.New(log, folder)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		log:     log,
		shellID: shellID,
		folder:  folder,
		pty:     sup,
		router:  r,
		history: transport.NewHistory(),
		mbox:    newMailbox(),
	}
	go a.pumpPTYOutput()
	go a.pumpResizeNotify()
	return a, nil
}

func (a *Agent) pumpPTYOutput() {
	for chunk := range a.pty.Stdout {
		a.history.Push(chunk)
		a.mbox.Send(frameMsg{Kind: wire.Stdout, Body: chunk})
	}
}

func (a *Agent) pumpResizeNotify() {
	for size := range a.pty.ResizeNotify {
		body := fmt.Sprintf("size/%d/%d", size.Rows, size.Cols)
		a.mbox.Send(frameMsg{Kind: wire.Control, Body: []byte(body)})
	}
}

// Run dials dialer and loops forever (or until the PTY's child shell
// exits), reconnecting per autoReconnect.
func (a *Agent) Run(dialer transport.Dialer, autoReconnect bool) {
	dialer.HeaderBody = "v" + protocolVersion
	go func() {
		<-a.pty.Done()
		a.log.Info("agent: child shell exited, exiting process")
		os.Exit(0)
	}()
	transport.RunLoop(dialer, autoReconnect, a.log, a.handleConnection)
}

// handleConnection performs the post-handshake replay (header already
// written by Dial) and then the read/write/keepalive interleave of
// spec.md §4.6 until the link fails.
func (a *Agent) handleConnection(conn *transport.Conn) {
	defer conn.Close()

	initial := a.pty.Size()
	if err := conn.WriteFrame(wire.Control, []byte(fmt.Sprintf("size/%d/%d", initial.Rows, initial.Cols))); err != nil {
		a.log.WithError(err).Warn("agent: writing initial size control frame")
		return
	}
	for _, entry := range a.history.Snapshot() {
		if err := conn.WriteFrame(wire.Stdout, entry); err != nil {
			a.log.WithError(err).Warn("agent: replaying history")
			return
		}
	}

	reasm := wire.NewReassembler()
	readBuf := make([]byte, 32*1024)
	lastKeepalive := time.Now()
	keepAliveInterval := 5 * time.Second
	pollInterval := 10 * time.Millisecond

	for {
		select {
		case <-a.pty.Done():
			a.log.Info("agent: child shell exited, stopping connection loop")
			return
		default:
		}

		frames, err := conn.ReadFrames(readBuf)
		if err != nil {
			a.log.WithError(err).Warn("agent: stream read failed")
			return
		}
		for _, f := range frames {
			a.handleFrame(f, conn, reasm)
		}

		select {
		case msg, ok := <-a.mbox.Recv():
			if !ok {
				return
			}
			if err := conn.WriteFrame(msg.Kind, msg.Body); err != nil {
				a.log.WithError(err).Warn("agent: stream write failed")
				return
			}
		case <-time.After(pollInterval):
		}

		if time.Since(lastKeepalive) >= keepAliveInterval {
			if err := conn.WriteKeepalive(); err != nil {
				a.log.WithError(err).Warn("agent: keepalive write failed")
				return
			}
			lastKeepalive = time.Now()
		}
	}
}

func (a *Agent) handleFrame(f wire.Frame, conn *transport.Conn, reasm *wire.Reassembler) {
	if f.Kind != wire.Control {
		return // Agent never receives application Stdout/Header after handshake.
	}
	body := string(f.Body)

	switch {
	case strings.HasPrefix(body, "stdin/"):
		if _, err := a.pty.Write(f.Body[len("stdin/"):]); err != nil {
			a.log.WithError(err).Warn("agent: writing keystrokes to pty")
		}
		return
	case strings.HasPrefix(body, "resize/"):
		if size, ok := parseSize(body, "resize/"); ok {
			a.pty.Resize(size)
		}
		return
	case body == "restart":
		a.pty.Restart()
		return
	}

	reqChunk, _, ok := wire.DecodeChunk(f.Body)
	if !ok || reqChunk == nil {
		a.log.WithField("body", body).Debug("agent: dropping unrecognized control frame")
		return
	}
	req := reasm.FeedRequest(*reqChunk)
	if req == nil {
		return
	}
	resp := a.router.Dispatch(*req)
	for _, chunk := range wire.ChunkResponse(resp.Cmd, resp.MessageID, resp.Status, resp.Payload) {
		a.mbox.Send(frameMsg{Kind: wire.Control, Body: wire.EncodeResponseChunk(chunk)})
	}
}

func parseSize(body, prefix string) (ptysup.Size, bool) {
	fields := strings.Split(strings.TrimPrefix(body, prefix), "/")
	if len(fields) != 2 {
		return ptysup.Size{}, false
	}
	rows, err1 := strconv.ParseUint(fields[0], 10, 16)
	cols, err2 := strconv.ParseUint(fields[1], 10, 16)
	if err1 != nil || err2 != nil {
		return ptysup.Size{}, false
	}
	return ptysup.Size{Rows: uint16(rows), Cols: uint16(cols)}, true
}
