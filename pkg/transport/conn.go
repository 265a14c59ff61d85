/**
 * Copyright (c) 2025, Hoposhell Project.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package transport is the connection manager (spec.md §4.5): dials the
// rendezvous server, optionally wraps the link in mutually authenticated
// TLS, writes the header frame, and drives the reconnect loop. The Agent's
// size frame and history replay are written by pkg/agent after Dial.
package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hoposhell/agent/pkg/netstat"
	"github.com/hoposhell/agent/pkg/wire"
)

// Role identifies which side of the protocol dialed the connection, used
// only for health-collector labeling and log lines.
type Role string

const (
	RoleAgent  Role = "agent"
	RoleClient Role = "client"
)

const reconnectDelay = 1 * time.Second

// State is the connection state machine from spec.md §3.
type State int

const (
	Disconnected State = iota
	Connecting
	Handshaking
	Running
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Handshaking:
		return "handshaking"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Dialer is everything the connection manager needs to open one transport
// link. It is satisfied identically by the Agent and the Client; only the
// header line and (for the Agent) the post-handshake history replay
// differ.
type Dialer struct {
	Log          logrus.FieldLogger
	Addr         string // host:port
	UseSSL       bool
	TLSConfig    *tls.Config // nil when UseSSL is false
	Role         Role
	HeaderBody   string // e.g. "v1" or "v1/command"
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	Report       netstat.ReportFn
}

// Conn is one established, handshaken transport link. The caller (Agent
// or Client event loop) reads Frames with ReadFrames and writes via
// WriteFrame/WriteKeepalive.
type Conn struct {
	dialer  Dialer
	netConn net.Conn
	decoder *wire.Decoder
	state   State
}

// Dial opens one connection attempt: TCP connect, optional TLS handshake,
// header frame write. It does not loop or sleep; callers wanting
// reconnection use RunLoop.
func (d Dialer) Dial(attempt int) (*Conn, error) {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	raw, err := net.DialTimeout("tcp", d.Addr, d.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing %s: %w", d.Addr, err)
	}

	tracked := netstat.Wrap(raw, string(d.Role), d.Report)
	tracked.SetReconnects(attempt)

	var netConn net.Conn = tracked
	if d.UseSSL {
		tlsConn := tls.Client(tracked, d.TLSConfig)
		if err := tlsConn.Handshake(); err != nil {
			_ = tracked.Close()
			return nil, fmt.Errorf("transport: TLS handshake with %s: %w", d.Addr, err)
		}
		netConn = tlsConn
	}

	c := &Conn{
		dialer:  d,
		netConn: netConn,
		decoder: wire.NewDecoder(log),
		state:   Handshaking,
	}

	if _, err := netConn.Write(wire.Encode(wire.Header, []byte(d.HeaderBody))); err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("transport: writing header frame: %w", err)
	}

	c.state = Running
	log.WithFields(logrus.Fields{"addr": d.Addr, "role": d.Role, "attempt": attempt}).Info("transport: connected")
	return c, nil
}

// WriteFrame encodes and writes one Frame.
func (c *Conn) WriteFrame(kind wire.Kind, body []byte) error {
	_, err := c.netConn.Write(wire.Encode(kind, body))
	return err
}

// WriteKeepalive writes a bare keepalive.
func (c *Conn) WriteKeepalive() error {
	_, err := c.netConn.Write(wire.EncodeKeepalive())
	return err
}

// ReadFrames performs one bounded-timeout read and decodes whatever
// Frames are newly complete. A timeout expiry is reported as (nil, nil):
// spec.md §4.5 treats WouldBlock as a poll miss, not an error.
func (c *Conn) ReadFrames(buf []byte) ([]wire.Frame, error) {
	if c.dialer.ReadTimeout > 0 {
		_ = c.netConn.SetReadDeadline(time.Now().Add(c.dialer.ReadTimeout))
	}
	n, err := c.netConn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	return c.decoder.Feed(buf[:n]), nil
}

// State reports the connection's current state-machine value.
func (c *Conn) State() State { return c.state }

// Close tears down the underlying socket.
func (c *Conn) Close() error {
	c.state = Disconnected
	return c.netConn.Close()
}

// RunLoop repeatedly Dials, invokes onConnected with the new Conn, and —
// while autoReconnect is set — sleeps reconnectDelay and retries after
// onConnected returns (i.e. after the connection drops). onConnected
// should return only when the link has failed. When autoReconnect is
// false, RunLoop returns after the first failed Dial or after onConnected
// returns.
func RunLoop(d Dialer, autoReconnect bool, log logrus.FieldLogger, onConnected func(*Conn)) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	attempt := 0
	for {
		conn, err := d.Dial(attempt)
		if err != nil {
			log.WithError(err).Warn("transport: connect failed")
			if !autoReconnect {
				return
			}
			attempt++
			time.Sleep(reconnectDelay)
			continue
		}
		attempt = 0
		onConnected(conn)
		if !autoReconnect {
			return
		}
		time.Sleep(reconnectDelay)
	}
}
