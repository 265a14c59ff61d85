/**
 * Copyright (c) 2025, Hoposhell Project.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package netstat instruments the connections the Agent, Client, and
// forward listener dial, reporting byte counts and activity timestamps to
// an injected callback. It never sits on the RPC critical path; a nil
// ReportFn makes Conn a transparent pass-through.
package netstat

import (
	"net"
	"time"
)

// State identifies which lifecycle event triggered a report.
type State int

const (
	Opened State = iota
	Closed
)

var stateNames = map[State]string{Opened: "open", Closed: "close"}

func (s State) String() string { return stateNames[s] }

// ReportFn receives a snapshot of a Conn's counters whenever Opened or
// Closed fires.
type ReportFn func(c *Conn, state State)

// Conn decorates a net.Conn with byte counters and activity timestamps,
// reporting through reportStats on open and close.
type Conn struct {
	net.Conn
	Role         string
	reportStats  ReportFn
	OpenedAt     time.Time
	ClosedAt     time.Time
	FirstRxAt    time.Time
	FirstTxAt    time.Time
	LastRxAt     time.Time
	LastTxAt     time.Time
	TxBytes      int64
	RxBytes      int64
	RxErr        error
	TxErr        error
	Reconnects   int
}

// Wrap returns ncon decorated with counters, immediately reporting an
// Opened event. role is a free-form label (e.g. "agent", "client",
// "forward-upstream") carried through to the report for logging/metrics.
func Wrap(ncon net.Conn, role string, report ReportFn) *Conn {
	c := &Conn{
		Conn:        ncon,
		Role:        role,
		reportStats: report,
		OpenedAt:    time.Now(),
	}
	c.report(Opened)
	return c
}

// SetReconnects records how many prior attempts were needed before this
// connection succeeded, for inclusion in the Closed report.
func (c *Conn) SetReconnects(n int) { c.Reconnects = n }

func (c *Conn) report(state State) {
	if c.reportStats != nil {
		c.reportStats(c, state)
	}
}

// Close reports a Closed event before delegating to the wrapped Conn.
func (c *Conn) Close() error {
	c.ClosedAt = time.Now()
	c.report(Closed)
	return c.Conn.Close()
}

func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		now := time.Now()
		if c.FirstRxAt.IsZero() {
			c.FirstRxAt = now
		}
		c.LastRxAt = now
	}
	c.RxBytes += int64(n)
	if err != nil && c.RxErr == nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			c.RxErr = err
		}
	}
	return n, err
}

func (c *Conn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		now := time.Now()
		if c.FirstTxAt.IsZero() {
			c.FirstTxAt = now
		}
		c.LastTxAt = now
	}
	c.TxBytes += int64(n)
	if err != nil && c.TxErr == nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			c.TxErr = err
		}
	}
	return n, err
}

// Fields renders the counters as a flat map suitable for a logrus
// WithFields call.
func (c *Conn) Fields() map[string]any {
	f := map[string]any{
		"role":       c.Role,
		"rxBytes":    c.RxBytes,
		"txBytes":    c.TxBytes,
		"reconnects": c.Reconnects,
	}
	if !c.OpenedAt.IsZero() {
		f["openedAt"] = c.OpenedAt
	}
	if !c.ClosedAt.IsZero() {
		f["closedAt"] = c.ClosedAt
	}
	if c.RxErr != nil {
		f["rxErr"] = c.RxErr.Error()
	}
	if c.TxErr != nil {
		f["txErr"] = c.TxErr.Error()
	}
	return f
}
