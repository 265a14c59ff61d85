package netstat

import (
	"net"
	"testing"
)

func TestWrapReportsOpenThenCloseWithByteCounts(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	var states []State
	var lastConn *Conn
	report := func(c *Conn, state State) {
		states = append(states, state)
		lastConn = c
	}

	wrapped := Wrap(client, "test", report)

	go func() {
		buf := make([]byte, 100)
		server.Read(buf)
		server.Write(make([]byte, 30))
	}()

	if _, err := wrapped.Write(make([]byte, 100)); err != nil {
		t.Fatalf("write: %v", err)
	}
	readBuf := make([]byte, 50)
	n, err := wrapped.Read(readBuf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 30 {
		t.Fatalf("read %d bytes, want 30", n)
	}

	if err := wrapped.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(states) != 2 || states[0] != Opened || states[1] != Closed {
		t.Fatalf("states = %v, want [Opened Closed]", states)
	}
	if lastConn.TxBytes != 100 {
		t.Errorf("TxBytes = %d, want 100", lastConn.TxBytes)
	}
	if lastConn.RxBytes != 30 {
		t.Errorf("RxBytes = %d, want 30", lastConn.RxBytes)
	}
	if lastConn.OpenedAt.IsZero() || lastConn.ClosedAt.IsZero() {
		t.Error("expected both OpenedAt and ClosedAt to be set")
	}
}

func TestWrapNilReportIsPassthrough(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	defer client.Close()

	wrapped := Wrap(client, "test", nil)
	go server.Write([]byte("hi"))
	buf := make([]byte, 2)
	if _, err := wrapped.Read(buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "hi" {
		t.Errorf("got %q, want %q", buf, "hi")
	}
}

func TestFieldsIncludesRoleAndCounters(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	defer client.Close()

	wrapped := Wrap(client, "agent", nil)
	fields := wrapped.Fields()
	if fields["role"] != "agent" {
		t.Errorf("role = %v, want agent", fields["role"])
	}
	if fields["rxBytes"] != int64(0) {
		t.Errorf("rxBytes = %v, want 0", fields["rxBytes"])
	}
}
