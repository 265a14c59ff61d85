package router

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hoposhell/agent/pkg/wire"
)

const (
	tcpDialTimeout = 10 * time.Second
	tcpIdleTimeout = 1 * time.Second
)

// HandleTCP implements the `tcp` RPC: open a TCP connection, write
// payload, and return everything read back until the peer closes or goes
// idle for tcpIdleTimeout. This cannot distinguish "server finished" from
// "server slow" (spec.md §9 open question 3); a future wire revision
// should add a caller-visible framing indicator.
func HandleTCP(log logrus.FieldLogger, folder string, payload []byte) ([]byte, error) {
	var req wire.TCPRequestPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("tcp: parsing request JSON: %w", err)
	}
	if req.Host == "" || req.Port <= 0 {
		return nil, fmt.Errorf("tcp: missing or invalid host/port")
	}

	addr := fmt.Sprintf("%s:%d", req.Host, req.Port)
	conn, err := net.DialTimeout("tcp", addr, tcpDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("tcp: dialing %s: %w", addr, err)
	}
	defer conn.Close()

	if len(req.Payload) > 0 {
		if _, err := conn.Write(req.Payload); err != nil {
			return nil, fmt.Errorf("tcp: writing to %s: %w", addr, err)
		}
	}

	var out []byte
	buf := make([]byte, 16*1024)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(tcpIdleTimeout))
		n, err := conn.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if err == io.EOF {
				break
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			return nil, fmt.Errorf("tcp: reading from %s: %w", addr, err)
		}
	}
	log.WithFields(logrus.Fields{"addr": addr, "bytesRead": len(out)}).Debug("tcp: request completed")
	return out, nil
}
