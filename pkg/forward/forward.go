/**
 * Copyright (c) 2025, Hoposhell Project.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package forward is the local TCP-forward listener (spec.md §4.8): a
// deliberately simple request/response bridge, not a streaming proxy. One
// accepted connection yields exactly one `tcp` RPC.
package forward

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hoposhell/agent/pkg/client"
	"github.com/hoposhell/agent/pkg/transport"
	"github.com/hoposhell/agent/pkg/wire"
)

const (
	readBurstSize = 16 * 1024
	readTimeout   = 1 * time.Second
	invokeTimeout = 60 * time.Second
)

// Listen binds localAddr and serves forwarded connections until the
// listener is closed or the process exits. Connections are handled one at
// a time, matching spec.md §4.8's "accept one connection at a time".
func Listen(log logrus.FieldLogger, localAddr string, dialer transport.Dialer, clientShellID, target, remoteHost string, remotePort int) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ln, err := net.Listen("tcp", localAddr)
	if err != nil {
		return fmt.Errorf("forward: binding %s: %w", localAddr, err)
	}
	defer ln.Close()

	log.WithFields(logrus.Fields{"local": localAddr, "remote": fmt.Sprintf("%s:%d", remoteHost, remotePort)}).Info("forward: listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("forward: accept: %w", err)
		}
		serveOne(log, conn, dialer, clientShellID, target, remoteHost, remotePort)
	}
}

func serveOne(log logrus.FieldLogger, conn net.Conn, dialer transport.Dialer, clientShellID, target, remoteHost string, remotePort int) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	buf := make([]byte, readBurstSize)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		log.WithError(err).Debug("forward: no data from local caller")
		return
	}

	payload, err := json.Marshal(wire.TCPRequestPayload{Host: remoteHost, Port: remotePort, Payload: buf[:n]})
	if err != nil {
		log.WithError(err).Error("forward: marshaling tcp RPC payload")
		return
	}

	result, err := client.Invoke(log, dialer, clientShellID, "tcp", target, payload, invokeTimeout)
	if err != nil {
		log.WithError(err).Warn("forward: tcp RPC failed")
		return
	}

	if _, err := conn.Write(result); err != nil {
		log.WithError(err).Warn("forward: writing reply to local caller")
	}
}
