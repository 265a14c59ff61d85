/**
 * Copyright (c) 2025, Hoposhell Project.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Command hopo is the single hoposhell binary: it runs as the Agent
// (`connect`), the Client (`command`, `forward`), or the credential
// bootstrap (`setup`), selected by the first positional argument
// (spec.md §6).
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hoposhell/agent/pkg/agent"
	"github.com/hoposhell/agent/pkg/certs"
	"github.com/hoposhell/agent/pkg/client"
	"github.com/hoposhell/agent/pkg/config"
	"github.com/hoposhell/agent/pkg/forward"
	"github.com/hoposhell/agent/pkg/netstat"
	"github.com/hoposhell/agent/pkg/ptysup"
	"github.com/hoposhell/agent/pkg/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.New()
	if err != nil {
		log.WithError(err).Fatal("hopo: resolving configuration")
	}
	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	var runErr error
	switch os.Args[1] {
	case "connect":
		runErr = cmdConnect(log, cfg, os.Args[2:])
	case "setup":
		runErr = cmdSetup(log, cfg, os.Args[2:])
	case "command":
		runErr = cmdCommand(log, cfg, os.Args[2:])
	case "forward":
		runErr = cmdForward(log, cfg, os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		usage()
		os.Exit(1)
	}

	if runErr != nil {
		log.WithError(runErr).Error("hopo: command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  hopo connect [<shell_id>] [--metrics-addr <host:port>]
  hopo setup <shell_id>
  hopo command <shell_id> <cmd> <args...> [--json]
  hopo forward <local_port> <remote_host> <remote_port>
  hopo version`)
}

func cmdSetup(log logrus.FieldLogger, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("setup: missing <shell_id>")
	}
	return certs.Fetch(log, cfg.API, args[0], cfg.Folder)
}

func cmdConnect(log logrus.FieldLogger, cfg *config.Config, args []string) error {
	var shellID, metricsAddr string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--metrics-addr":
			i++
			if i >= len(args) {
				return fmt.Errorf("connect: --metrics-addr requires a value")
			}
			metricsAddr = args[i]
		default:
			if shellID != "" {
				return fmt.Errorf("connect: unexpected argument %q", args[i])
			}
			shellID = args[i]
		}
	}
	if shellID == "" {
		id, err := cfg.DiscoverShellID()
		if err != nil {
			return err
		}
		shellID = id
	}

	dialer, collector, err := buildDialer(log, cfg, shellID, transport.RoleAgent)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		serveMetrics(log, metricsAddr, collector)
	}

	size := ptysup.Size{Rows: uint16(cfg.Rows), Cols: uint16(cfg.Cols)}
	a, err := agent.New(log, shellID, cfg.Shell, cfg.Folder, size)
	if err != nil {
		return fmt.Errorf("connect: starting agent: %w", err)
	}
	a.Run(dialer, cfg.AutoReconnect)
	return nil
}

func cmdForward(log logrus.FieldLogger, cfg *config.Config, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("forward: usage: hopo forward <local_port> <remote_host> <remote_port>")
	}
	localPort, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("forward: invalid local_port %q: %w", args[0], err)
	}
	remoteHost := args[1]
	remotePort, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("forward: invalid remote_port %q: %w", args[2], err)
	}

	shellID, err := cfg.DiscoverShellID()
	if err != nil {
		return err
	}
	dialer, _, err := buildDialer(log, cfg, shellID, transport.RoleClient)
	if err != nil {
		return err
	}
	target := "shell:" + shellID
	return forward.Listen(log, fmt.Sprintf("127.0.0.1:%d", localPort), dialer, shellID, target, remoteHost, remotePort)
}

func cmdCommand(log logrus.FieldLogger, cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("command: usage: hopo command <shell_id> <cmd> <args...>")
	}
	shellID, cmd := args[0], args[1]
	rest := args[2:]

	jsonOut := false
	var filtered []string
	for _, a := range rest {
		if a == "--json" {
			jsonOut = true
			continue
		}
		filtered = append(filtered, a)
	}
	rest = filtered

	if cmd == "cp" {
		cmd = "download"
	}

	payload, err := buildPayload(cmd, rest)
	if err != nil {
		return err
	}

	dialer, _, err := buildDialer(log, cfg, shellID, transport.RoleClient)
	if err != nil {
		return err
	}
	target := "shell:" + shellID

	result, err := client.Invoke(log, dialer, shellID, cmd, target, payload, cfg.CommandTimeout)
	if err != nil {
		return err
	}

	return renderResult(cmd, rest, jsonOut, result)
}

func buildPayload(cmd string, args []string) ([]byte, error) {
	switch cmd {
	case "ls", "glob", "download":
		if len(args) < 1 {
			return nil, fmt.Errorf("%s: missing path argument", cmd)
		}
		return []byte(args[0]), nil
	case "http":
		if len(args) < 2 {
			return nil, fmt.Errorf("http: usage: http <verb> <url> [body]")
		}
		body := ""
		if len(args) > 2 {
			body = args[2]
		}
		return json.Marshal(map[string]any{"verb": args[0], "url": args[1], "body": body})
	case "tcp":
		if len(args) < 2 {
			return nil, fmt.Errorf("tcp: usage: tcp <host> <port> [payload]")
		}
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("tcp: invalid port %q: %w", args[1], err)
		}
		var p []byte
		if len(args) > 2 {
			p = []byte(args[2])
		}
		return json.Marshal(map[string]any{"host": args[0], "port": port, "payload": p})
	case "scripts":
		if len(args) < 1 {
			return nil, fmt.Errorf("scripts: missing name argument")
		}
		return json.Marshal(map[string]string{"name": args[0]})
	default:
		return nil, fmt.Errorf("unsupported cmd %q", cmd)
	}
}

func renderResult(cmd string, args []string, jsonOut bool, result []byte) error {
	if cmd == "download" {
		dest := ""
		if len(args) > 1 {
			dest = args[1]
		}
		return client.WriteToFile(dest, result)
	}
	mode := client.ModeText
	if jsonOut {
		mode = client.ModeJSON
	}
	return client.Render(os.Stdout, mode, cmd, result)
}

func buildDialer(log logrus.FieldLogger, cfg *config.Config, shellID string, role transport.Role) (transport.Dialer, *netstat.Collector, error) {
	d := transport.Dialer{
		Log:         log,
		Addr:        cfg.URL,
		UseSSL:      cfg.UseSSL,
		Role:        role,
		DialTimeout: 10 * time.Second,
		ReadTimeout: cfg.ReadTimeout,
	}
	collector := netstat.NewCollector("hoposhell")
	d.Report = func(c *netstat.Conn, state netstat.State) {
		if state == netstat.Opened {
			collector.Track(c)
		}
		log.WithFields(logrus.Fields(c.Fields())).Debug("netstat: " + state.String())
	}

	if cfg.UseSSL {
		tlsCfg, err := certs.LoadTLSConfig(cfg.ServerCrtPath, cfg.ShellKeyPathFor(shellID), cfg.VerifyCrt)
		if err != nil {
			return transport.Dialer{}, nil, err
		}
		d.TLSConfig = tlsCfg
	}
	return d, collector, nil
}

func serveMetrics(log logrus.FieldLogger, addr string, collector *netstat.Collector) {
	registry := prometheus.NewRegistry()
	if collector != nil {
		if err := registry.Register(collector); err != nil {
			log.WithError(err).Warn("hopo: registering netstat collector")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithError(err).Error("hopo: metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("hopo: serving /metrics")
}
