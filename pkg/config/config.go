/**
 * Copyright (c) 2025, Hoposhell Project.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package config resolves the environment variables and defaults
// documented in spec.md §6 into a typed Config, validating at startup
// instead of letting a missing value panic deep inside the transport.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable the Agent and Client read from the
// environment. Zero values are never used directly; New always returns a
// fully populated Config or an error.
type Config struct {
	Folder         string
	URL            string
	API            string
	ServerCrtPath  string
	ShellKeyPath   string
	AutoReconnect  bool
	UseSSL         bool
	VerifyCrt      bool
	KeepAlive      time.Duration
	ReadTimeout    time.Duration
	ReadTimeoutSleep time.Duration
	CommandTimeout time.Duration
	Cols           int
	Rows           int
	Shell          string
	Verbose        bool
}

const (
	defaultURL            = "api.hoposhell.com:10000"
	defaultAPI            = "https://api.hoposhell.com"
	defaultHomeName       = ".hoposhell"
	defaultKeepAlive      = 5 * time.Second
	defaultReadTimeout    = 50 * time.Millisecond
	defaultReadTimeoutSleep = 10 * time.Millisecond
	defaultCommandTimeout = 60 * time.Second
	defaultCols           = 120
	defaultRows           = 40
	defaultShell          = "/bin/bash"
)

// New resolves a Config from the process environment, applying the
// defaults from spec.md §6 wherever a variable is unset.
func New() (*Config, error) {
	folder, err := resolveFolder()
	if err != nil {
		return nil, fmt.Errorf("config: resolving home folder: %w", err)
	}

	c := &Config{
		Folder:           folder,
		URL:              getEnv("HOPOSHELL_URL", defaultURL),
		API:              getEnv("HOPOSHELL_API", defaultAPI),
		AutoReconnect:    getBool("RECONNECT", true),
		UseSSL:           getBool("USE_SSL", true),
		VerifyCrt:        getBool("VERIFY_CRT", true),
		KeepAlive:        getDurationMs("KEEP_ALIVE", defaultKeepAlive),
		ReadTimeout:      getDurationMs("READ_TIMEOUT", defaultReadTimeout),
		ReadTimeoutSleep: getDurationMs("READ_TIMEOUT_SLEEP", defaultReadTimeoutSleep),
		CommandTimeout:   getDurationMs("COMMAND_TIMEOUT", defaultCommandTimeout),
		Cols:             getInt("COLS", defaultCols),
		Rows:             getInt("ROWS", defaultRows),
		Shell:            getEnv("SHELL", defaultShell),
		Verbose:          getBool("VERBOSE", false),
	}
	c.ServerCrtPath = getEnv("HOPOSHELL_SERVER_CRT", filepath.Join(folder, "server.crt"))
	c.ShellKeyPath = getEnv("HOPOSHELL_SHELL_KEY", "")

	return c, nil
}

func resolveFolder() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	name := getEnv("HOPOSHELL_HOME_NAME", defaultHomeName)
	return filepath.Join(home, name), nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// getBool implements spec.md §6's boolean parsing: "no|false|0" (any
// case) maps to false, everything else (including unset, which falls back
// to def) maps to true.
func getBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "no", "false", "0":
		return false
	default:
		return true
	}
}

func getDurationMs(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func getInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// ShellKeyPathFor returns the client key/cert PEM path for a given shell
// id: HOPOSHELL_SHELL_KEY when it is set, otherwise <Folder>/<shellID>.pem.
func (c *Config) ShellKeyPathFor(shellID string) string {
	if c.ShellKeyPath != "" {
		return c.ShellKeyPath
	}
	return filepath.Join(c.Folder, shellID+".pem")
}

// DiscoverShellID finds the sole "shell_*.pem" in Folder when the CLI is
// invoked without an explicit shell id, per spec.md §6's `connect` rule:
// zero or multiple matches is an error, never a guess.
func (c *Config) DiscoverShellID() (string, error) {
	entries, err := os.ReadDir(c.Folder)
	if err != nil {
		return "", fmt.Errorf("config: reading %s: %w", c.Folder, err)
	}
	var found []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) == ".pem" && strings.HasPrefix(name, "shell_") {
			found = append(found, name[:len(name)-len(".pem")])
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("config: no shell_*.pem found in %s; run `hopo setup <shell_id>` first", c.Folder)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("config: multiple shell pems found in %s (%v); specify a shell id explicitly", c.Folder, found)
	}
}
