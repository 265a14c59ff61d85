/**
 * Copyright (c) 2025, Hoposhell Project.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package certs implements the `hopo setup` credential bootstrap
// (SPEC_FULL.md §4.10): two plain HTTPS GETs against the rendezvous API,
// persisted to the on-disk layout the Connection manager expects.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

const fetchTimeout = 30 * time.Second

// Fetch runs the two-GET bootstrap described in spec.md §6 and writes
// server.crt and <shellID>.pem into folder, mode 0600. apiURL is the base
// URL (e.g. https://api.hoposhell.com); it is never itself verified
// against the certificate being fetched, since that certificate doesn't
// exist yet.
func Fetch(log logrus.FieldLogger, apiURL, shellID, folder string) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	client := &http.Client{Timeout: fetchTimeout}

	caBundle, err := getBody(client, fmt.Sprintf("%s/shell-credentials/request/%s", apiURL, shellID))
	if err != nil {
		return fmt.Errorf("certs: fetching CA bundle: %w", err)
	}
	keyPEM, err := getBody(client, fmt.Sprintf("%s/shell-credentials/confirmation/%s", apiURL, shellID))
	if err != nil {
		return fmt.Errorf("certs: fetching client key/cert: %w", err)
	}

	if err := os.MkdirAll(folder, 0700); err != nil {
		return fmt.Errorf("certs: creating %s: %w", folder, err)
	}

	crtPath := filepath.Join(folder, "server.crt")
	pemPath := filepath.Join(folder, shellID+".pem")
	if err := os.WriteFile(crtPath, caBundle, 0600); err != nil {
		return fmt.Errorf("certs: writing %s: %w", crtPath, err)
	}
	if err := os.WriteFile(pemPath, keyPEM, 0600); err != nil {
		return fmt.Errorf("certs: writing %s: %w", pemPath, err)
	}

	log.WithFields(logrus.Fields{"server_crt": crtPath, "shell_key": pemPath}).Info("certs: credentials saved")
	return nil
}

func getBody(client *http.Client, url string) ([]byte, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, string(body))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return body, nil
}

// LoadTLSConfig builds the client-side TLS configuration described in
// spec.md §4.5: a CA pin from serverCrtPath and a client certificate/key
// pair from shellKeyPath (a PEM file containing both blocks).
func LoadTLSConfig(serverCrtPath, shellKeyPath string, verify bool) (*tls.Config, error) {
	caPEM, err := os.ReadFile(serverCrtPath)
	if err != nil {
		return nil, fmt.Errorf("certs: reading server crt %s: %w", serverCrtPath, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("certs: %s contains no usable certificates", serverCrtPath)
	}

	keyPEM, err := os.ReadFile(shellKeyPath)
	if err != nil {
		return nil, fmt.Errorf("certs: reading shell key %s: %w", shellKeyPath, err)
	}
	cert, err := tls.X509KeyPair(keyPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("certs: parsing client cert/key from %s: %w", shellKeyPath, err)
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		RootCAs:            pool,
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: !verify,
	}
	if !verify {
		logrus.Warn("certs: VERIFY_CRT is disabled; server certificate will not be validated")
	}
	return cfg, nil
}
