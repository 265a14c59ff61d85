package router

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const httpHandlerTimeout = 30 * time.Second

type httpRequestPayload struct {
	Verb    string            `json:"verb"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

var allowedVerbs = map[string]string{
	"get":    http.MethodGet,
	"post":   http.MethodPost,
	"put":    http.MethodPut,
	"delete": http.MethodDelete,
}

// HandleHTTP implements the `http` RPC: issue one outbound HTTP request
// and return the raw response body.
func HandleHTTP(log logrus.FieldLogger, folder string, payload []byte) ([]byte, error) {
	var req httpRequestPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("http: parsing request JSON: %w", err)
	}

	method, ok := allowedVerbs[req.Verb]
	if !ok {
		return nil, fmt.Errorf("http: unsupported verb %q", req.Verb)
	}
	if req.URL == "" {
		return nil, fmt.Errorf("http: missing url")
	}

	httpReq, err := http.NewRequest(method, req.URL, strings.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("http: building request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := &http.Client{Timeout: httpHandlerTimeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http: %s %s: %w", req.Verb, req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http: reading response body: %w", err)
	}
	log.WithFields(logrus.Fields{"verb": req.Verb, "url": req.URL, "status": resp.StatusCode}).Debug("http: request completed")
	return body, nil
}
