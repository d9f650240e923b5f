// Package clients holds the HTTP clients for the conference, event and
// transcoding (tq) services. Every call is bounded by a configured timeout;
// calls are never retried here; redelivery is the upstream queue's job.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrTimeout reports that a service call exceeded its configured deadline.
var ErrTimeout = errors.New("service call timed out")

// StatusError reports a non-success HTTP status from a service.
type StatusError struct {
	Service string
	Method  string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Service, e.Method, e.Code)
}

// Options configures a service client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// client is the shared HTTP plumbing for the three service clients.
type client struct {
	service string
	opts    Options
	hc      *http.Client
	logger  *zap.Logger
}

func newClient(service string, opts Options, logger *zap.Logger) client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return client{service: service, opts: opts, hc: http.DefaultClient, logger: logger}
}

// call issues one JSON request. in may be nil (no body); out may be nil
// (response body discarded). The response status must equal wantStatus.
func (c *client) call(ctx context.Context, method, path string, in, out interface{}, wantStatus int) error {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: marshal request: %w", c.service, method, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", c.service, method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s %s %s: %w", c.service, method, path, ErrTimeout)
		}
		return fmt.Errorf("%s %s %s: %w", c.service, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return &StatusError{Service: c.service, Method: method + " " + path, Code: resp.StatusCode}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s %s: decode response: %w", c.service, method, path, err)
		}
	}
	return nil
}
