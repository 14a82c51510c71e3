package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a response body is read. A full-file
// rewrite of a large source file fits comfortably.
const maxResponseBytes = 16 << 20

// StatusError is returned when a backend answers with a non-2xx status.
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Backend, e.Code, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// poster issues JSON POST requests with a per-request timeout and a bounded
// number of attempts for transient failures.
type poster struct {
	backend      string
	client       *http.Client
	maxAttempts  int
	retryBackoff time.Duration
	// redact masks credentials embedded in request URLs before they appear
	// in errors or logs.
	redact func(string) string
}

func newPoster(backend string, timeout time.Duration, maxAttempts int, backoff time.Duration) *poster {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &poster{
		backend:      backend,
		client:       &http.Client{Timeout: timeout},
		maxAttempts:  maxAttempts,
		retryBackoff: backoff,
		redact:       func(s string) string { return s },
	}
}

// postJSON marshals payload, posts it to endpoint and returns the body of
// the first 2xx response.
func (p *poster) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s request: %w", p.backend, err)
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		data, err := p.once(ctx, endpoint, body)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, err
		}
		if attempt >= p.maxAttempts || ctx.Err() != nil {
			break
		}
		slog.Warn("Backend request failed; retrying",
			"backend", p.backend,
			"attempt", attempt,
			"max_attempts", p.maxAttempts,
			"error", err,
		)
		if p.retryBackoff > 0 {
			select {
			case <-time.After(p.retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (p *poster) once(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %s", p.backend, p.redact(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = p.redact(ue.URL)
		}
		return nil, fmt.Errorf("calling %s API: %w", p.backend, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", p.backend, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &StatusError{Backend: p.backend, Code: resp.StatusCode, Body: truncateForError(p.redact(msg), 300)}
	}
	return data, nil
}

// get issues a GET and reports whether it answered 200.
func (p *poster) get(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode == http.StatusOK
}

func truncateForError(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
