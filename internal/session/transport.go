package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"golang.org/x/net/publicsuffix"

	"scholarportal.org/internal/obs"
)

const maxResponseBytes = 1 << 20

// errorBody is the JSON shape of non-2xx answers.
type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func newJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// call describes one API request and its failure contract.
type call struct {
	op           string
	method       string
	path         string
	body         any
	fallback     string
	withDetail   bool
	// optionalBody accepts an empty 2xx body (acknowledgements).
	optionalBody bool
}

// do executes c and decodes a 2xx body into out (when non-nil). Every failure is an
// *AuthError: ErrRejected for error statuses, ErrNetwork when no answer was obtained.
func (s *Store) do(ctx context.Context, c call, out any) error {
	var reader io.Reader
	if c.body != nil {
		payload, err := json.Marshal(c.body)
		if err != nil {
			return &AuthError{Op: c.op, Message: c.fallback, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, s.endpoint(c.path), reader)
	if err != nil {
		return &AuthError{Op: c.op, Message: c.fallback, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return s.networkError(c.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return s.networkError(c.op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rejection(c, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if c.optionalBody {
			return nil
		}
		return s.networkError(c.op, fmt.Errorf("empty response body"))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return s.networkError(c.op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (s *Store) networkError(op string, err error) *AuthError {
	obs.Warn("auth request failed", map[string]any{
		"op":    op,
		"base":  s.base,
		"error": err,
	})
	return &AuthError{Op: op, Message: NetworkMessage, Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
}

func rejection(c call, status int, data []byte) *AuthError {
	var body errorBody
	_ = json.Unmarshal(data, &body)

	details := detailText(body.Details)
	msg := strings.TrimSpace(body.Error)
	if msg == "" {
		msg = c.fallback
	}
	if c.withDetail && details != "" {
		msg = msg + ": " + details
	}
	return &AuthError{
		Op:      c.op,
		Status:  status,
		Message: msg,
		Details: details,
		Err:     fmt.Errorf("%w: %s %s -> %d", ErrRejected, c.method, c.path, status),
	}
}

// detailText renders the optional details field, which servers send as a string or
// as arbitrary JSON.
func detailText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func (s *Store) endpoint(path string) string {
	return s.base + path
}
