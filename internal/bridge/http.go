package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"parkmeter/internal/models"
	"parkmeter/internal/repo"
)

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTP reaches a remote parkmeter instance over its HTTP surface. Every
// call carries a bounded timeout; a timeout is classified as Unavailable.
type HTTP struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
	timeout time.Duration
}

// NewHTTP builds the HTTP bridge.
func NewHTTP(baseURL, apiKey string, timeout time.Duration, client HTTPDoer) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		timeout: timeout,
	}
}

// OpenSession posts the open to the remote ledger.
func (h *HTTP) OpenSession(ctx context.Context, req models.OpenRequest) (*models.ParkingSession, error) {
	var session models.ParkingSession
	if err := h.call(ctx, http.MethodPost, "/parking/start", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CloseSession posts the close to the remote ledger.
func (h *HTTP) CloseSession(ctx context.Context, req models.CloseRequest) (*models.CloseResult, error) {
	var result models.CloseResult
	if err := h.call(ctx, http.MethodPost, "/parking/finish", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListActive fetches the remote active snapshot.
func (h *HTTP) ListActive(ctx context.Context) ([]models.ParkingSession, error) {
	var payload struct {
		Sessions []models.ParkingSession `json:"sessions"`
	}
	if err := h.call(ctx, http.MethodGet, "/parking/active", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Sessions, nil
}

func (h *HTTP) call(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var reader io.Reader
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

// classifyStatus maps remote status codes onto the bridge failure classes
// and the shared ledger sentinels.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusBadRequest:
		return repo.ErrEmptyPlate
	case status == http.StatusNotFound:
		return repo.ErrSessionNotFound
	case status == http.StatusConflict:
		return repo.ErrDuplicateSession
	case status == http.StatusGone:
		return repo.ErrSessionClosed
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	}
}

// HTTPProbe checks the remote health endpoint to decide online/offline.
type HTTPProbe struct {
	baseURL string
	client  HTTPDoer
	timeout time.Duration
}

// NewHTTPProbe builds a probe against the bridge base URL.
func NewHTTPProbe(baseURL string, timeout time.Duration, client HTTPDoer) *HTTPProbe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPProbe{baseURL: strings.TrimRight(baseURL, "/"), client: client, timeout: timeout}
}

// Online reports whether the health endpoint answered at all. Any HTTP
// response counts as connectivity, including an error status.
func (p *HTTPProbe) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
