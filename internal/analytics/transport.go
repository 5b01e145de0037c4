package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxResponseBytes = 1 << 20

// Transport is the only place client code touches the network. Every
// failure mode (dial error, non-2xx status, undecodable body) is reported
// as unavailability, never as an error value crossing this boundary.
// Retry policy, if any, belongs to the caller.
type Transport struct {
	baseUrl    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewTransport(baseUrl string, timeout time.Duration, logger *slog.Logger) *Transport {
	return &Transport{
		baseUrl:    baseUrl,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Get fetches baseUrl+path and decodes the body into out. Returns false if
// the response never arrived or could not be decoded.
func (t Transport) Get(ctx context.Context, path string, out any) bool {
	return t.do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out (out may be
// nil). Returns false on any failure.
func (t Transport) Post(ctx context.Context, path string, body any, out any) bool {
	return t.do(ctx, http.MethodPost, path, body, out)
}

func (t Transport) do(ctx context.Context, method string, path string, body any, out any) bool {
	url := t.baseUrl + path

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.logger.WarnContext(ctx, "failed to encode request body", "url", url, "error", err)
			return false
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to build request", "url", url, "error", err)
		return false
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.WarnContext(ctx, "analytics request failed", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.logger.WarnContext(ctx, "analytics request failed", "url", url, "error", fmt.Sprintf("status %d", resp.StatusCode))
		return false
	}

	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return true
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		t.logger.WarnContext(ctx, "failed to decode response body", "url", url, "error", err)
		return false
	}

	return true
}
