package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transport handles low-level HTTP and authentication.
type Transport struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

// NewTransport creates a transport with base URL, bearer token and timeout.
// A zero timeout leaves requests bounded only by the caller's context.
func NewTransport(baseURL, token string, timeout time.Duration) *Transport {
	return &Transport{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AuthToken:  token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// buildURL joins path onto the base URL and adds query params.
func (t *Transport) buildURL(path string, query map[string]string) (string, error) {
	u, err := url.Parse(t.BaseURL + path)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PostJSON sends data as JSON and decodes a JSON response into out (if non-nil).
func (t *Transport) PostJSON(ctx context.Context, op, path string, data, out any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}
	return t.do(ctx, op, http.MethodPost, path, nil, bytes.NewReader(body), out)
}

// GetJSON sends a GET request and decodes the JSON response into out.
func (t *Transport) GetJSON(ctx context.Context, op, path string, query map[string]string, out any) error {
	return t.do(ctx, op, http.MethodGet, path, query, nil, out)
}

// Probe issues a HEAD request against path and reports whether any HTTP
// response came back. Status codes are irrelevant: reaching the server is
// what counts.
func (t *Transport) Probe(ctx context.Context, path string) error {
	fullURL, err := t.buildURL(path, nil)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fullURL, nil)
	if err != nil {
		return err
	}
	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (t *Transport) do(ctx context.Context, op, method, path string, query map[string]string, body io.Reader, out any) error {
	fullURL, err := t.buildURL(path, query)
	if err != nil {
		return &Error{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.AuthToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.AuthToken))
	}

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 300 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage extracts {"error": "..."} or {"message": "..."} when present.
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(data))
}
