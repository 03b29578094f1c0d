package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiError is a non-2xx response. Message is the server's "error" field when
// present, otherwise the raw body.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type registryClient struct {
	baseURL string
	user    string
	http    *http.Client
}

func newClient(baseURL, user string) *registryClient {
	return &registryClient{
		baseURL: baseURL,
		user:    user,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do sends a request and returns the response of a 2xx status. Any other
// status is converted into an *apiError.
func (c *registryClient) do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.user != "" {
		req.Header.Set("X-Remote-User", c.user)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &apiError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(data))}
		var decoded struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &decoded) == nil && decoded.Error != "" {
			apiErr.Message = decoded.Error
		}
		return nil, apiErr
	}
	return resp, nil
}

func decodeInto(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode error: %w", err)
	}
	return nil
}

// getJSON performs a GET request and decodes the response.
func (c *registryClient) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	return decodeInto(resp, v)
}

// getBytes performs a GET request and returns the raw body.
func (c *registryClient) getBytes(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// sendJSON performs a request with a JSON body and decodes the response.
// A nil body sends no payload.
func (c *registryClient) sendJSON(ctx context.Context, method, path string, body, v any) error {
	var rdr io.Reader
	header := http.Header{}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		rdr = bytes.NewReader(data)
		header.Set("Content-Type", "application/json")
	}
	resp, err := c.do(ctx, method, path, rdr, header)
	if err != nil {
		return err
	}
	return decodeInto(resp, v)
}

// sendRaw posts data as-is with the given headers and decodes the response.
func (c *registryClient) sendRaw(ctx context.Context, path string, data []byte, header http.Header, v any) error {
	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(data), header)
	if err != nil {
		return err
	}
	return decodeInto(resp, v)
}
