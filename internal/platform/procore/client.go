package procore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tiergate/internal/platform/config"
)

// ErrNotFound marks an absent upstream resource. Fetch callers branch on it
// explicitly instead of treating absence as a transport failure.
var ErrNotFound = errors.New("procore: resource not found")

// APIError is any non-2xx response other than 404.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("procore: HTTP %d: %s", e.Status, e.Body)
}

// Client issues authenticated requests against the Procore REST API. Every
// request carries the bearer token and company-id header; an unauthorized
// response triggers exactly one token refresh and retry.
type Client struct {
	baseURL    string
	creds      *Credentials
	httpClient *http.Client
}

func NewClient(cfg config.ProcoreConfig, creds *Credentials) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Get fetches path with the given query and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, companyID int64, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, companyID, path, query, nil, out)
}

// Patch sends body as JSON to path. out may be nil when the response body is
// not needed.
func (c *Client) Patch(ctx context.Context, companyID int64, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, companyID, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method string, companyID int64, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	token := c.creds.Token()
	resp, err := c.send(ctx, method, companyID, path, query, payload, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if !c.creds.Refresh(ctx, token) {
			return &APIError{Status: http.StatusUnauthorized, Body: "token refresh failed"}
		}
		resp, err = c.send(ctx, method, companyID, path, query, payload, c.creds.Token())
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) send(ctx context.Context, method string, companyID int64, path string, query url.Values, payload []byte, token string) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Procore-Company-Id", strconv.FormatInt(companyID, 10))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}
