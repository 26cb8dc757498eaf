package pdl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.peopledatalabs.com/v5"

// Client performs company lookups against the People Data Labs API.
type Client interface {
	EnrichCompany(ctx context.Context, req EnrichRequest) (*EnrichResponse, error)
}

// EnrichRequest is the request body for POST /company/enrich.
type EnrichRequest struct {
	Website          string `json:"website"`
	IncludeIfMatched bool   `json:"include_if_matched,omitempty"`
}

// EnrichResponse carries the decoded response body. PDL sometimes nests
// the payload under a "data" key and sometimes returns it at the top
// level, so the body is kept loosely typed and unwrapped by Payload.
type EnrichResponse struct {
	Status int
	Body   map[string]any
}

// Payload returns the company record, unwrapping the optional "data"
// nesting.
func (r *EnrichResponse) Payload() map[string]any {
	if r == nil || r.Body == nil {
		return nil
	}
	if data, ok := r.Body["data"].(map[string]any); ok {
		return data
	}
	return r.Body
}

// StatusError is returned for non-2xx responses and carries the status
// and raw body for the caller's debug descriptor.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return eris.Errorf("pdl: unexpected status %d: %s", e.StatusCode, e.Body).Error()
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a People Data Labs API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) EnrichCompany(ctx context.Context, req EnrichRequest) (*EnrichResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "pdl: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/company/enrich", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "pdl: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("User-Agent", "tally-enricher/1.0")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "pdl: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "pdl: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var decoded map[string]any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, eris.Wrap(err, "pdl: unmarshal response")
	}

	return &EnrichResponse{Status: resp.StatusCode, Body: decoded}, nil
}
