package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://serpapi.com"

// Client performs Google searches through SerpAPI.
type Client interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
}

// SearchResponse is the subset of the SerpAPI response the pipeline reads.
// KnowledgeGraph is kept loosely typed: its key casing varies per query.
type SearchResponse struct {
	KnowledgeGraph map[string]any  `json:"knowledge_graph"`
	AnswerBox      *AnswerBox      `json:"answer_box"`
	OrganicResults []OrganicResult `json:"organic_results"`
}

// AnswerBox is Google's inline answer panel.
type AnswerBox struct {
	Answer        string `json:"answer"`
	Snippet       string `json:"snippet"`
	Title         string `json:"title"`
	Result        string `json:"result"`
	ResultSnippet string `json:"result_snippet"`
	ResultTitle   string `json:"result_title"`
}

// Candidates returns the answer-box text fields worth scanning.
func (ab *AnswerBox) Candidates() []string {
	if ab == nil {
		return nil
	}
	var out []string
	for _, s := range []string{ab.Answer, ab.Snippet, ab.Title, ab.Result, ab.ResultSnippet, ab.ResultTitle} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// OrganicResult is a single organic search result.
type OrganicResult struct {
	Title         string       `json:"title"`
	Snippet       string       `json:"snippet"`
	Link          string       `json:"link"`
	DisplayedLink string       `json:"displayed_link"`
	Source        string       `json:"source"`
	RichSnippet   *RichSnippet `json:"rich_snippet"`
}

// RichSnippet holds structured extensions attached to a result.
type RichSnippet struct {
	Top *struct {
		Extensions []string `json:"extensions"`
	} `json:"top"`
}

// Extensions returns the rich-snippet extension strings, if any.
func (r OrganicResult) Extensions() []string {
	if r.RichSnippet == nil || r.RichSnippet.Top == nil {
		return nil
	}
	return r.RichSnippet.Top.Extensions
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

// WithNumResults overrides how many results each query requests.
func WithNumResults(n int) Option {
	return func(c *httpClient) {
		c.num = n
	}
}

// WithRateLimit overrides the default query rate limit.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	num     int
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		num:     10,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "serpapi: rate limiter wait")
	}

	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("num", strconv.Itoa(c.num))
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal response")
	}

	return &result, nil
}
