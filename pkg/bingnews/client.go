// Package bingnews is a minimal Bing News Search v7 client. Only the
// /news/search endpoint is covered; results come back most-recent-first.
package bingnews

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://api.bing.microsoft.com/v7.0"
	defaultMarket  = "en-US"
)

// Client performs Bing News Search operations.
type Client interface {
	Search(ctx context.Context, query string, count int) (*SearchResponse, error)
}

// SearchResponse is the response from /news/search.
type SearchResponse struct {
	Value []Article `json:"value"`
}

// Article is one news result.
type Article struct {
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Description   string     `json:"description"`
	DatePublished string     `json:"datePublished"`
	Provider      []Provider `json:"provider"`
}

// Provider identifies the publishing organization.
type Provider struct {
	Name string `json:"name"`
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

// WithMarket overrides the default en-US market code.
func WithMarket(mkt string) Option {
	return func(c *httpClient) {
		c.market = mkt
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	market  string
	http    *http.Client
}

// NewClient creates a Bing News Search client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		market:  defaultMarket,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search runs one news query sorted most-recent-first, limited to count
// items from the past month.
func (c *httpClient) Search(ctx context.Context, query string, count int) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))
	q.Set("mkt", c.market)
	q.Set("sortBy", "Date")
	q.Set("freshness", "Month")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/news/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "bingnews: create request")
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "bingnews: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "bingnews: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("bingnews: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "bingnews: unmarshal response")
	}

	return &result, nil
}
