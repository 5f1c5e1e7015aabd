// Package brave provides a client for the Brave web search API
package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mclennan/buyradar/internal/common"
	"github.com/mclennan/buyradar/internal/interfaces"
	"github.com/mclennan/buyradar/internal/models"
)

const (
	DefaultBaseURL     = "https://api.search.brave.com/res/v1/web/search"
	DefaultTimeout     = 15 * time.Second
	DefaultResultCount = 5
)

// Client implements the WebSearchClient interface. Search is best-effort:
// every failure path returns an empty slice so callers never block on a
// missing or broken search provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Brave search client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ interfaces.WebSearchClient = (*Client)(nil)

type searchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
		} `json:"results"`
	} `json:"web"`
}

// Search returns recent results for the query, freshness-limited to the
// past month. Returns an empty slice on any failure, including a missing
// API key.
func (c *Client) Search(ctx context.Context, query string, count int) []models.SearchHit {
	if c.apiKey == "" {
		c.logger.Debug().Msg("Brave search skipped: no API key")
		return nil
	}
	if count <= 0 {
		count = DefaultResultCount
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("freshness", "pm")
	params.Set("text_decorations", "false")

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Brave search request build failed")
		return nil
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("Brave search failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("query", query).
			Msg("Brave search returned non-OK status")
		return nil
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("Brave search response decode failed")
		return nil
	}

	results := body.Web.Results
	if len(results) > count {
		results = results[:count]
	}

	hits := make([]models.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, models.SearchHit{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Age:         r.Age,
		})
	}

	c.logger.Debug().Str("query", query).Int("hits", len(hits)).Msg("Brave search complete")
	return hits
}
