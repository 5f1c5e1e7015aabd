// Package alphavantage provides a client for the Alpha Vantage API
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mclennan/buyradar/internal/common"
	"github.com/mclennan/buyradar/internal/interfaces"
	"github.com/mclennan/buyradar/internal/models"
)

const (
	DefaultBaseURL   = "https://www.alphavantage.co/query"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per minute (free tier)
)

// ErrorCode classifies provider failures so callers can decide whether to
// serve stale data, surface a 404, or back off.
type ErrorCode string

const (
	ErrInvalidSymbol ErrorCode = "INVALID_SYMBOL"
	ErrRateLimit     ErrorCode = "RATE_LIMIT"
	ErrAPI           ErrorCode = "API_ERROR"
	ErrNetwork       ErrorCode = "NETWORK_ERROR"
)

// APIError represents a classified Alpha Vantage failure.
type APIError struct {
	Code    ErrorCode
	Message string
	Symbol  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alphavantage: %s for %s: %s", e.Code, e.Symbol, e.Message)
}

// ErrorCodeOf extracts the classification from an error, defaulting to
// NETWORK_ERROR for anything that is not an APIError.
func ErrorCodeOf(err error) ErrorCode {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Code
	}
	return ErrNetwork
}

// Client implements the PriceDataClient interface
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
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

// WithRateLimit sets the rate limit in requests per minute.
func WithRateLimit(requestsPerMinute int) ClientOption {
	return func(c *Client) {
		if requestsPerMinute <= 0 {
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/DefaultRateLimit), 1),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ interfaces.PriceDataClient = (*Client)(nil)

// seriesKey is the JSON key holding the bar map for each function.
func seriesKey(period models.SeriesPeriod) (function, key string) {
	switch period {
	case models.PeriodWeekly:
		return "TIME_SERIES_WEEKLY", "Weekly Time Series"
	default:
		return "TIME_SERIES_DAILY", "Time Series (Daily)"
	}
}

// FetchSeries retrieves an OHLCV series and classifies provider failures.
// The response body is inspected before parsing: Alpha Vantage signals
// errors with a 200 status and an "Error Message", "Note", or "Information"
// field instead of the series payload.
func (c *Client) FetchSeries(ctx context.Context, symbol string, period models.SeriesPeriod, size models.OutputSize) (*models.PriceSeries, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	function, key := seriesKey(period)

	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", symbol)
	params.Set("outputsize", string(size))
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Str("function", function).
		Str("outputsize", string(size)).
		Msg("Alpha Vantage request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Code: ErrNetwork, Message: err.Error(), Symbol: symbol}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Code:    ErrNetwork,
			Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
			Symbol:  symbol,
		}
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &APIError{Code: ErrAPI, Message: "malformed response body", Symbol: symbol}
	}

	if apiErr := classifyBody(raw, symbol); apiErr != nil {
		return nil, apiErr
	}

	series, err := parseSeries(raw, key, symbol)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Int("bars", len(series.Bars)).
		Msg("Alpha Vantage series fetched")

	return series, nil
}

// classifyBody maps Alpha Vantage's in-band error fields to error codes.
func classifyBody(raw map[string]json.RawMessage, symbol string) *APIError {
	if msg, ok := stringField(raw, "Error Message"); ok {
		return &APIError{Code: ErrInvalidSymbol, Message: msg, Symbol: symbol}
	}
	if msg, ok := stringField(raw, "Note"); ok {
		return &APIError{Code: ErrRateLimit, Message: msg, Symbol: symbol}
	}
	if msg, ok := stringField(raw, "Information"); ok {
		code := ErrAPI
		if strings.Contains(strings.ToLower(msg), "rate limit") {
			code = ErrRateLimit
		}
		return &APIError{Code: code, Message: msg, Symbol: symbol}
	}
	return nil
}

func stringField(raw map[string]json.RawMessage, key string) (string, bool) {
	data, ok := raw[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false
	}
	return s, true
}

// rawBar matches Alpha Vantage's numbered field naming.
type rawBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type rawMeta struct {
	Symbol        string `json:"2. Symbol"`
	LastRefreshed string `json:"3. Last Refreshed"`
	TimeZone      string `json:"5. Time Zone"`
}

func parseSeries(raw map[string]json.RawMessage, key, symbol string) (*models.PriceSeries, error) {
	metaData, ok := raw["Meta Data"]
	if !ok {
		return nil, &APIError{Code: ErrAPI, Message: "missing Meta Data", Symbol: symbol}
	}
	seriesData, ok := raw[key]
	if !ok {
		return nil, &APIError{Code: ErrAPI, Message: fmt.Sprintf("missing %q", key), Symbol: symbol}
	}

	var meta rawMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, &APIError{Code: ErrAPI, Message: "malformed Meta Data", Symbol: symbol}
	}

	var entries map[string]rawBar
	if err := json.Unmarshal(seriesData, &entries); err != nil {
		return nil, &APIError{Code: ErrAPI, Message: "malformed time series", Symbol: symbol}
	}

	bars := make([]models.PriceBar, 0, len(entries))
	for date, entry := range entries {
		bar, err := parseBar(date, entry)
		if err != nil {
			return nil, &APIError{Code: ErrAPI, Message: err.Error(), Symbol: symbol}
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	return &models.PriceSeries{
		Bars: bars,
		Meta: models.SeriesMeta{
			Symbol:        meta.Symbol,
			LastRefreshed: meta.LastRefreshed,
			TimeZone:      meta.TimeZone,
		},
	}, nil
}

func parseBar(date string, entry rawBar) (models.PriceBar, error) {
	ts, err := time.Parse("2006-01-02", date)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("bad date %q: %w", date, err)
	}

	open, err := strconv.ParseFloat(entry.Open, 64)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("bad open at %s", date)
	}
	high, err := strconv.ParseFloat(entry.High, 64)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("bad high at %s", date)
	}
	low, err := strconv.ParseFloat(entry.Low, 64)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("bad low at %s", date)
	}
	closePrice, err := strconv.ParseFloat(entry.Close, 64)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("bad close at %s", date)
	}
	volume, err := strconv.ParseInt(entry.Volume, 10, 64)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("bad volume at %s", date)
	}

	bar := models.PriceBar{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}
	if err := bar.Validate(); err != nil {
		return models.PriceBar{}, err
	}
	return bar, nil
}
