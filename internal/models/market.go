// Package models defines data structures for buyradar
package models

import (
	"fmt"
	"time"
)

// Timeframe is a request-time chart window. It is never persisted.
type Timeframe string

const (
	Timeframe1D  Timeframe = "1D"
	Timeframe1W  Timeframe = "1W"
	Timeframe1M  Timeframe = "1M"
	Timeframe3M  Timeframe = "3M"
	Timeframe6M  Timeframe = "6M"
	Timeframe1Y  Timeframe = "1Y"
	TimeframeAll Timeframe = "ALL"
)

// Timeframes lists all valid timeframes in display order.
var Timeframes = []Timeframe{
	Timeframe1D, Timeframe1W, Timeframe1M,
	Timeframe3M, Timeframe6M, Timeframe1Y, TimeframeAll,
}

// SeriesPeriod selects the provider series granularity.
type SeriesPeriod string

const (
	PeriodDaily  SeriesPeriod = "daily"
	PeriodWeekly SeriesPeriod = "weekly"
)

// OutputSize is the provider output-size hint.
type OutputSize string

const (
	OutputCompact OutputSize = "compact"
	OutputFull    OutputSize = "full"
)

// TimeframeSpec maps a timeframe to its lookback window, freshness threshold,
// and provider fetch parameters. Intraday granularity is deliberately never
// used: the provider free tier only serves daily and weekly series, so the
// short timeframes show daily bars over a short window.
type TimeframeSpec struct {
	LookbackDays int
	Freshness    time.Duration
	Period       SeriesPeriod
	OutputSize   OutputSize
}

var timeframeSpecs = map[Timeframe]TimeframeSpec{
	Timeframe1D:  {LookbackDays: 5, Freshness: 5 * time.Minute, Period: PeriodDaily, OutputSize: OutputCompact},
	Timeframe1W:  {LookbackDays: 7, Freshness: 15 * time.Minute, Period: PeriodDaily, OutputSize: OutputCompact},
	Timeframe1M:  {LookbackDays: 30, Freshness: time.Hour, Period: PeriodDaily, OutputSize: OutputCompact},
	Timeframe3M:  {LookbackDays: 90, Freshness: 24 * time.Hour, Period: PeriodDaily, OutputSize: OutputFull},
	Timeframe6M:  {LookbackDays: 180, Freshness: 24 * time.Hour, Period: PeriodDaily, OutputSize: OutputFull},
	Timeframe1Y:  {LookbackDays: 365, Freshness: 24 * time.Hour, Period: PeriodDaily, OutputSize: OutputFull},
	TimeframeAll: {LookbackDays: 3650, Freshness: 7 * 24 * time.Hour, Period: PeriodWeekly, OutputSize: OutputCompact},
}

// Valid reports whether the timeframe is one of the known values.
func (t Timeframe) Valid() bool {
	_, ok := timeframeSpecs[t]
	return ok
}

// Spec returns the lookback/freshness/provider mapping for the timeframe.
// Unknown timeframes get the 1M spec.
func (t Timeframe) Spec() TimeframeSpec {
	if spec, ok := timeframeSpecs[t]; ok {
		return spec
	}
	return timeframeSpecs[Timeframe1M]
}

// PriceBar is one OHLCV observation for a company.
type PriceBar struct {
	CompanyID string    `json:"company_id"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Validate checks the OHLC invariant: prices positive, volume non-negative,
// low ≤ min(open, close) and high ≥ max(open, close).
func (b *PriceBar) Validate() error {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("non-positive price in bar at %s", b.Timestamp.Format("2006-01-02"))
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume in bar at %s", b.Timestamp.Format("2006-01-02"))
	}
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("OHLC invariant violated in bar at %s", b.Timestamp.Format("2006-01-02"))
	}
	return nil
}

// SeriesMeta describes a provider time series.
type SeriesMeta struct {
	Symbol        string `json:"symbol"`
	LastRefreshed string `json:"last_refreshed"`
	TimeZone      string `json:"time_zone"`
	Interval      string `json:"interval,omitempty"`
}

// PriceSeries is the parsed result of one provider fetch, sorted ascending
// by timestamp. CompanyID is unset; the provider only knows the symbol.
type PriceSeries struct {
	Bars []PriceBar `json:"bars"`
	Meta SeriesMeta `json:"meta"`
}

// DataSource identifies where a resolved price series came from.
type DataSource string

const (
	SourceDatabase DataSource = "database"
	SourceAPI      DataSource = "api"
)

// PriceMetadata describes a resolved price series.
type PriceMetadata struct {
	Symbol     string     `json:"symbol"`
	LastUpdate time.Time  `json:"lastUpdate"`
	DataSource DataSource `json:"dataSource"`
	IsFresh    bool       `json:"isFresh"`
	Warning    string     `json:"warning,omitempty"`
}

// PriceSeriesResult is the resolver's response: the windowed series plus
// provenance metadata for the chart UI.
type PriceSeriesResult struct {
	Data     []PriceBar    `json:"data"`
	Metadata PriceMetadata `json:"metadata"`
}

// SearchHit is one web search result used as analysis context.
type SearchHit struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age,omitempty"`
}
