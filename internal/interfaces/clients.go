// Package interfaces defines the contracts between buyradar components.
package interfaces

import (
	"context"

	"github.com/mclennan/buyradar/internal/models"
)

// PriceDataClient fetches OHLCV series from a market data provider.
type PriceDataClient interface {
	// FetchSeries retrieves the series for a symbol at the given period and
	// output size. Errors are typed so callers can distinguish rate limits
	// and unknown symbols from transport failures.
	FetchSeries(ctx context.Context, symbol string, period models.SeriesPeriod, size models.OutputSize) (*models.PriceSeries, error)
}

// WebSearchClient returns recent web results for a query. Implementations
// are best-effort: any failure yields an empty slice and a nil error so a
// missing search provider never blocks analysis.
type WebSearchClient interface {
	Search(ctx context.Context, query string, count int) []models.SearchHit
}

// ModelClient generates text from a prompt using a language model.
type ModelClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}
