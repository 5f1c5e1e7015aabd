package interfaces

import (
	"context"

	"github.com/mclennan/buyradar/internal/models"
)

// PriceService resolves price series for companies, reading the store first
// and falling through to the provider when data is stale or missing.
type PriceService interface {
	GetPriceSeries(ctx context.Context, companyID string, timeframe models.Timeframe) (*models.PriceSeriesResult, error)
}

// RadarService analyzes companies and serves the dashboard views.
type RadarService interface {
	// AnalyzeCompany runs a single company through the model and records
	// the verdict. A fallback verdict is recorded when parsing fails.
	AnalyzeCompany(ctx context.Context, companyID string) (*models.AnalysisResult, error)
	// Run analyzes the filtered company list starting at offset. When the
	// run would exceed its time budget the report carries Batched=true and
	// the NextOffset to resume from.
	Run(ctx context.Context, filter *models.RadarFilter, offset int) (*models.RadarRunReport, error)
	Radar(ctx context.Context, filter *models.RadarFilter) ([]*models.RadarCompany, error)
	FilterValues(ctx context.Context) (*models.RadarFilterValues, error)
	// LastRunReport returns the stored report of the most recent run.
	LastRunReport(ctx context.Context) (*models.RadarRunReport, error)
}
