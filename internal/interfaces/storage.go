package interfaces

import (
	"context"
	"time"

	"github.com/mclennan/buyradar/internal/models"
)

// StorageManager owns the database connection and exposes the stores.
type StorageManager interface {
	Close() error
	Health(ctx context.Context) error
	CompanyStore() CompanyStore
	PriceStore() PriceStore
	AnalysisStore() AnalysisStore
	SystemStore() SystemStore
}

// CompanyStore persists tracked companies.
type CompanyStore interface {
	UpsertCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	GetCompanyBySymbol(ctx context.Context, symbol string) (*models.Company, error)
	// ListCompanies returns companies matching the filter, ordered by name
	// ascending so batch offsets are stable across invocations.
	ListCompanies(ctx context.Context, filter *models.RadarFilter) ([]*models.Company, error)
	DistinctFilterValues(ctx context.Context) (*models.RadarFilterValues, error)
	DeleteCompany(ctx context.Context, id string) error
}

// PriceStore persists OHLCV bars.
type PriceStore interface {
	// UpsertBars writes bars keyed by company and timestamp; re-fetching a
	// window replaces overlapping bars rather than duplicating them.
	UpsertBars(ctx context.Context, companyID string, bars []models.PriceBar) error
	// GetBars returns bars in [from, to] ordered by timestamp ascending.
	GetBars(ctx context.Context, companyID string, from, to time.Time) ([]models.PriceBar, error)
}

// AnalysisStore persists model verdicts. Inserts only; history is kept.
type AnalysisStore interface {
	InsertAnalysis(ctx context.Context, result *models.AnalysisResult) error
	// GetLatestAnalyses returns the most recent verdict per company.
	GetLatestAnalyses(ctx context.Context) (map[string]*models.AnalysisResult, error)
	ListAnalyses(ctx context.Context, companyID string, limit int) ([]*models.AnalysisResult, error)
}

// SystemStore is a small KV table for API keys and run bookkeeping.
type SystemStore interface {
	GetSystemKV(ctx context.Context, key string) (string, error)
	SetSystemKV(ctx context.Context, key, value string) error
}
