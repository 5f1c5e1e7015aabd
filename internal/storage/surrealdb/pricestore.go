package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/mclennan/buyradar/internal/common"
	"github.com/mclennan/buyradar/internal/models"
)

type PriceStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewPriceStore(db *surrealdb.DB, logger *common.Logger) *PriceStore {
	return &PriceStore{
		db:     db,
		logger: logger,
	}
}

// price_bars ID format: <companyID>_<unix timestamp>
func barID(companyID string, ts time.Time) string {
	return fmt.Sprintf("%s_%d", companyID, ts.UTC().Unix())
}

// UpsertBars writes bars keyed by company and timestamp. Re-fetching an
// overlapping window replaces bars in place instead of duplicating them.
func (s *PriceStore) UpsertBars(ctx context.Context, companyID string, bars []models.PriceBar) error {
	sql := "UPSERT type::record('price_bars', $id) CONTENT $bar"

	for i := range bars {
		bars[i].CompanyID = companyID
		vars := map[string]any{"id": barID(companyID, bars[i].Timestamp), "bar": bars[i]}

		var lastErr error
		for attempt := 1; attempt <= 3; attempt++ {
			_, lastErr = surrealdb.Query[[]models.PriceBar](ctx, s.db, sql, vars)
			if lastErr == nil {
				break
			}
		}
		if lastErr != nil {
			return fmt.Errorf("failed to upsert bar after retries: %w", lastErr)
		}
	}

	s.logger.Debug().
		Str("company_id", companyID).
		Int("bars", len(bars)).
		Msg("Price bars upserted")
	return nil
}

// GetBars returns bars in [from, to] ordered by timestamp ascending.
func (s *PriceStore) GetBars(ctx context.Context, companyID string, from, to time.Time) ([]models.PriceBar, error) {
	sql := "SELECT * FROM price_bars WHERE company_id = $company_id AND timestamp >= $from AND timestamp <= $to ORDER BY timestamp ASC"
	vars := map[string]any{
		"company_id": companyID,
		"from":       from.UTC(),
		"to":         to.UTC(),
	}

	results, err := surrealdb.Query[[]models.PriceBar](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars: %w", err)
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return nil, nil
}
