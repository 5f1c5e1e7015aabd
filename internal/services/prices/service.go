// Package prices implements the cache-aside price series resolver.
package prices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mclennan/buyradar/internal/clients/alphavantage"
	"github.com/mclennan/buyradar/internal/common"
	"github.com/mclennan/buyradar/internal/interfaces"
	"github.com/mclennan/buyradar/internal/models"
)

// ErrNoSymbol is returned when a company has no ticker symbol to fetch by.
var ErrNoSymbol = errors.New("company has no ticker symbol")

// Service resolves price series for companies: stored bars are served while
// fresh, the provider is hit when they are stale or missing, and stale bars
// are served with a warning when the provider fails.
type Service struct {
	companies interfaces.CompanyStore
	prices    interfaces.PriceStore
	client    interfaces.PriceDataClient
	logger    *common.Logger

	now func() time.Time
}

// NewService creates a price resolver service.
func NewService(
	companies interfaces.CompanyStore,
	prices interfaces.PriceStore,
	client interfaces.PriceDataClient,
	logger *common.Logger,
) *Service {
	return &Service{
		companies: companies,
		prices:    prices,
		client:    client,
		logger:    logger,
		now:       time.Now,
	}
}

var _ interfaces.PriceService = (*Service)(nil)

// GetPriceSeries resolves the series for a company and timeframe.
func (s *Service) GetPriceSeries(ctx context.Context, companyID string, timeframe models.Timeframe) (*models.PriceSeriesResult, error) {
	company, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("company %s: %w", companyID, err)
	}
	if company.Symbol == "" {
		return nil, fmt.Errorf("company %s: %w", companyID, ErrNoSymbol)
	}

	spec := timeframe.Spec()
	now := s.now()
	from := now.AddDate(0, 0, -spec.LookbackDays)

	stored, err := s.prices.GetBars(ctx, companyID, from, now)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored bars for %s: %w", companyID, err)
	}

	if len(stored) > 0 {
		lastBar := stored[len(stored)-1].Timestamp
		if now.Sub(lastBar) < spec.Freshness {
			s.logger.Debug().
				Str("company_id", companyID).
				Str("timeframe", string(timeframe)).
				Int("bars", len(stored)).
				Msg("Serving fresh stored bars")
			return &models.PriceSeriesResult{
				Data: stored,
				Metadata: models.PriceMetadata{
					Symbol:     company.Symbol,
					LastUpdate: lastBar,
					DataSource: models.SourceDatabase,
					IsFresh:    true,
				},
			}, nil
		}
	}

	series, fetchErr := s.client.FetchSeries(ctx, company.NormalizedSymbol(), spec.Period, spec.OutputSize)
	if fetchErr != nil {
		return s.serveStale(company, companyID, stored, fetchErr)
	}

	if err := s.prices.UpsertBars(ctx, companyID, series.Bars); err != nil {
		return nil, fmt.Errorf("failed to store bars for %s: %w", companyID, err)
	}

	windowed := windowBars(series.Bars, from, now)

	s.logger.Info().
		Str("company_id", companyID).
		Str("timeframe", string(timeframe)).
		Int("fetched", len(series.Bars)).
		Int("windowed", len(windowed)).
		Msg("Price series refreshed from provider")

	return &models.PriceSeriesResult{
		Data: windowed,
		Metadata: models.PriceMetadata{
			Symbol:     company.Symbol,
			LastUpdate: now,
			DataSource: models.SourceAPI,
			IsFresh:    true,
		},
	}, nil
}

// serveStale falls back to the bars already read when the provider fails.
// Only when nothing is stored does the provider error propagate.
func (s *Service) serveStale(company *models.Company, companyID string, stored []models.PriceBar, fetchErr error) (*models.PriceSeriesResult, error) {
	if len(stored) == 0 {
		return nil, fetchErr
	}

	code := alphavantage.ErrorCodeOf(fetchErr)
	s.logger.Warn().
		Str("company_id", companyID).
		Str("error_code", string(code)).
		Msg("Provider fetch failed, serving stale bars")

	var warning string
	if code == alphavantage.ErrRateLimit {
		warning = "Serving cached data: provider rate limit reached"
	} else {
		warning = fmt.Sprintf("Serving cached data: provider error (%s)", code)
	}

	return &models.PriceSeriesResult{
		Data: stored,
		Metadata: models.PriceMetadata{
			Symbol:     company.Symbol,
			LastUpdate: stored[len(stored)-1].Timestamp,
			DataSource: models.SourceDatabase,
			IsFresh:    false,
			Warning:    warning,
		},
	}, nil
}

func windowBars(bars []models.PriceBar, from, to time.Time) []models.PriceBar {
	windowed := make([]models.PriceBar, 0, len(bars))
	for _, b := range bars {
		if b.Timestamp.Before(from) || b.Timestamp.After(to) {
			continue
		}
		windowed = append(windowed, b)
	}
	return windowed
}
