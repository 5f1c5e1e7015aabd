package prices

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mclennan/buyradar/internal/clients/alphavantage"
	"github.com/mclennan/buyradar/internal/common"
	"github.com/mclennan/buyradar/internal/models"
)

// mockCompanyStore serves a fixed company set.
type mockCompanyStore struct {
	companies map[string]*models.Company
}

func (m *mockCompanyStore) UpsertCompany(ctx context.Context, c *models.Company) error {
	m.companies[c.ID] = c
	return nil
}

func (m *mockCompanyStore) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return c, nil
}

func (m *mockCompanyStore) GetCompanyBySymbol(ctx context.Context, symbol string) (*models.Company, error) {
	for _, c := range m.companies {
		if c.Symbol == symbol {
			return c, nil
		}
	}
	return nil, errors.New("record not found")
}

func (m *mockCompanyStore) ListCompanies(ctx context.Context, filter *models.RadarFilter) ([]*models.Company, error) {
	return nil, nil
}

func (m *mockCompanyStore) DistinctFilterValues(ctx context.Context) (*models.RadarFilterValues, error) {
	return &models.RadarFilterValues{}, nil
}

func (m *mockCompanyStore) DeleteCompany(ctx context.Context, id string) error {
	delete(m.companies, id)
	return nil
}

// mockPriceStore keeps bars in memory per company.
type mockPriceStore struct {
	bars       map[string][]models.PriceBar
	upsertCall int
}

func (m *mockPriceStore) UpsertBars(ctx context.Context, companyID string, bars []models.PriceBar) error {
	m.upsertCall++
	existing := map[int64]models.PriceBar{}
	for _, b := range m.bars[companyID] {
		existing[b.Timestamp.Unix()] = b
	}
	for _, b := range bars {
		b.CompanyID = companyID
		existing[b.Timestamp.Unix()] = b
	}
	merged := make([]models.PriceBar, 0, len(existing))
	for _, b := range existing {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp.Before(merged[j].Timestamp) })
	m.bars[companyID] = merged
	return nil
}

func (m *mockPriceStore) GetBars(ctx context.Context, companyID string, from, to time.Time) ([]models.PriceBar, error) {
	var out []models.PriceBar
	for _, b := range m.bars[companyID] {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// mockPriceClient returns a canned series or error and counts calls.
type mockPriceClient struct {
	series *models.PriceSeries
	err    error
	calls  int
}

func (m *mockPriceClient) FetchSeries(ctx context.Context, symbol string, period models.SeriesPeriod, size models.OutputSize) (*models.PriceSeries, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.series, nil
}

var testNow = time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

// barsEndingAt builds daily bars whose newest bar sits exactly at end.
func barsEndingAt(end time.Time, days int) []models.PriceBar {
	bars := make([]models.PriceBar, 0, days)
	for i := days - 1; i >= 0; i-- {
		bars = append(bars, models.PriceBar{
			Timestamp: end.AddDate(0, 0, -i),
			Open:      10.0, High: 11.0, Low: 9.5, Close: 10.5, Volume: 100000,
		})
	}
	return bars
}

type fixture struct {
	service   *Service
	companies *mockCompanyStore
	prices    *mockPriceStore
	client    *mockPriceClient
}

func newFixture() *fixture {
	f := &fixture{
		companies: &mockCompanyStore{companies: map[string]*models.Company{
			"acme": {ID: "acme", Name: "Acme Corp", Symbol: "acme"},
		}},
		prices: &mockPriceStore{bars: map[string][]models.PriceBar{}},
		client: &mockPriceClient{},
	}
	f.service = NewService(f.companies, f.prices, f.client, common.NewSilentLogger())
	f.service.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) seedBars(t *testing.T, lastBarAt time.Time, days int) {
	t.Helper()
	require.NoError(t, f.prices.UpsertBars(context.Background(), "acme", barsEndingAt(lastBarAt, days)))
	f.prices.upsertCall = 0
}

func TestGetPriceSeriesFreshCacheHit(t *testing.T) {
	f := newFixture()
	// 1M freshness threshold is 60 minutes; a 10-minute-old last bar passes.
	f.seedBars(t, testNow.Add(-10*time.Minute), 10)

	result, err := f.service.GetPriceSeries(context.Background(), "acme", models.Timeframe1M)
	require.NoError(t, err)

	assert.Equal(t, 0, f.client.calls, "fresh data must not hit the provider")
	assert.Equal(t, models.SourceDatabase, result.Metadata.DataSource)
	assert.True(t, result.Metadata.IsFresh)
	assert.Empty(t, result.Metadata.Warning)
	assert.Equal(t, testNow.Add(-10*time.Minute), result.Metadata.LastUpdate)
	assert.Len(t, result.Data, 10)
}

func TestGetPriceSeriesStaleTriggersFetch(t *testing.T) {
	f := newFixture()
	f.seedBars(t, testNow.Add(-2*time.Hour), 10) // beyond the 1M threshold of 1h
	f.client.series = &models.PriceSeries{Bars: barsEndingAt(testNow, 30)}

	result, err := f.service.GetPriceSeries(context.Background(), "acme", models.Timeframe1M)
	require.NoError(t, err)

	assert.Equal(t, 1, f.client.calls)
	assert.Equal(t, models.SourceAPI, result.Metadata.DataSource)
	assert.True(t, result.Metadata.IsFresh)
	assert.Equal(t, 1, f.prices.upsertCall, "fetched bars must be persisted")
	assert.Equal(t, testNow, result.Metadata.LastUpdate)
}

func TestGetPriceSeriesMissingTriggersFetch(t *testing.T) {
	f := newFixture()
	// 100 days of bars span well beyond the 30-day lookback.
	f.client.series = &models.PriceSeries{Bars: barsEndingAt(testNow, 100)}

	result, err := f.service.GetPriceSeries(context.Background(), "acme", models.Timeframe1M)
	require.NoError(t, err)

	assert.Equal(t, 1, f.client.calls)
	assert.Equal(t, models.SourceAPI, result.Metadata.DataSource)
	// the full fetch is persisted, only the lookback window is returned
	assert.Len(t, f.prices.bars["acme"], 100)
	assert.Len(t, result.Data, 31)
	for _, b := range result.Data {
		assert.False(t, b.Timestamp.Before(testNow.AddDate(0, 0, -30)))
	}
}

func TestGetPriceSeriesFallsBackToStale(t *testing.T) {
	f := newFixture()
	f.seedBars(t, testNow.Add(-2*time.Hour), 10)
	f.client.err = &alphavantage.APIError{Code: alphavantage.ErrRateLimit, Message: "slow down", Symbol: "ACME"}

	result, err := f.service.GetPriceSeries(context.Background(), "acme", models.Timeframe1M)
	require.NoError(t, err)

	assert.Equal(t, models.SourceDatabase, result.Metadata.DataSource)
	assert.False(t, result.Metadata.IsFresh)
	assert.Contains(t, result.Metadata.Warning, "rate limit")
	assert.Len(t, result.Data, 10)
}

func TestGetPriceSeriesStaleWarningGenericFailure(t *testing.T) {
	f := newFixture()
	f.seedBars(t, testNow.Add(-2*time.Hour), 10)
	f.client.err = &alphavantage.APIError{Code: alphavantage.ErrNetwork, Message: "timeout", Symbol: "ACME"}

	result, err := f.service.GetPriceSeries(context.Background(), "acme", models.Timeframe1M)
	require.NoError(t, err)

	assert.False(t, result.Metadata.IsFresh)
	assert.Contains(t, result.Metadata.Warning, "NETWORK_ERROR")
	assert.NotContains(t, result.Metadata.Warning, "rate limit")
}

func TestGetPriceSeriesErrorWhenNoData(t *testing.T) {
	f := newFixture()
	f.client.err = &alphavantage.APIError{Code: alphavantage.ErrInvalidSymbol, Message: "unknown", Symbol: "ACME"}

	_, err := f.service.GetPriceSeries(context.Background(), "acme", models.Timeframe1M)
	require.Error(t, err)
	assert.Equal(t, alphavantage.ErrInvalidSymbol, alphavantage.ErrorCodeOf(err))
}

func TestGetPriceSeriesUnknownCompany(t *testing.T) {
	f := newFixture()

	_, err := f.service.GetPriceSeries(context.Background(), "ghost", models.Timeframe1M)
	require.Error(t, err)
	assert.Equal(t, 0, f.client.calls)
}

func TestGetPriceSeriesCompanyWithoutSymbol(t *testing.T) {
	f := newFixture()
	f.companies.companies["blank"] = &models.Company{ID: "blank", Name: "Blank Ltd"}

	_, err := f.service.GetPriceSeries(context.Background(), "blank", models.Timeframe1M)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSymbol)
	assert.Equal(t, 0, f.client.calls)
}

func TestGetPriceSeriesWeeklyForAll(t *testing.T) {
	f := newFixture()
	var gotPeriod models.SeriesPeriod
	f.client.series = &models.PriceSeries{Bars: barsEndingAt(testNow, 5)}
	inner := f.client
	f.service.client = fetchFunc(func(ctx context.Context, symbol string, period models.SeriesPeriod, size models.OutputSize) (*models.PriceSeries, error) {
		gotPeriod = period
		return inner.FetchSeries(ctx, symbol, period, size)
	})

	_, err := f.service.GetPriceSeries(context.Background(), "acme", models.TimeframeAll)
	require.NoError(t, err)
	assert.Equal(t, models.PeriodWeekly, gotPeriod)
}

type fetchFunc func(ctx context.Context, symbol string, period models.SeriesPeriod, size models.OutputSize) (*models.PriceSeries, error)

func (f fetchFunc) FetchSeries(ctx context.Context, symbol string, period models.SeriesPeriod, size models.OutputSize) (*models.PriceSeries, error) {
	return f(ctx, symbol, period, size)
}
