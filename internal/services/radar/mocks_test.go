package radar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mclennan/buyradar/internal/interfaces"
	"github.com/mclennan/buyradar/internal/models"
)

// mockStorage is an in-memory StorageManager.
type mockStorage struct {
	mu        sync.Mutex
	companies map[string]*models.Company
	bars      map[string][]models.PriceBar
	analyses  []*models.AnalysisResult
	kv        map[string]string
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		companies: map[string]*models.Company{},
		bars:      map[string][]models.PriceBar{},
		kv:        map[string]string{},
	}
}

func (m *mockStorage) Close() error                     { return nil }
func (m *mockStorage) Health(ctx context.Context) error { return nil }

func (m *mockStorage) CompanyStore() interfaces.CompanyStore   { return (*mockCompanies)(m) }
func (m *mockStorage) PriceStore() interfaces.PriceStore       { return (*mockPrices)(m) }
func (m *mockStorage) AnalysisStore() interfaces.AnalysisStore { return (*mockAnalyses)(m) }
func (m *mockStorage) SystemStore() interfaces.SystemStore     { return (*mockSystem)(m) }

type mockCompanies mockStorage

func (m *mockCompanies) UpsertCompany(ctx context.Context, c *models.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.ID] = c
	return nil
}

func (m *mockCompanies) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return c, nil
}

func (m *mockCompanies) GetCompanyBySymbol(ctx context.Context, symbol string) (*models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.companies {
		if c.Symbol == symbol {
			return c, nil
		}
	}
	return nil, errors.New("record not found")
}

func (m *mockCompanies) ListCompanies(ctx context.Context, filter *models.RadarFilter) ([]*models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Company
	for _, c := range m.companies {
		if filter == nil || filter.Matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCompanies) DistinctFilterValues(ctx context.Context) (*models.RadarFilterValues, error) {
	return &models.RadarFilterValues{}, nil
}

func (m *mockCompanies) DeleteCompany(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.companies, id)
	return nil
}

type mockPrices mockStorage

func (m *mockPrices) UpsertBars(ctx context.Context, companyID string, bars []models.PriceBar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[companyID] = bars
	return nil
}

func (m *mockPrices) GetBars(ctx context.Context, companyID string, from, to time.Time) ([]models.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PriceBar
	for _, b := range m.bars[companyID] {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type mockAnalyses mockStorage

func (m *mockAnalyses) InsertAnalysis(ctx context.Context, r *models.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, r)
	return nil
}

func (m *mockAnalyses) GetLatestAnalyses(ctx context.Context) (map[string]*models.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := map[string]*models.AnalysisResult{}
	for _, r := range m.analyses {
		if prev, ok := latest[r.CompanyID]; !ok || r.AnalyzedAt.After(prev.AnalyzedAt) {
			latest[r.CompanyID] = r
		}
	}
	return latest, nil
}

func (m *mockAnalyses) ListAnalyses(ctx context.Context, companyID string, limit int) ([]*models.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AnalysisResult
	for _, r := range m.analyses {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockSystem mockStorage

func (m *mockSystem) GetSystemKV(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return "", errors.New("system KV not found")
	}
	return v, nil
}

func (m *mockSystem) SetSystemKV(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	return nil
}

// mockPriceService resolves series from the storage fixture's bars map and
// counts invocations so tests can prove the resolver path is taken.
type mockPriceService struct {
	mu    sync.Mutex
	store *mockStorage
	err   error
	calls int
}

func (m *mockPriceService) GetPriceSeries(ctx context.Context, companyID string, timeframe models.Timeframe) (*models.PriceSeriesResult, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.store.mu.Lock()
	bars := append([]models.PriceBar(nil), m.store.bars[companyID]...)
	m.store.mu.Unlock()

	return &models.PriceSeriesResult{
		Data:     bars,
		Metadata: models.PriceMetadata{DataSource: models.SourceAPI, IsFresh: true},
	}, nil
}

func (m *mockPriceService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSearch returns canned hits.
type mockSearch struct {
	hits    []models.SearchHit
	queries []string
	mu      sync.Mutex
}

func (m *mockSearch) Search(ctx context.Context, query string, count int) []models.SearchHit {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	return m.hits
}

// mockModel returns a fixed response (or per-symbol responses), records the
// prompts it saw, and optionally advances a fake clock on each call.
type mockModel struct {
	mu       sync.Mutex
	response string
	err      error
	failFor  map[string]error
	calls    int
	prompts  []string
	onCall   func()
}

func (m *mockModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	onCall := m.onCall
	m.mu.Unlock()
	if onCall != nil {
		onCall()
	}
	if m.err != nil {
		return "", m.err
	}
	for symbol, err := range m.failFor {
		if strings.Contains(prompt, "("+symbol+")") {
			return "", err
		}
	}
	return m.response, nil
}

func (m *mockModel) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func (m *mockModel) Model() string { return "test-model" }

// fakeClock is a mutex-guarded manual clock for deterministic budget tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seedCompanies(storage *mockStorage, n int) {
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("co%02d", i)
		storage.companies[id] = &models.Company{
			ID:             id,
			Name:           fmt.Sprintf("Company %02d", i),
			Symbol:         fmt.Sprintf("CO%02d", i),
			Sector:         "Technology",
			PurchaseTarget: 10.0,
			CurrentPrice:   11.0,
		}
	}
}
