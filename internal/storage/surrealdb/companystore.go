package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/mclennan/buyradar/internal/common"
	"github.com/mclennan/buyradar/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

type CompanyStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewCompanyStore(db *surrealdb.DB, logger *common.Logger) *CompanyStore {
	return &CompanyStore{
		db:     db,
		logger: logger,
	}
}

func (s *CompanyStore) UpsertCompany(ctx context.Context, company *models.Company) error {
	sql := "UPSERT type::record('company', $id) CONTENT $company"
	vars := map[string]any{"id": company.ID, "company": company}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Company](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to upsert company after retries: %w", err)
		}
	}
	return nil
}

func (s *CompanyStore) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	company, err := surrealdb.Select[models.Company](ctx, s.db, surrealmodels.NewRecordID("company", id))
	if err != nil {
		return nil, fmt.Errorf("failed to select company: %w", err)
	}
	if company == nil || company.ID == "" {
		return nil, ErrNotFound
	}
	return company, nil
}

func (s *CompanyStore) GetCompanyBySymbol(ctx context.Context, symbol string) (*models.Company, error) {
	sql := "SELECT * FROM company WHERE symbol = $symbol LIMIT 1"
	vars := map[string]any{"symbol": strings.ToUpper(strings.TrimSpace(symbol))}

	results, err := surrealdb.Query[[]models.Company](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query company by symbol: %w", err)
	}
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return &(*results)[0].Result[0], nil
	}
	return nil, ErrNotFound
}

// ListCompanies returns companies matching the filter ordered by name
// ascending. The stable ordering is what makes batch offsets resumable.
func (s *CompanyStore) ListCompanies(ctx context.Context, filter *models.RadarFilter) ([]*models.Company, error) {
	sql := "SELECT * FROM company"
	vars := map[string]any{}

	var conditions []string
	if filter != nil {
		if filter.Sector != "" {
			conditions = append(conditions, "sector = $sector")
			vars["sector"] = filter.Sector
		}
		if filter.Exchange != "" {
			conditions = append(conditions, "exchange = $exchange")
			vars["exchange"] = filter.Exchange
		}
		if filter.Country != "" {
			conditions = append(conditions, "country = $country")
			vars["country"] = filter.Country
		}
		if len(filter.Symbols) > 0 {
			conditions = append(conditions, "symbol IN $symbols")
			vars["symbols"] = filter.Symbols
		}
	}
	if len(conditions) > 0 {
		sql += " WHERE " + strings.Join(conditions, " AND ")
	}
	sql += " ORDER BY name ASC"

	results, err := surrealdb.Query[[]models.Company](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	var companies []*models.Company
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			companies = append(companies, &(*results)[0].Result[i])
		}
	}
	return companies, nil
}

// DistinctFilterValues collects the distinct sector, exchange, and country
// values across all companies, sorted, for filter dropdowns.
func (s *CompanyStore) DistinctFilterValues(ctx context.Context) (*models.RadarFilterValues, error) {
	companies, err := s.ListCompanies(ctx, nil)
	if err != nil {
		return nil, err
	}

	sectors := map[string]bool{}
	exchanges := map[string]bool{}
	countries := map[string]bool{}
	for _, c := range companies {
		if c.Sector != "" {
			sectors[c.Sector] = true
		}
		if c.Exchange != "" {
			exchanges[c.Exchange] = true
		}
		if c.Country != "" {
			countries[c.Country] = true
		}
	}

	values := &models.RadarFilterValues{
		Sectors:   sortedKeys(sectors),
		Exchanges: sortedKeys(exchanges),
		Countries: sortedKeys(countries),
	}
	return values, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *CompanyStore) DeleteCompany(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.Company](ctx, s.db, surrealmodels.NewRecordID("company", id))
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	return nil
}
