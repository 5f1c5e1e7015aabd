package surrealdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mclennan/buyradar/internal/models"
)

func newTestCompany(id, name, symbol, sector, exchange string) *models.Company {
	return &models.Company{
		ID:             id,
		Name:           name,
		Symbol:         symbol,
		Sector:         sector,
		Exchange:       exchange,
		Country:        "US",
		IPOPrice:       10.0,
		PurchaseTarget: 12.0,
		CurrentPrice:   11.5,
	}
}

func TestUpsertAndGetCompany(t *testing.T) {
	db := testDB(t)
	store := NewCompanyStore(db, testLogger())
	ctx := context.Background()

	company := newTestCompany("acme", "Acme Corp", "ACME", "Technology", "NASDAQ")
	company.Extra = map[string]any{"underwriter": "BigBank", "float_shares": "5000000"}
	require.NoError(t, store.UpsertCompany(ctx, company))

	got, err := store.GetCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Name)
	assert.Equal(t, "ACME", got.Symbol)
	assert.Equal(t, 12.0, got.PurchaseTarget)
	assert.Equal(t, "BigBank", got.Extra["underwriter"])
}

func TestGetCompanyNotFound(t *testing.T) {
	db := testDB(t)
	store := NewCompanyStore(db, testLogger())

	_, err := store.GetCompany(context.Background(), "nonexist")
	assert.Error(t, err)
}

func TestGetCompanyBySymbol(t *testing.T) {
	db := testDB(t)
	store := NewCompanyStore(db, testLogger())
	ctx := context.Background()

	require.NoError(t, store.UpsertCompany(ctx, newTestCompany("acme", "Acme Corp", "ACME", "Technology", "NASDAQ")))

	got, err := store.GetCompanyBySymbol(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.ID)

	_, err = store.GetCompanyBySymbol(ctx, "MISSING")
	assert.Error(t, err)
}

func TestListCompaniesOrderedByName(t *testing.T) {
	db := testDB(t)
	store := NewCompanyStore(db, testLogger())
	ctx := context.Background()

	require.NoError(t, store.UpsertCompany(ctx, newTestCompany("zeta", "Zeta Labs", "ZETA", "Healthcare", "NYSE")))
	require.NoError(t, store.UpsertCompany(ctx, newTestCompany("acme", "Acme Corp", "ACME", "Technology", "NASDAQ")))
	require.NoError(t, store.UpsertCompany(ctx, newTestCompany("midas", "Midas Inc", "MDAS", "Technology", "NYSE")))

	companies, err := store.ListCompanies(ctx, nil)
	require.NoError(t, err)
	require.Len(t, companies, 3)
	assert.Equal(t, "Acme Corp", companies[0].Name)
	assert.Equal(t, "Midas Inc", companies[1].Name)
	assert.Equal(t, "Zeta Labs", companies[2].Name)
}

func TestListCompaniesFiltered(t *testing.T) {
	db := testDB(t)
	store := NewCompanyStore(db, testLogger())
	ctx := context.Background()

	require.NoError(t, store.UpsertCompany(ctx, newTestCompany("zeta", "Zeta Labs", "ZETA", "Healthcare", "NYSE")))
	require.NoError(t, store.UpsertCompany(ctx, newTestCompany("acme", "Acme Corp", "ACME", "Technology", "NASDAQ")))
	require.NoError(t, store.UpsertCompany(ctx, newTestCompany("midas", "Midas Inc", "MDAS", "Technology", "NYSE")))

	tech, err := store.ListCompanies(ctx, &models.RadarFilter{Sector: "Technology"})
	require.NoError(t, err)
	require.Len(t, tech, 2)

	techNYSE, err := store.ListCompanies(ctx, &models.RadarFilter{Sector: "Technology", Exchange: "NYSE"})
	require.NoError(t, err)
	require.Len(t, techNYSE, 1)
	assert.Equal(t, "Midas Inc", techNYSE[0].Name)

	bySymbol, err := store.ListCompanies(ctx, &models.RadarFilter{Symbols: []string{"ZETA", "ACME"}})
	require.NoError(t, err)
	require.Len(t, bySymbol, 2)
}

func TestDistinctFilterValues(t *testing.T) {
	db := testDB(t)
	store := NewCompanyStore(db, testLogger())
	ctx := context.Background()

	require.NoError(t, store.UpsertCompany(ctx, newTestCompany("zeta", "Zeta Labs", "ZETA", "Healthcare", "NYSE")))
	require.NoError(t, store.UpsertCompany(ctx, newTestCompany("acme", "Acme Corp", "ACME", "Technology", "NASDAQ")))
	require.NoError(t, store.UpsertCompany(ctx, newTestCompany("midas", "Midas Inc", "MDAS", "Technology", "NYSE")))

	values, err := store.DistinctFilterValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Healthcare", "Technology"}, values.Sectors)
	assert.Equal(t, []string{"NASDAQ", "NYSE"}, values.Exchanges)
	assert.Equal(t, []string{"US"}, values.Countries)
}

func TestDeleteCompany(t *testing.T) {
	db := testDB(t)
	store := NewCompanyStore(db, testLogger())
	ctx := context.Background()

	require.NoError(t, store.UpsertCompany(ctx, newTestCompany("acme", "Acme Corp", "ACME", "Technology", "NASDAQ")))
	require.NoError(t, store.DeleteCompany(ctx, "acme"))

	_, err := store.GetCompany(ctx, "acme")
	assert.Error(t, err)
}
