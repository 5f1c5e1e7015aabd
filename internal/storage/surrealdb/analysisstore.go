package surrealdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/mclennan/buyradar/internal/common"
	"github.com/mclennan/buyradar/internal/models"
)

// AnalysisStore is insert-only: each run appends a new verdict row so the
// recommendation history stays queryable.
type AnalysisStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewAnalysisStore(db *surrealdb.DB, logger *common.Logger) *AnalysisStore {
	return &AnalysisStore{
		db:     db,
		logger: logger,
	}
}

func (s *AnalysisStore) InsertAnalysis(ctx context.Context, result *models.AnalysisResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}

	sql := "UPSERT type::record('analysis_results', $id) CONTENT $result"
	vars := map[string]any{"id": result.ID, "result": result}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.AnalysisResult](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to insert analysis after retries: %w", err)
		}
	}
	return nil
}

// GetLatestAnalyses returns the most recent verdict per company.
func (s *AnalysisStore) GetLatestAnalyses(ctx context.Context) (map[string]*models.AnalysisResult, error) {
	sql := "SELECT * FROM analysis_results ORDER BY analyzed_at ASC"

	results, err := surrealdb.Query[[]models.AnalysisResult](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}

	latest := make(map[string]*models.AnalysisResult)
	if results != nil && len(*results) > 0 {
		// ascending order means later rows overwrite earlier ones
		for i := range (*results)[0].Result {
			r := &(*results)[0].Result[i]
			latest[r.CompanyID] = r
		}
	}
	return latest, nil
}

func (s *AnalysisStore) ListAnalyses(ctx context.Context, companyID string, limit int) ([]*models.AnalysisResult, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := "SELECT * FROM analysis_results WHERE company_id = $company_id ORDER BY analyzed_at DESC LIMIT $limit"
	vars := map[string]any{"company_id": companyID, "limit": limit}

	results, err := surrealdb.Query[[]models.AnalysisResult](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	var analyses []*models.AnalysisResult
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			analyses = append(analyses, &(*results)[0].Result[i])
		}
	}
	return analyses, nil
}
