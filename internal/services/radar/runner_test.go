package radar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mclennan/buyradar/internal/common"
	"github.com/mclennan/buyradar/internal/models"
)

func TestRunProcessesAllWithinBudget(t *testing.T) {
	storage := newMockStorage()
	seedCompanies(storage, 12)
	model := &mockModel{response: goodVerdict}

	svc := newTestService(storage, &mockSearch{}, model)

	report, err := svc.Run(context.Background(), nil, 0)
	require.NoError(t, err)

	assert.Equal(t, 12, report.Processed)
	assert.Equal(t, 12, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 12, report.Total)
	assert.False(t, report.Batched)
	assert.Zero(t, report.NextOffset)
	assert.Len(t, storage.analyses, 12)
}

func TestRunStopsAtTimeBudgetWithNextOffset(t *testing.T) {
	storage := newMockStorage()
	seedCompanies(storage, 23)

	clock := &fakeClock{now: time.Date(2026, 3, 6, 6, 0, 0, 0, time.UTC)}
	// every model call burns 20s of wall clock
	model := &mockModel{response: goodVerdict}
	model.onCall = func() { clock.Advance(20 * time.Second) }

	svc := newTestService(storage, &mockSearch{}, model)
	svc.now = clock.Now
	svc.config = &common.RadarConfig{MaxDuration: "180s", GuardBuffer: "30s"}

	// budget is 150s; each sub-batch of 5 burns 100s, so the guard trips
	// before the third sub-batch
	report, err := svc.Run(context.Background(), nil, 0)
	require.NoError(t, err)

	assert.Equal(t, 10, report.Processed)
	assert.Equal(t, 23, report.Total)
	assert.True(t, report.Batched)
	assert.Equal(t, 10, report.NextOffset)

	// continuation picks up where the first invocation stopped
	report2, err := svc.Run(context.Background(), nil, report.NextOffset)
	require.NoError(t, err)

	assert.Equal(t, 10, report2.Processed)
	assert.True(t, report2.Batched)
	assert.Equal(t, 20, report2.NextOffset)

	report3, err := svc.Run(context.Background(), nil, report2.NextOffset)
	require.NoError(t, err)

	assert.Equal(t, 3, report3.Processed)
	assert.False(t, report3.Batched)

	// every company analyzed exactly once across the three invocations
	assert.Len(t, storage.analyses, 23)
	seen := map[string]int{}
	for _, r := range storage.analyses {
		seen[r.CompanyID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "company %s analyzed %d times", id, n)
	}
}

func TestRunOffsetBeyondListIsNoop(t *testing.T) {
	storage := newMockStorage()
	seedCompanies(storage, 4)
	model := &mockModel{response: goodVerdict}

	svc := newTestService(storage, &mockSearch{}, model)

	report, err := svc.Run(context.Background(), nil, 10)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Processed)
	assert.False(t, report.Batched)
	assert.Equal(t, 4, report.Total)
}

func TestRunCollectsFailuresAndContinues(t *testing.T) {
	storage := newMockStorage()
	seedCompanies(storage, 7)
	model := &mockModel{err: errors.New("quota exhausted")}

	svc := newTestService(storage, &mockSearch{}, model)

	report, err := svc.Run(context.Background(), nil, 0)
	require.NoError(t, err, "per-company failures do not abort the run")

	assert.Equal(t, 7, report.Processed)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 7, report.Failed)
	assert.Len(t, report.Errors, 7)
}

func TestRunIsolatesSingleFailure(t *testing.T) {
	storage := newMockStorage()
	seedCompanies(storage, 5)
	model := &mockModel{
		response: goodVerdict,
		failFor:  map[string]error{"CO02": errors.New("quota exhausted")},
	}

	svc := newTestService(storage, &mockSearch{}, model)

	report, err := svc.Run(context.Background(), nil, 0)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Processed)
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "CO02")

	// the sub-batch siblings of the failed company still persist their rows
	require.Len(t, storage.analyses, 4)
	for _, r := range storage.analyses {
		assert.NotEqual(t, "co02", r.CompanyID)
	}
}

func TestRunCapsReportedErrors(t *testing.T) {
	storage := newMockStorage()
	seedCompanies(storage, 15)
	model := &mockModel{err: errors.New("quota exhausted")}

	svc := newTestService(storage, &mockSearch{}, model)

	report, err := svc.Run(context.Background(), nil, 0)
	require.NoError(t, err)

	assert.Equal(t, 15, report.Failed)
	assert.Len(t, report.Errors, maxReportErrors)
}

func TestRunHonorsFilter(t *testing.T) {
	storage := newMockStorage()
	seedCompanies(storage, 6)
	storage.companies["co00"].Sector = "Healthcare"
	storage.companies["co01"].Sector = "Healthcare"
	model := &mockModel{response: goodVerdict}

	svc := newTestService(storage, &mockSearch{}, model)

	report, err := svc.Run(context.Background(), &models.RadarFilter{Sector: "Healthcare"}, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Processed)
}

func TestRunPersistsLastRunReport(t *testing.T) {
	storage := newMockStorage()
	seedCompanies(storage, 3)
	model := &mockModel{response: goodVerdict}

	svc := newTestService(storage, &mockSearch{}, model)

	_, err := svc.Run(context.Background(), nil, 0)
	require.NoError(t, err)

	report, err := svc.LastRunReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
}
