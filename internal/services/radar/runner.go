package radar

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mclennan/buyradar/internal/models"
)

// lastRunKey is the system KV key holding the most recent run report.
const lastRunKey = "radar_last_run"

const maxReportErrors = 10

// Run analyzes the filtered company list starting at offset, in sub-batches
// analyzed concurrently. Before each sub-batch the elapsed time is checked
// against the budget minus a guard buffer; when it would be exceeded the run
// stops and the report carries Batched=true with the NextOffset to resume
// from. The company list is ordered by name, so offsets stay meaningful
// across invocations as long as the list does not change mid-run.
func (s *Service) Run(ctx context.Context, filter *models.RadarFilter, offset int) (*models.RadarRunReport, error) {
	start := s.now()
	deadline := start.Add(s.config.GetMaxDuration() - s.config.GetGuardBuffer())

	companies, err := s.companies.ListCompanies(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	total := len(companies)
	if offset < 0 {
		offset = 0
	}

	report := &models.RadarRunReport{
		Total:     total,
		StartedAt: start,
	}

	s.logger.Info().
		Int("total", total).
		Int("offset", offset).
		Msg("Radar run started")

	subBatchSize := s.config.GetSubBatchSize()
	i := offset
	for i < total {
		if !s.now().Before(deadline) {
			report.Batched = true
			report.NextOffset = i
			s.logger.Warn().
				Int("next_offset", i).
				Int("processed", report.Processed).
				Msg("Radar run hit time budget, deferring remainder")
			break
		}

		end := i + subBatchSize
		if end > total {
			end = total
		}

		s.runSubBatch(ctx, companies[i:end], report)
		i = end

		if i < total && s.now().Before(deadline) {
			s.sleep(ctx, s.config.GetInterBatchDelay())
		}
	}

	report.TruncateErrors(maxReportErrors)
	elapsed := s.now().Sub(start)
	report.Duration = elapsed.String()
	report.DurationMS = elapsed.Milliseconds()

	s.saveReport(ctx, report)

	s.logger.Info().
		Int("processed", report.Processed).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Bool("batched", report.Batched).
		Str("duration", report.Duration).
		Msg("Radar run finished")

	return report, nil
}

// runSubBatch fans the sub-batch out to one goroutine per company and folds
// the outcomes into the report.
func (s *Service) runSubBatch(ctx context.Context, companies []*models.Company, report *models.RadarRunReport) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, company := range companies {
		wg.Add(1)
		go func(c *models.Company) {
			defer wg.Done()

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("panic: %v", r)
					}
				}()
				_, err = s.AnalyzeCompany(ctx, c.ID)
				return
			}()

			mu.Lock()
			defer mu.Unlock()
			report.Processed++
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", c.Symbol, err))
			} else {
				report.Succeeded++
			}
		}(company)
	}

	wg.Wait()
}

// saveReport records the run outcome in the system KV for the status endpoint.
func (s *Service) saveReport(ctx context.Context, report *models.RadarRunReport) {
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.system.SetSystemKV(ctx, lastRunKey, string(data)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record radar run report")
	}
}

// LastRunReport returns the stored report of the most recent run, if any.
func (s *Service) LastRunReport(ctx context.Context) (*models.RadarRunReport, error) {
	value, err := s.system.GetSystemKV(ctx, lastRunKey)
	if err != nil || value == "" {
		return nil, fmt.Errorf("no radar run recorded")
	}
	var report models.RadarRunReport
	if err := json.Unmarshal([]byte(value), &report); err != nil {
		return nil, fmt.Errorf("malformed radar run report: %w", err)
	}
	return &report, nil
}
