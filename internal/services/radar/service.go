// Package radar implements the recommendation batch runner and dashboard views.
package radar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mclennan/buyradar/internal/common"
	"github.com/mclennan/buyradar/internal/interfaces"
	"github.com/mclennan/buyradar/internal/models"
)

// Service analyzes companies with a language model and serves the radar views.
type Service struct {
	companies interfaces.CompanyStore
	analyses  interfaces.AnalysisStore
	system    interfaces.SystemStore
	priceSvc  interfaces.PriceService
	search    interfaces.WebSearchClient
	model     interfaces.ModelClient
	logger    *common.Logger
	config    *common.RadarConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewService creates a radar service. Price context is gathered through the
// resolver so unattended runs refresh from the provider, not just the store.
func NewService(
	storage interfaces.StorageManager,
	priceSvc interfaces.PriceService,
	search interfaces.WebSearchClient,
	model interfaces.ModelClient,
	config *common.RadarConfig,
	logger *common.Logger,
) *Service {
	return &Service{
		companies: storage.CompanyStore(),
		analyses:  storage.AnalysisStore(),
		system:    storage.SystemStore(),
		priceSvc:  priceSvc,
		search:    search,
		model:     model,
		logger:    logger,
		config:    config,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

var _ interfaces.RadarService = (*Service)(nil)

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// AnalyzeCompany runs one company through the model and records the verdict.
// Unparseable model output is recorded as a deterministic fallback verdict;
// only model call failures return an error.
func (s *Service) AnalyzeCompany(ctx context.Context, companyID string) (*models.AnalysisResult, error) {
	company, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("company %s: %w", companyID, err)
	}

	analyzedAt := s.now()

	query := fmt.Sprintf("%s stock analysis %d", company.Name, analyzedAt.Year())
	hits := s.search.Search(ctx, query, s.config.GetSearchResultCount())

	// Best-effort: a month of daily closes via the resolver, which refreshes
	// from the provider when the stored series is stale or missing.
	var bars []models.PriceBar
	if series, err := s.priceSvc.GetPriceSeries(ctx, companyID, models.Timeframe1M); err != nil {
		s.logger.Warn().Err(err).Str("company_id", companyID).Msg("Price context unavailable for analysis")
	} else {
		bars = series.Data
	}

	prompt := buildPrompt(company, hits, bars)

	raw, err := s.model.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("model generation for %s: %w", companyID, err)
	}

	currentPrice := company.CurrentPrice
	if len(bars) > 0 {
		currentPrice = bars[len(bars)-1].Close
	}

	result, parseErr := parseVerdict(raw)
	if parseErr != nil {
		s.logger.Warn().
			Err(parseErr).
			Str("company_id", companyID).
			Msg("Model output unparseable, recording fallback verdict")
		result = models.FallbackVerdict(company, s.model.Model(), analyzedAt)
	} else {
		result.CompanyID = company.ID
		result.CompanyName = company.Name
		result.Symbol = company.Symbol
		result.CurrentPrice = currentPrice
		result.TargetPrice = company.TargetPrice()
		result.PriceGap = models.PriceGap(currentPrice, company.TargetPrice())
		result.ModelName = s.model.Model()
		result.AnalyzedAt = analyzedAt
		result.Normalize()
	}

	result.WebSummary = summarizeHits(hits)
	result.DataSources = models.AnalysisDataSources{
		WebSearch: len(hits) > 0,
		PriceData: len(bars) > 0,
	}
	result.DurationMS = s.now().Sub(analyzedAt).Milliseconds()

	if err := s.analyses.InsertAnalysis(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to record analysis for %s: %w", companyID, err)
	}

	s.logger.Info().
		Str("company_id", companyID).
		Str("recommendation", string(result.Recommendation)).
		Int("confidence", result.Confidence).
		Msg("Company analyzed")

	return result, nil
}

// Radar returns companies matching the filter joined with their latest verdicts.
func (s *Service) Radar(ctx context.Context, filter *models.RadarFilter) ([]*models.RadarCompany, error) {
	companies, err := s.companies.ListCompanies(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	latest, err := s.analyses.GetLatestAnalyses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load analyses: %w", err)
	}

	rows := make([]*models.RadarCompany, 0, len(companies))
	for _, c := range companies {
		rows = append(rows, &models.RadarCompany{
			Company:  c,
			Analysis: latest[c.ID],
		})
	}
	return rows, nil
}

// FilterValues lists the distinct values for the filter dropdowns.
func (s *Service) FilterValues(ctx context.Context) (*models.RadarFilterValues, error) {
	return s.companies.DistinctFilterValues(ctx)
}

func buildPrompt(company *models.Company, hits []models.SearchHit, bars []models.PriceBar) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `You are a cautious equity analyst. Assess %s (%s) and decide whether the stock is worth buying now.

Company:
- Name: %s
- Symbol: %s
`, company.Name, company.Symbol, company.Name, company.Symbol)

	if company.Sector != "" {
		fmt.Fprintf(&sb, "- Sector: %s\n", company.Sector)
	}
	if company.Exchange != "" {
		fmt.Fprintf(&sb, "- Exchange: %s\n", company.Exchange)
	}
	if company.IPOPrice > 0 {
		fmt.Fprintf(&sb, "- IPO Price: $%.2f\n", company.IPOPrice)
	}
	if company.PurchaseTarget > 0 {
		fmt.Fprintf(&sb, "- Purchase Target: $%.2f\n", company.PurchaseTarget)
	}
	if company.CurrentPrice > 0 {
		fmt.Fprintf(&sb, "- Current Price: $%.2f\n", company.CurrentPrice)
	}
	if gap := company.PriceGapPercent(); gap != 0 {
		fmt.Fprintf(&sb, "- Price vs Target: %+.1f%%\n", gap)
	}

	if len(bars) > 0 {
		first, last := bars[0], bars[len(bars)-1]
		fmt.Fprintf(&sb, "\nRecent price action (%d daily bars):\n", len(bars))
		fmt.Fprintf(&sb, "- %s close: $%.2f\n", first.Timestamp.Format("2006-01-02"), first.Close)
		fmt.Fprintf(&sb, "- %s close: $%.2f\n", last.Timestamp.Format("2006-01-02"), last.Close)
	}

	if len(hits) > 0 {
		sb.WriteString("\nRecent news:\n")
		for _, h := range hits {
			fmt.Fprintf(&sb, "- %s: %s\n", h.Title, h.Description)
		}
	}

	sb.WriteString(`
Respond with ONLY a JSON object, no markdown fences, in this exact shape:
{
  "recommendation": "buy" | "wait" | "avoid",
  "confidence": 1-10,
  "summary": "one sentence",
  "reasoning": "2-3 sentences",
  "catalysts": ["..."],
  "risks": ["..."]
}
`)

	return sb.String()
}

// summarizeHits condenses search results into a single line for the record.
func summarizeHits(hits []models.SearchHit) string {
	if len(hits) == 0 {
		return ""
	}
	titles := make([]string, 0, len(hits))
	for _, h := range hits {
		titles = append(titles, h.Title)
	}
	return strings.Join(titles, "; ")
}

// rawVerdict tolerates confidence arriving as a JSON number or string digit.
type rawVerdict struct {
	Recommendation string      `json:"recommendation"`
	Confidence     json.Number `json:"confidence"`
	Summary        string      `json:"summary"`
	Reasoning      string      `json:"reasoning"`
	Catalysts      []string    `json:"catalysts"`
	Risks          []string    `json:"risks"`
}

// parseVerdict extracts the JSON verdict from model output, tolerating
// markdown fences and surrounding prose.
func parseVerdict(raw string) (*models.AnalysisResult, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var v rawVerdict
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, fmt.Errorf("malformed verdict JSON: %w", err)
	}
	if v.Recommendation == "" {
		return nil, fmt.Errorf("verdict missing recommendation")
	}

	confidence, err := v.Confidence.Float64()
	if err != nil {
		confidence = 1
	}

	return &models.AnalysisResult{
		Recommendation: models.Recommendation(strings.ToLower(strings.TrimSpace(v.Recommendation))),
		Confidence:     models.ClampConfidence(confidence),
		Summary:        v.Summary,
		Reasoning:      v.Reasoning,
		Catalysts:      v.Catalysts,
		Risks:          v.Risks,
	}, nil
}

// extractJSON returns the first balanced top-level JSON object in s.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
