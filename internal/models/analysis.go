package models

import (
	"math"
	"time"
)

// Recommendation is the model's verdict for a company.
type Recommendation string

const (
	RecommendBuy   Recommendation = "buy"
	RecommendWait  Recommendation = "wait"
	RecommendAvoid Recommendation = "avoid"
)

// Valid reports whether r is one of the three known verdicts.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendBuy, RecommendWait, RecommendAvoid:
		return true
	}
	return false
}

// AnalysisDataSources records which context sources fed an analysis.
type AnalysisDataSources struct {
	WebSearch  bool `json:"web_search"`
	PriceData  bool `json:"price_data"`
	Financials bool `json:"financials"`
}

// AnalysisResult is one model verdict for a company. Results are
// insert-only: each run appends a new row, history is never rewritten.
type AnalysisResult struct {
	ID             string              `json:"id,omitempty"`
	CompanyID      string              `json:"company_id"`
	CompanyName    string              `json:"company_name"`
	Symbol         string              `json:"symbol"`
	Recommendation Recommendation      `json:"recommendation"`
	Confidence     int                 `json:"confidence"`
	Summary        string              `json:"summary,omitempty"`
	Reasoning      string              `json:"reasoning"`
	Catalysts      []string            `json:"catalysts,omitempty"`
	Risks          []string            `json:"risks,omitempty"`
	CurrentPrice   float64             `json:"current_price,omitempty"`
	TargetPrice    float64             `json:"target_price,omitempty"`
	PriceGap       float64             `json:"price_gap_percent"`
	WebSummary     string              `json:"web_research_summary,omitempty"`
	DataSources    AnalysisDataSources `json:"data_sources"`
	ModelName      string              `json:"model_name,omitempty"`
	DurationMS     int64               `json:"analysis_duration_ms"`
	AnalyzedAt     time.Time           `json:"analyzed_at"`
}

// Normalize coerces model output into the valid domain: unknown
// recommendations become "wait", confidence is rounded and clamped to [1, 10].
func (a *AnalysisResult) Normalize() {
	if !a.Recommendation.Valid() {
		a.Recommendation = RecommendWait
	}
	if a.Confidence < 1 {
		a.Confidence = 1
	} else if a.Confidence > 10 {
		a.Confidence = 10
	}
}

// ClampConfidence rounds a raw confidence score and clamps it to [1, 10].
func ClampConfidence(raw float64) int {
	c := int(math.Round(raw))
	if c < 1 {
		return 1
	}
	if c > 10 {
		return 10
	}
	return c
}

// FallbackVerdict is the deterministic result recorded when model output
// cannot be parsed. Callers always get a row for every attempted company.
func FallbackVerdict(company *Company, modelName string, analyzedAt time.Time) *AnalysisResult {
	return &AnalysisResult{
		CompanyID:      company.ID,
		CompanyName:    company.Name,
		Symbol:         company.Symbol,
		Recommendation: RecommendWait,
		Confidence:     1,
		Reasoning:      "Analysis could not be completed - model response was not parseable",
		Risks:          []string{"Analysis parsing error"},
		CurrentPrice:   company.CurrentPrice,
		TargetPrice:    company.TargetPrice(),
		PriceGap:       company.PriceGapPercent(),
		ModelName:      modelName,
		AnalyzedAt:     analyzedAt,
	}
}
