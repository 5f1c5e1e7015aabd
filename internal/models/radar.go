package models

import "time"

// RadarFilter narrows which companies a radar run analyzes. Zero values
// mean "no constraint".
type RadarFilter struct {
	Sector   string   `json:"sector,omitempty"`
	Exchange string   `json:"exchange,omitempty"`
	Country  string   `json:"country,omitempty"`
	Symbols  []string `json:"symbols,omitempty"`
}

// Matches reports whether the company passes the filter.
func (f *RadarFilter) Matches(c *Company) bool {
	if f.Sector != "" && f.Sector != c.Sector {
		return false
	}
	if f.Exchange != "" && f.Exchange != c.Exchange {
		return false
	}
	if f.Country != "" && f.Country != c.Country {
		return false
	}
	if len(f.Symbols) > 0 {
		found := false
		for _, s := range f.Symbols {
			if s == c.Symbol {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RadarFilterValues lists the distinct values available for each filter
// dimension, for populating dropdowns.
type RadarFilterValues struct {
	Sectors   []string `json:"sectors"`
	Exchanges []string `json:"exchanges"`
	Countries []string `json:"countries"`
}

// RadarCompany is a dashboard row: the company joined with its latest verdict.
type RadarCompany struct {
	Company  *Company        `json:"company"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
}

// RadarRunReport summarizes one batch run invocation.
type RadarRunReport struct {
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Total      int       `json:"total"`
	Batched    bool      `json:"batched"`
	NextOffset int       `json:"next_offset,omitempty"`
	Errors     []string  `json:"errors,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Duration   string    `json:"duration"`
	DurationMS int64     `json:"duration_ms"`
}

// TruncateErrors caps the report's error list at n entries.
func (r *RadarRunReport) TruncateErrors(n int) {
	if len(r.Errors) > n {
		r.Errors = r.Errors[:n]
	}
}
