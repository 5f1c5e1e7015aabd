package models

import (
	"strings"
	"time"
)

// Company is a tracked listing. Fields the pipelines depend on are typed;
// everything else imported from upstream feeds rides in Extra untouched.
type Company struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Symbol         string    `json:"symbol"`
	Exchange       string    `json:"exchange,omitempty"`
	Sector         string    `json:"sector,omitempty"`
	Industry       string    `json:"industry,omitempty"`
	Country        string    `json:"country,omitempty"`
	IPOPrice       float64   `json:"ipo_price,omitempty"`
	PurchaseTarget float64   `json:"purchase_target,omitempty"`
	CurrentPrice   float64   `json:"current_price,omitempty"`
	ListedAt       time.Time `json:"listed_at,omitempty"`

	// Extra holds upstream feed fields the pipelines never read.
	Extra map[string]any `json:"extra,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// TargetPrice returns the reference price for gap calculations: the
// purchase target when set, otherwise the IPO price.
func (c *Company) TargetPrice() float64 {
	if c.PurchaseTarget > 0 {
		return c.PurchaseTarget
	}
	return c.IPOPrice
}

// PriceGapPercent returns how far the current price sits from the target,
// as a signed percentage of the target. Returns 0 when either side is unknown.
func (c *Company) PriceGapPercent() float64 {
	return PriceGap(c.CurrentPrice, c.TargetPrice())
}

// PriceGap computes (current - target) / target as a percentage.
// Returns 0 when either side is unknown.
func PriceGap(current, target float64) float64 {
	if target <= 0 || current <= 0 {
		return 0
	}
	return (current - target) / target * 100
}

// NormalizedSymbol returns the symbol upper-cased and trimmed.
func (c *Company) NormalizedSymbol() string {
	return strings.ToUpper(strings.TrimSpace(c.Symbol))
}
