package model

import "strings"

// Pair describes a traded currency pair.
// Inverted is true for USD-base quotes (e.g. USDCHF) where a strong dollar
// implies the opposite trade direction to USD-quote pairs.
type Pair struct {
	ID       string `json:"id" yaml:"id" validate:"required"`
	Inverted bool   `json:"inverted" yaml:"inverted"`
}

// Key returns the normalised pair identifier.
func (p *Pair) Key() string {
	return strings.ToUpper(strings.TrimSpace(p.ID))
}
