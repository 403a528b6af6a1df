package models

import "time"

// Course mirrors the external course catalog entry consumed for pricing.
// Tier prices are optional; the scoring engine falls back to fractions of the
// base fee when a tier is absent.
type Course struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	BaseFee    float64   `db:"base_fee" json:"base_fee"`
	Tier5To10  *float64  `db:"tier_5_10" json:"tier_5_10,omitempty"`
	Tier10Plus *float64  `db:"tier_10_plus" json:"tier_10_plus,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
