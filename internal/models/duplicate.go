package models

import "time"

// AlertStatus is the duplicate alert lifecycle: created unresolved by the
// external detector, resolved exactly once, never deleted.
type AlertStatus string

const (
	AlertUnresolved AlertStatus = "UNRESOLVED"
	AlertResolved   AlertStatus = "RESOLVED"
)

// ResolutionAction enumerates the five duplicate resolution outcomes.
type ResolutionAction string

const (
	ResolveAssignToA   ResolutionAction = "ASSIGN_TO_A"
	ResolveAssignToB   ResolutionAction = "ASSIGN_TO_B"
	ResolveSplitCredit ResolutionAction = "SPLIT_CREDIT"
	ResolveDifferent   ResolutionAction = "DIFFERENT"
	ResolveRejectBoth  ResolutionAction = "REJECT_BOTH"
)

// DuplicateAlert represents one unresolved conflict between two leads.
// LeadA is always the earlier submission. Similarity data is produced by the
// external detector and consumed verbatim.
type DuplicateAlert struct {
	ID                string            `db:"id" json:"id"`
	LeadAID           string            `db:"lead_a_id" json:"lead_a_id"`
	LeadBID           string            `db:"lead_b_id" json:"lead_b_id"`
	SimilarityScore   int               `db:"similarity_score" json:"similarity_score"`
	SimilarityFactors []byte            `db:"similarity_factors" json:"similarity_factors"`
	Status            AlertStatus       `db:"status" json:"status"`
	Resolution        *ResolutionAction `db:"resolution" json:"resolution,omitempty"`
	Notes             *string           `db:"notes" json:"notes,omitempty"`
	CreditedLeadID    *string           `db:"credited_lead_id" json:"credited_lead_id,omitempty"`
	CreditSplit       bool              `db:"credit_split" json:"credit_split"`
	ResolvedBy        *string           `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time        `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
}

// AlertComparison pairs an alert with both lead snapshots for review.
type AlertComparison struct {
	Alert DuplicateAlert `json:"alert"`
	LeadA Lead           `json:"lead_a"`
	LeadB Lead           `json:"lead_b"`
}

// DuplicateAlertFilter constrains alert listings.
type DuplicateAlertFilter struct {
	Status AlertStatus
	LeadID string
	Limit  int
	Offset int
}
