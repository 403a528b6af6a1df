package dto

import "encoding/json"

// IngestAlertRequest is the detector payload, arriving over AMQP or the
// backfill endpoint. Similarity data is stored verbatim.
type IngestAlertRequest struct {
	LeadAID           string          `json:"lead_a_id" binding:"required"`
	LeadBID           string          `json:"lead_b_id" binding:"required"`
	SimilarityScore   int             `json:"similarity_score" binding:"min=0,max=100"`
	SimilarityFactors json.RawMessage `json:"similarity_factors"`
}

// ResolveAlertRequest applies one of the five resolution actions.
type ResolveAlertRequest struct {
	Action string `json:"action" binding:"required"`
	Notes  string `json:"notes"`
}
