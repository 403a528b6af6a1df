package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionLogout            = "LOGOUT"
	AuditActionLeadCreate        = "LEAD_CREATE"
	AuditActionLeadUpdate        = "LEAD_UPDATE"
	AuditActionLeadTransition    = "LEAD_TRANSITION"
	AuditActionQuotationRequest  = "QUOTATION_REQUEST"
	AuditActionQuotationDecide   = "QUOTATION_DECIDE"
	AuditActionQuotationSend     = "QUOTATION_SEND"
	AuditActionQuotationRevise   = "QUOTATION_REVISE"
	AuditActionQuotationResubmit = "QUOTATION_RESUBMIT"
	AuditActionInvoiceRequest    = "INVOICE_REQUEST"
	AuditActionInvoiceDecide     = "INVOICE_DECIDE"
	AuditActionInvoiceOutcome    = "INVOICE_OUTCOME"
	AuditActionDuplicateIngest   = "DUPLICATE_INGEST"
	AuditActionDuplicateResolve  = "DUPLICATE_RESOLVE"
)

// AuditLog is one append-only history entry: who did what to which record,
// with before/after summaries. Entries are never updated or deleted.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
