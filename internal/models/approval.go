package models

import "time"

// ApprovalKind separates the two parallel approval flows gating a lead.
type ApprovalKind string

const (
	ApprovalQuotation ApprovalKind = "QUOTATION"
	ApprovalInvoice   ApprovalKind = "INVOICE"
)

// QuotationStatus is the lead-side mirror of the quotation flow.
type QuotationStatus string

const (
	QuotationNone         QuotationStatus = "NONE"
	QuotationPending      QuotationStatus = "PENDING"
	QuotationApproved     QuotationStatus = "APPROVED"
	QuotationSentToClient QuotationStatus = "SENT_TO_CLIENT"
	QuotationRejected     QuotationStatus = "REJECTED"
)

// InvoiceStatus is the lead-side mirror of the invoice flow. PENDING_FINANCE
// hands the record off to accounts; SENT_AWAITING_PAYMENT and PAID are
// reported back by that collaborator.
type InvoiceStatus string

const (
	InvoiceNone            InvoiceStatus = "NONE"
	InvoicePendingReview   InvoiceStatus = "PENDING_REVIEW"
	InvoicePendingFinance  InvoiceStatus = "PENDING_FINANCE"
	InvoiceRejected        InvoiceStatus = "REJECTED"
	InvoiceAwaitingPayment InvoiceStatus = "SENT_AWAITING_PAYMENT"
	InvoicePaid            InvoiceStatus = "PAID"
)

// ApprovalStatus is the record-side workflow state shared by both kinds.
type ApprovalStatus string

const (
	ApprovalStatusPending         ApprovalStatus = "PENDING"
	ApprovalStatusApproved        ApprovalStatus = "APPROVED"
	ApprovalStatusRejected        ApprovalStatus = "REJECTED"
	ApprovalStatusSentToClient    ApprovalStatus = "SENT_TO_CLIENT"
	ApprovalStatusPendingFinance  ApprovalStatus = "PENDING_FINANCE"
	ApprovalStatusAwaitingPayment ApprovalStatus = "SENT_AWAITING_PAYMENT"
	ApprovalStatusPaid            ApprovalStatus = "PAID"
)

// DeliveryChannel enumerates how an approved quotation reaches the client.
type DeliveryChannel string

const (
	ChannelEmail         DeliveryChannel = "EMAIL"
	ChannelWhatsApp      DeliveryChannel = "WHATSAPP"
	ChannelHandDelivered DeliveryChannel = "HAND_DELIVERED"
)

// ApprovalRecord is a quotation or invoice moving through review. Records
// survive finalisation for audit; revisions loop a rejected quotation back to
// pending with an incremented revision counter.
type ApprovalRecord struct {
	ID           string         `db:"id" json:"id"`
	LeadID       string         `db:"lead_id" json:"lead_id"`
	Kind         ApprovalKind   `db:"kind" json:"kind"`
	Status       ApprovalStatus `db:"status" json:"status"`
	Revision     int            `db:"revision" json:"revision"`
	Amount       float64        `db:"amount" json:"amount"`
	Comments     *string        `db:"comments" json:"comments,omitempty"`
	RejectReason *string        `db:"reject_reason" json:"reject_reason,omitempty"`
	RequestedBy  string         `db:"requested_by" json:"requested_by"`
	DecidedBy    *string        `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt    *time.Time     `db:"decided_at" json:"decided_at,omitempty"`
	SentVia      *string        `db:"sent_via" json:"sent_via,omitempty"`
	SentTo       *string        `db:"sent_to" json:"sent_to,omitempty"`
	SentAt       *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	Version      int64          `db:"version" json:"version"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Open reports whether the record still accepts workflow actions and blocks
// opening another record of the same kind. A rejected quotation stays open
// because revise/resubmit loop it back to pending; a rejected invoice is
// closed, so a fresh invoice review can be requested for the lead.
func (r *ApprovalRecord) Open() bool {
	switch r.Status {
	case ApprovalStatusPending, ApprovalStatusApproved:
		return true
	case ApprovalStatusRejected:
		return r.Kind == ApprovalQuotation
	}
	return false
}
