package dto

// RequestApprovalRequest opens a quotation or invoice review for a lead.
type RequestApprovalRequest struct {
	Comments string `json:"comments"`
}

// DecideApprovalRequest captures a manager decision on a pending record.
type DecideApprovalRequest struct {
	Approve  bool   `json:"approve"`
	Comments string `json:"comments"`
}

// SendQuotationRequest releases an approved quotation to the client.
// Destination is required when the channel is EMAIL.
type SendQuotationRequest struct {
	Channel     string `json:"channel" binding:"required"`
	Destination string `json:"destination"`
}

// ReviseQuotationRequest opens a new revision of a rejected quotation.
type ReviseQuotationRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// InvoiceOutcomeRequest records the status reported back by accounts after
// the finance hand-off.
type InvoiceOutcomeRequest struct {
	Status string `json:"status" binding:"required"`
}
