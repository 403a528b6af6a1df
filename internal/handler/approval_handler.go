package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lead-lifecycle-api/internal/dto"
	"github.com/noah-isme/lead-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/lead-lifecycle-api/pkg/errors"
	"github.com/noah-isme/lead-lifecycle-api/pkg/response"
)

type approvalService interface {
	RequestQuotation(ctx context.Context, leadID string, req dto.RequestApprovalRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error)
	RequestInvoice(ctx context.Context, leadID string, req dto.RequestApprovalRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error)
	DecideQuotation(ctx context.Context, recordID string, req dto.DecideApprovalRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error)
	SendQuotation(ctx context.Context, recordID string, req dto.SendQuotationRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error)
	ReviseQuotation(ctx context.Context, recordID string, req dto.ReviseQuotationRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error)
	ResubmitQuotation(ctx context.Context, recordID string, actor *models.JWTClaims) (*models.ApprovalRecord, error)
	DecideInvoice(ctx context.Context, recordID string, req dto.DecideApprovalRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error)
	RecordInvoiceOutcome(ctx context.Context, recordID string, req dto.InvoiceOutcomeRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error)
	ListByLead(ctx context.Context, leadID string, actor *models.JWTClaims) ([]models.ApprovalRecord, error)
}

// ApprovalHandler exposes REST endpoints for quotation and invoice workflows.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(service approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// RequestQuotation godoc
// @Summary Request quotation review
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body dto.RequestApprovalRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leads/{id}/quotations [post]
func (h *ApprovalHandler) RequestQuotation(c *gin.Context) {
	h.request(c, h.service.RequestQuotation)
}

// RequestInvoice godoc
// @Summary Request invoice review
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body dto.RequestApprovalRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leads/{id}/invoices [post]
func (h *ApprovalHandler) RequestInvoice(c *gin.Context) {
	h.request(c, h.service.RequestInvoice)
}

func (h *ApprovalHandler) request(c *gin.Context, fn func(context.Context, string, dto.RequestApprovalRequest, *models.JWTClaims) (*models.ApprovalRecord, error)) {
	var req dto.RequestApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := fn(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, record, nil)
}

// DecideQuotation godoc
// @Summary Decide a pending quotation
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Quotation record ID"
// @Param payload body dto.DecideApprovalRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /quotations/{id}/decision [post]
func (h *ApprovalHandler) DecideQuotation(c *gin.Context) {
	var req dto.DecideApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.DecideQuotation(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// SendQuotation godoc
// @Summary Send an approved quotation to the client
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Quotation record ID"
// @Param payload body dto.SendQuotationRequest true "Delivery payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /quotations/{id}/send [post]
func (h *ApprovalHandler) SendQuotation(c *gin.Context) {
	var req dto.SendQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid send payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.SendQuotation(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ReviseQuotation godoc
// @Summary Revise a rejected quotation
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Quotation record ID"
// @Param payload body dto.ReviseQuotationRequest true "Revision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /quotations/{id}/revise [post]
func (h *ApprovalHandler) ReviseQuotation(c *gin.Context) {
	var req dto.ReviseQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid revision payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.ReviseQuotation(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ResubmitQuotation godoc
// @Summary Resubmit a rejected quotation unchanged
// @Tags Approvals
// @Produce json
// @Param id path string true "Quotation record ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /quotations/{id}/resubmit [post]
func (h *ApprovalHandler) ResubmitQuotation(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.ResubmitQuotation(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// DecideInvoice godoc
// @Summary Decide a pending invoice
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Invoice record ID"
// @Param payload body dto.DecideApprovalRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /invoices/{id}/decision [post]
func (h *ApprovalHandler) DecideInvoice(c *gin.Context) {
	var req dto.DecideApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.DecideInvoice(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// RecordInvoiceOutcome godoc
// @Summary Record the finance outcome for an invoice
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Invoice record ID"
// @Param payload body dto.InvoiceOutcomeRequest true "Outcome payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /invoices/{id}/outcome [post]
func (h *ApprovalHandler) RecordInvoiceOutcome(c *gin.Context) {
	var req dto.InvoiceOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid outcome payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.RecordInvoiceOutcome(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ListByLead godoc
// @Summary List approval records for a lead
// @Tags Approvals
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} response.Envelope
// @Router /leads/{id}/approvals [get]
func (h *ApprovalHandler) ListByLead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	records, err := h.service.ListByLead(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
