package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lead-lifecycle-api/internal/dto"
	"github.com/noah-isme/lead-lifecycle-api/internal/models"
	"github.com/noah-isme/lead-lifecycle-api/internal/repository"
	appErrors "github.com/noah-isme/lead-lifecycle-api/pkg/errors"
	"github.com/noah-isme/lead-lifecycle-api/pkg/mailer"
)

type approvalStore interface {
	Create(ctx context.Context, record *models.ApprovalRecord) error
	GetByID(ctx context.Context, id string) (*models.ApprovalRecord, error)
	GetLatestByLeadAndKind(ctx context.Context, leadID string, kind models.ApprovalKind) (*models.ApprovalRecord, error)
	ListByLead(ctx context.Context, leadID string) ([]models.ApprovalRecord, error)
	Transition(ctx context.Context, params repository.TransitionParams) error
}

type approvalLeadStore interface {
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	UpdateWorkflowStatus(ctx context.Context, leadID string, quotation *models.QuotationStatus, invoice *models.InvoiceStatus) error
}

// ApprovalService is the gateway for the two parallel financial-document
// flows. Every decision carries the acting identity and lands in the lead's
// history; deciding an already-finalized record fails with ALREADY_FINALIZED.
type ApprovalService struct {
	repo    approvalStore
	leads   approvalLeadStore
	audit   auditLogger
	mailer  mailer.Mailer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewApprovalService constructs the service.
func NewApprovalService(repo approvalStore, leads approvalLeadStore, audit auditLogger, m mailer.Mailer, metrics *MetricsService, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{repo: repo, leads: leads, audit: audit, mailer: m, metrics: metrics, logger: logger}
}

// RequestQuotation opens a quotation review at the lead's current value.
func (s *ApprovalService) RequestQuotation(ctx context.Context, leadID string, req dto.RequestApprovalRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error) {
	return s.request(ctx, leadID, models.ApprovalQuotation, req, actor)
}

// RequestInvoice opens an invoice review for the lead.
func (s *ApprovalService) RequestInvoice(ctx context.Context, leadID string, req dto.RequestApprovalRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error) {
	return s.request(ctx, leadID, models.ApprovalInvoice, req, actor)
}

func (s *ApprovalService) request(ctx context.Context, leadID string, kind models.ApprovalKind, req dto.RequestApprovalRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error) {
	lead, err := s.loadLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !canActOnLead(actor, lead) {
		return nil, appErrors.ErrForbidden
	}
	if lead.RecordStatus != models.RecordActive {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("lead record is %s, financial documents are blocked", lead.RecordStatus))
	}

	latest, err := s.repo.GetLatestByLeadAndKind(ctx, leadID, kind)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval record")
	}
	if latest != nil && latest.Open() {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("an open %s record already exists for this lead", strings.ToLower(string(kind))))
	}

	record := &models.ApprovalRecord{
		LeadID:      leadID,
		Kind:        kind,
		Status:      models.ApprovalStatusPending,
		Revision:    1,
		Amount:      lead.LeadValue,
		Comments:    optionalString(req.Comments),
		RequestedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval record")
	}

	if err := s.mirrorLeadStatus(ctx, record); err != nil {
		return nil, err
	}

	action := models.AuditActionQuotationRequest
	if kind == models.ApprovalInvoice {
		action = models.AuditActionInvoiceRequest
	}
	s.emitAudit(ctx, actor, action, record, nil)
	return record, nil
}

// DecideQuotation applies a manager decision to a pending quotation.
func (s *ApprovalService) DecideQuotation(ctx context.Context, recordID string, req dto.DecideApprovalRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error) {
	record, err := s.loadRecord(ctx, recordID, models.ApprovalQuotation)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.ManagerTier() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers may decide quotations")
	}
	if record.Status != models.ApprovalStatusPending {
		return nil, appErrors.Clone(appErrors.ErrFinalized,
			fmt.Sprintf("quotation is %s, decision already recorded", record.Status))
	}

	to := models.ApprovalStatusApproved
	if !req.Approve {
		to = models.ApprovalStatusRejected
	}
	now := time.Now().UTC()
	params := repository.TransitionParams{
		ID:         record.ID,
		FromStatus: models.ApprovalStatusPending,
		ToStatus:   to,
		DecidedBy:  &actor.UserID,
		DecidedAt:  &now,
		Comments:   optionalString(req.Comments),
	}
	if !req.Approve {
		params.RejectReason = optionalString(req.Comments)
	}
	if err := s.applyTransition(ctx, record, params); err != nil {
		return nil, err
	}
	s.metrics.RecordApprovalDecision(models.ApprovalQuotation, to)
	s.emitAudit(ctx, actor, models.AuditActionQuotationDecide, record, map[string]interface{}{"approve": req.Approve})
	return record, nil
}

// SendQuotation releases an approved quotation through a delivery channel.
// EMAIL dispatches through the mailer and requires a destination address.
func (s *ApprovalService) SendQuotation(ctx context.Context, recordID string, req dto.SendQuotationRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error) {
	record, err := s.loadRecord(ctx, recordID, models.ApprovalQuotation)
	if err != nil {
		return nil, err
	}
	lead, err := s.loadLead(ctx, record.LeadID)
	if err != nil {
		return nil, err
	}
	if !canActOnLead(actor, lead) {
		return nil, appErrors.ErrForbidden
	}

	switch record.Status {
	case models.ApprovalStatusApproved:
	case models.ApprovalStatusSentToClient:
		return nil, appErrors.Clone(appErrors.ErrFinalized, "quotation already sent to client")
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("quotation is %s, only approved quotations can be sent", record.Status))
	}

	channel := models.DeliveryChannel(strings.ToUpper(strings.TrimSpace(req.Channel)))
	switch channel {
	case models.ChannelEmail, models.ChannelWhatsApp, models.ChannelHandDelivered:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "channel must be EMAIL, WHATSAPP, or HAND_DELIVERED")
	}
	destination := strings.TrimSpace(req.Destination)
	if channel == models.ChannelEmail && destination == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "destination email address is required for the EMAIL channel")
	}

	now := time.Now().UTC()
	via := string(channel)
	params := repository.TransitionParams{
		ID:         record.ID,
		FromStatus: models.ApprovalStatusApproved,
		ToStatus:   models.ApprovalStatusSentToClient,
		SentVia:    &via,
		SentTo:     optionalString(destination),
		SentAt:     &now,
	}
	if err := s.applyTransition(ctx, record, params); err != nil {
		return nil, err
	}

	if channel == models.ChannelEmail && s.mailer != nil {
		if err := s.mailer.SendQuotation(ctx, destination, lead.DisplayName(), lead.ID, record.Amount); err != nil {
			s.logger.Warn("quotation email dispatch failed",
				zap.String("record_id", record.ID), zap.Error(err))
		}
	}

	s.emitAudit(ctx, actor, models.AuditActionQuotationSend, record, map[string]interface{}{"channel": channel})
	return record, nil
}

// ReviseQuotation loops a rejected quotation back to pending as a new
// revision, recording why the previous one was rejected.
func (s *ApprovalService) ReviseQuotation(ctx context.Context, recordID string, req dto.ReviseQuotationRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error) {
	return s.reopenQuotation(ctx, recordID, optionalString(req.Reason), true, actor)
}

// ResubmitQuotation returns a rejected quotation to pending unchanged.
func (s *ApprovalService) ResubmitQuotation(ctx context.Context, recordID string, actor *models.JWTClaims) (*models.ApprovalRecord, error) {
	return s.reopenQuotation(ctx, recordID, nil, false, actor)
}

func (s *ApprovalService) reopenQuotation(ctx context.Context, recordID string, reason *string, bumpRevision bool, actor *models.JWTClaims) (*models.ApprovalRecord, error) {
	record, err := s.loadRecord(ctx, recordID, models.ApprovalQuotation)
	if err != nil {
		return nil, err
	}
	lead, err := s.loadLead(ctx, record.LeadID)
	if err != nil {
		return nil, err
	}
	if !canActOnLead(actor, lead) {
		return nil, appErrors.ErrForbidden
	}
	if record.Status != models.ApprovalStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("quotation is %s, only rejected quotations can be reopened", record.Status))
	}

	params := repository.TransitionParams{
		ID:           record.ID,
		FromStatus:   models.ApprovalStatusRejected,
		ToStatus:     models.ApprovalStatusPending,
		RejectReason: reason,
		BumpRevision: bumpRevision,
	}
	if err := s.applyTransition(ctx, record, params); err != nil {
		return nil, err
	}
	if bumpRevision {
		record.Revision++
	}

	action := models.AuditActionQuotationResubmit
	if bumpRevision {
		action = models.AuditActionQuotationRevise
	}
	s.emitAudit(ctx, actor, action, record, nil)
	return record, nil
}

// DecideInvoice applies a manager decision: approval hands the invoice to
// finance, rejection closes the review.
func (s *ApprovalService) DecideInvoice(ctx context.Context, recordID string, req dto.DecideApprovalRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error) {
	record, err := s.loadRecord(ctx, recordID, models.ApprovalInvoice)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.ManagerTier() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers may decide invoices")
	}
	if record.Status != models.ApprovalStatusPending {
		return nil, appErrors.Clone(appErrors.ErrFinalized,
			fmt.Sprintf("invoice is %s, decision already recorded", record.Status))
	}

	to := models.ApprovalStatusPendingFinance
	if !req.Approve {
		to = models.ApprovalStatusRejected
	}
	now := time.Now().UTC()
	params := repository.TransitionParams{
		ID:         record.ID,
		FromStatus: models.ApprovalStatusPending,
		ToStatus:   to,
		DecidedBy:  &actor.UserID,
		DecidedAt:  &now,
		Comments:   optionalString(req.Comments),
	}
	if !req.Approve {
		params.RejectReason = optionalString(req.Comments)
	}
	if err := s.applyTransition(ctx, record, params); err != nil {
		return nil, err
	}
	s.metrics.RecordApprovalDecision(models.ApprovalInvoice, to)
	s.emitAudit(ctx, actor, models.AuditActionInvoiceDecide, record, map[string]interface{}{"approve": req.Approve})
	return record, nil
}

// RecordInvoiceOutcome stores the status reported back by accounts. The
// progression is monotonic: PENDING_FINANCE precedes SENT_AWAITING_PAYMENT
// precedes PAID.
func (s *ApprovalService) RecordInvoiceOutcome(ctx context.Context, recordID string, req dto.InvoiceOutcomeRequest, actor *models.JWTClaims) (*models.ApprovalRecord, error) {
	record, err := s.loadRecord(ctx, recordID, models.ApprovalInvoice)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.ManagerTier() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers may record invoice outcomes")
	}

	to := models.ApprovalStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	var from models.ApprovalStatus
	switch to {
	case models.ApprovalStatusAwaitingPayment:
		from = models.ApprovalStatusPendingFinance
	case models.ApprovalStatusPaid:
		from = models.ApprovalStatusAwaitingPayment
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be SENT_AWAITING_PAYMENT or PAID")
	}
	if record.Status != from {
		return nil, appErrors.Clone(appErrors.ErrFinalized,
			fmt.Sprintf("invoice is %s, cannot record %s", record.Status, to))
	}

	params := repository.TransitionParams{
		ID:         record.ID,
		FromStatus: from,
		ToStatus:   to,
	}
	if err := s.applyTransition(ctx, record, params); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor, models.AuditActionInvoiceOutcome, record, nil)
	return record, nil
}

// ListByLead returns all approval records for a lead.
func (s *ApprovalService) ListByLead(ctx context.Context, leadID string, actor *models.JWTClaims) ([]models.ApprovalRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.loadLead(ctx, leadID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByLead(ctx, leadID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approval records")
	}
	return records, nil
}

func (s *ApprovalService) loadLead(ctx context.Context, leadID string) (*models.Lead, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}
	return lead, nil
}

func (s *ApprovalService) loadRecord(ctx context.Context, recordID string, kind models.ApprovalKind) (*models.ApprovalRecord, error) {
	record, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval record")
	}
	if record.Kind != kind {
		return nil, appErrors.ErrNotFound
	}
	return record, nil
}

// applyTransition runs the guarded update and mirrors the outcome on the
// lead. A guard miss means another actor finalized the record concurrently.
func (s *ApprovalService) applyTransition(ctx context.Context, record *models.ApprovalRecord, params repository.TransitionParams) error {
	if err := s.repo.Transition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrFinalized, "approval record was finalized concurrently")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition approval record")
	}
	record.Status = params.ToStatus
	if params.DecidedBy != nil {
		record.DecidedBy = params.DecidedBy
		record.DecidedAt = params.DecidedAt
	}
	if params.Comments != nil {
		record.Comments = params.Comments
	}
	if params.RejectReason != nil {
		record.RejectReason = params.RejectReason
	}
	if params.SentVia != nil {
		record.SentVia = params.SentVia
		record.SentTo = params.SentTo
		record.SentAt = params.SentAt
	}
	return s.mirrorLeadStatus(ctx, record)
}

// mirrorLeadStatus keeps the lead's quotation_status/invoice_status columns
// in step with the latest record state.
func (s *ApprovalService) mirrorLeadStatus(ctx context.Context, record *models.ApprovalRecord) error {
	var quotation *models.QuotationStatus
	var invoice *models.InvoiceStatus
	if record.Kind == models.ApprovalQuotation {
		mapped := quotationMirror(record.Status)
		quotation = &mapped
	} else {
		mapped := invoiceMirror(record.Status)
		invoice = &mapped
	}
	if err := s.leads.UpdateWorkflowStatus(ctx, record.LeadID, quotation, invoice); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lead workflow status")
	}
	return nil
}

func quotationMirror(status models.ApprovalStatus) models.QuotationStatus {
	switch status {
	case models.ApprovalStatusPending:
		return models.QuotationPending
	case models.ApprovalStatusApproved:
		return models.QuotationApproved
	case models.ApprovalStatusRejected:
		return models.QuotationRejected
	case models.ApprovalStatusSentToClient:
		return models.QuotationSentToClient
	}
	return models.QuotationNone
}

func invoiceMirror(status models.ApprovalStatus) models.InvoiceStatus {
	switch status {
	case models.ApprovalStatusPending:
		return models.InvoicePendingReview
	case models.ApprovalStatusPendingFinance:
		return models.InvoicePendingFinance
	case models.ApprovalStatusRejected:
		return models.InvoiceRejected
	case models.ApprovalStatusAwaitingPayment:
		return models.InvoiceAwaitingPayment
	case models.ApprovalStatusPaid:
		return models.InvoicePaid
	}
	return models.InvoiceNone
}

func (s *ApprovalService) emitAudit(ctx context.Context, actor *models.JWTClaims, action string, record *models.ApprovalRecord, extra map[string]interface{}) {
	if s.audit == nil || actor == nil {
		return
	}
	summary := map[string]interface{}{
		"record_id": record.ID,
		"kind":      record.Kind,
		"status":    record.Status,
		"revision":  record.Revision,
		"amount":    record.Amount,
	}
	for k, v := range extra {
		summary[k] = v
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		raw = []byte("{}")
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "lead",
		ResourceID: &record.LeadID,
		NewValues:  raw,
		IPAddress:  "system",
		UserAgent:  "approval-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
