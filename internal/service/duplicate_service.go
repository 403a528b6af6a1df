package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lead-lifecycle-api/internal/dto"
	"github.com/noah-isme/lead-lifecycle-api/internal/models"
	"github.com/noah-isme/lead-lifecycle-api/internal/repository"
	appErrors "github.com/noah-isme/lead-lifecycle-api/pkg/errors"
)

type duplicateStore interface {
	Create(ctx context.Context, alert *models.DuplicateAlert) error
	GetByID(ctx context.Context, id string) (*models.DuplicateAlert, error)
	List(ctx context.Context, filter models.DuplicateAlertFilter) ([]models.DuplicateAlert, error)
	Resolve(ctx context.Context, params repository.ResolveParams) error
}

type duplicateLeadStore interface {
	GetByID(ctx context.Context, id string) (*models.Lead, error)
}

// DuplicateService consumes detector alerts and applies credit resolutions.
// Similarity is computed upstream; this service only validates, presents, and
// resolves. Each alert resolves exactly once.
type DuplicateService struct {
	repo    duplicateStore
	leads   duplicateLeadStore
	audit   auditLogger
	metrics *MetricsService
	logger  *zap.Logger
}

// NewDuplicateService constructs the service.
func NewDuplicateService(repo duplicateStore, leads duplicateLeadStore, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *DuplicateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuplicateService{repo: repo, leads: leads, audit: audit, metrics: metrics, logger: logger}
}

// Ingest stores a detector-produced candidate pair. The earlier submission
// is normalised into the A slot.
func (s *DuplicateService) Ingest(ctx context.Context, req dto.IngestAlertRequest) (*models.DuplicateAlert, error) {
	if req.LeadAID == req.LeadBID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an alert must reference two distinct leads")
	}
	if req.SimilarityScore < 0 || req.SimilarityScore > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "similarity_score must be between 0 and 100")
	}

	leadA, err := s.loadLead(ctx, req.LeadAID)
	if err != nil {
		return nil, err
	}
	leadB, err := s.loadLead(ctx, req.LeadBID)
	if err != nil {
		return nil, err
	}
	if leadB.CreatedAt.Before(leadA.CreatedAt) {
		leadA, leadB = leadB, leadA
	}

	factors := []byte(req.SimilarityFactors)
	if len(factors) == 0 || !json.Valid(factors) {
		factors = []byte("[]")
	}

	alert := &models.DuplicateAlert{
		LeadAID:           leadA.ID,
		LeadBID:           leadB.ID,
		SimilarityScore:   req.SimilarityScore,
		SimilarityFactors: factors,
		Status:            models.AlertUnresolved,
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create duplicate alert")
	}

	s.logger.Info("duplicate alert ingested",
		zap.String("alert_id", alert.ID),
		zap.String("lead_a", alert.LeadAID),
		zap.String("lead_b", alert.LeadBID),
		zap.Int("similarity", alert.SimilarityScore))
	return alert, nil
}

// IngestPayload decodes a broker message and ingests it.
func (s *DuplicateService) IngestPayload(ctx context.Context, body []byte) error {
	var req dto.IngestAlertRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "malformed alert payload")
	}
	_, err := s.Ingest(ctx, req)
	return err
}

// List returns alerts matching the filter.
func (s *DuplicateService) List(ctx context.Context, filter models.DuplicateAlertFilter, actor *models.JWTClaims) ([]models.DuplicateAlert, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	alerts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list duplicate alerts")
	}
	return alerts, nil
}

// Get returns the alert with both lead snapshots for side-by-side review.
func (s *DuplicateService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.AlertComparison, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	alert, err := s.loadAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	leadA, err := s.loadLead(ctx, alert.LeadAID)
	if err != nil {
		return nil, err
	}
	leadB, err := s.loadLead(ctx, alert.LeadBID)
	if err != nil {
		return nil, err
	}
	return &models.AlertComparison{Alert: *alert, LeadA: *leadA, LeadB: *leadB}, nil
}

// Resolve applies one of the five resolution actions. The dual-lead actions
// are atomic: a crash cannot leave one lead updated and the other untouched.
func (s *DuplicateService) Resolve(ctx context.Context, id string, req dto.ResolveAlertRequest, actor *models.JWTClaims) (*models.DuplicateAlert, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.ManagerTier() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers may resolve duplicate alerts")
	}

	alert, err := s.loadAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status == models.AlertResolved {
		return nil, appErrors.ErrAlreadyResolved
	}

	action := models.ResolutionAction(strings.ToUpper(strings.TrimSpace(req.Action)))
	now := time.Now().UTC()
	params := repository.ResolveParams{
		AlertID:      alert.ID,
		LeadAID:      alert.LeadAID,
		LeadBID:      alert.LeadBID,
		Action:       action,
		Notes:        optionalString(req.Notes),
		ResolvedBy:   actor.UserID,
		ResolvedAt:   now,
		LeadStatuses: map[string]models.RecordStatus{},
	}

	switch action {
	case models.ResolveAssignToA:
		params.CreditedLeadID = &alert.LeadAID
		params.LeadStatuses[alert.LeadBID] = models.RecordMerged
	case models.ResolveAssignToB:
		params.CreditedLeadID = &alert.LeadBID
		params.LeadStatuses[alert.LeadAID] = models.RecordMerged
	case models.ResolveSplitCredit:
		// Both leads stay active; the split is an annotation for compensation.
		params.CreditSplit = true
	case models.ResolveDifferent:
	case models.ResolveRejectBoth:
		params.LeadStatuses[alert.LeadAID] = models.RecordRejected
		params.LeadStatuses[alert.LeadBID] = models.RecordRejected
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation,
			"action must be ASSIGN_TO_A, ASSIGN_TO_B, SPLIT_CREDIT, DIFFERENT, or REJECT_BOTH")
	}

	if err := s.repo.Resolve(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAlreadyResolved
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve duplicate alert")
	}

	alert.Status = models.AlertResolved
	alert.Resolution = &action
	alert.Notes = params.Notes
	alert.CreditedLeadID = params.CreditedLeadID
	alert.CreditSplit = params.CreditSplit
	alert.ResolvedBy = &actor.UserID
	alert.ResolvedAt = &now

	s.metrics.RecordDuplicateResolution(action)
	s.emitAudit(ctx, actor, alert)
	return alert, nil
}

func (s *DuplicateService) loadAlert(ctx context.Context, id string) (*models.DuplicateAlert, error) {
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load duplicate alert")
	}
	return alert, nil
}

func (s *DuplicateService) loadLead(ctx context.Context, id string) (*models.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "referenced lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}
	return lead, nil
}

func (s *DuplicateService) emitAudit(ctx context.Context, actor *models.JWTClaims, alert *models.DuplicateAlert) {
	if s.audit == nil {
		return
	}
	summary, err := json.Marshal(map[string]interface{}{
		"alert_id":     alert.ID,
		"resolution":   alert.Resolution,
		"credited":     alert.CreditedLeadID,
		"credit_split": alert.CreditSplit,
	})
	if err != nil {
		summary = []byte("{}")
	}
	for _, leadID := range []string{alert.LeadAID, alert.LeadBID} {
		id := leadID
		log := &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionDuplicateResolve,
			Resource:   "lead",
			ResourceID: &id,
			NewValues:  summary,
			IPAddress:  "system",
			UserAgent:  "duplicate-service",
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}
}
