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
	appErrors "github.com/noah-isme/lead-lifecycle-api/pkg/errors"
	"github.com/noah-isme/lead-lifecycle-api/pkg/phone"
)

type leadStore interface {
	Create(ctx context.Context, lead *models.Lead) error
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	Update(ctx context.Context, lead *models.Lead) error
	List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error)
}

type courseProvider interface {
	Course(ctx context.Context, id string) (*models.Course, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type historyReader interface {
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

// LeadService orchestrates the lead lifecycle: every mutation validates,
// rescores when scoring inputs change, persists once, and appends history.
// No partial writes: failures before the store call leave nothing behind.
type LeadService struct {
	repo    leadStore
	courses courseProvider
	audit   auditLogger
	history historyReader
	metrics *MetricsService
	logger  *zap.Logger
}

// NewLeadService constructs the service.
func NewLeadService(repo leadStore, courses courseProvider, audit auditLogger, history historyReader, metrics *MetricsService, logger *zap.Logger) *LeadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadService{repo: repo, courses: courses, audit: audit, history: history, metrics: metrics, logger: logger}
}

// Create validates the variant-specific payload, computes the initial score,
// and persists the lead in status NEW.
func (s *LeadService) Create(ctx context.Context, req dto.CreateLeadRequest, actor *models.JWTClaims) (*models.Lead, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	leadType := models.LeadType(strings.ToUpper(string(req.Type)))
	if leadType != models.LeadTypeCompany && leadType != models.LeadTypeIndividual {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be COMPANY or INDIVIDUAL")
	}

	if req.Trainees < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "trainees must be at least 1")
	}

	mobile := phone.NormalizeE164(req.Mobile)
	if !phone.IsValid(mobile) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mobile is not a valid phone number")
	}

	urgency, err := parseUrgency(req.Urgency)
	if err != nil {
		return nil, err
	}
	source, err := parseSource(req.Source)
	if err != nil {
		return nil, err
	}
	category, err := parseCategory(req.Category)
	if err != nil {
		return nil, err
	}

	lead := &models.Lead{
		Type:            leadType,
		Mobile:          mobile,
		Email:           optionalString(req.Email),
		CompanySize:     req.CompanySize,
		CourseID:        req.CourseID,
		Trainees:        req.Trainees,
		TrainingDate:    req.TrainingDate,
		Location:        optionalString(req.Location),
		Urgency:         urgency,
		Source:          source,
		Category:        category,
		OwnerID:         actor.UserID,
		AssignedTo:      optionalString(req.AssignedTo),
		PipelineStatus:  models.PipelineNew,
		QuotationStatus: models.QuotationNone,
		InvoiceStatus:   models.InvoiceNone,
		RecordStatus:    models.RecordActive,
	}

	switch leadType {
	case models.LeadTypeCompany:
		if strings.TrimSpace(req.CompanyName) == "" ||
			strings.TrimSpace(req.ContactPerson) == "" ||
			strings.TrimSpace(req.Designation) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				"company leads require company_name, contact_person, and designation")
		}
		lead.CompanyName = optionalString(req.CompanyName)
		lead.ContactPerson = optionalString(req.ContactPerson)
		lead.Designation = optionalString(req.Designation)
		lead.Website = optionalString(req.Website)
	case models.LeadTypeIndividual:
		if strings.TrimSpace(req.ClientName) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "individual leads require client_name")
		}
		if req.CompanyName != "" || req.Website != "" {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				"individual leads cannot carry company fields")
		}
		lead.ClientName = optionalString(req.ClientName)
	}

	course, err := s.courses.Course(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	result := ScoreLead(lead, course)
	lead.LeadScore = result.Score
	lead.LeadValue = result.Value

	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lead")
	}

	s.metrics.RecordLeadCreated(lead.LeadScore)
	s.emitAudit(ctx, actor, models.AuditActionLeadCreate, lead.ID, nil, leadSummary(lead))
	return lead, nil
}

// Update applies a patch under optimistic concurrency, rescoring when any
// scoring input changed and enforcing pipeline rules on status patches.
func (s *LeadService) Update(ctx context.Context, id string, req dto.UpdateLeadRequest, actor *models.JWTClaims) (*models.Lead, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}

	if !canActOnLead(actor, lead) {
		return nil, appErrors.ErrForbidden
	}
	if lead.RecordStatus != models.RecordActive {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("lead record is %s and cannot be modified", lead.RecordStatus))
	}
	if req.ExpectedVersion != lead.Version {
		return nil, appErrors.ErrVersionConflict
	}

	before := leadSummary(lead)
	scoringChanged := false
	transitioned := false

	if req.CompanyName != nil {
		if lead.Type != models.LeadTypeCompany {
			return nil, appErrors.Clone(appErrors.ErrValidation, "company_name is only valid on company leads")
		}
		if strings.TrimSpace(*req.CompanyName) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "company_name cannot be emptied")
		}
		lead.CompanyName = req.CompanyName
	}
	if req.ClientName != nil {
		if lead.Type != models.LeadTypeIndividual {
			return nil, appErrors.Clone(appErrors.ErrValidation, "client_name is only valid on individual leads")
		}
		if strings.TrimSpace(*req.ClientName) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "client_name cannot be emptied")
		}
		lead.ClientName = req.ClientName
	}
	if req.ContactPerson != nil {
		if lead.Type != models.LeadTypeCompany {
			return nil, appErrors.Clone(appErrors.ErrValidation, "contact_person is only valid on company leads")
		}
		if strings.TrimSpace(*req.ContactPerson) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "contact_person cannot be emptied")
		}
		lead.ContactPerson = req.ContactPerson
	}
	if req.Designation != nil {
		if lead.Type != models.LeadTypeCompany {
			return nil, appErrors.Clone(appErrors.ErrValidation, "designation is only valid on company leads")
		}
		lead.Designation = req.Designation
	}
	if req.Mobile != nil {
		normalized := phone.NormalizeE164(*req.Mobile)
		if !phone.IsValid(normalized) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "mobile is not a valid phone number")
		}
		lead.Mobile = normalized
	}
	if req.Email != nil {
		lead.Email = optionalString(*req.Email)
	}
	if req.Website != nil {
		if lead.Type != models.LeadTypeCompany {
			return nil, appErrors.Clone(appErrors.ErrValidation, "website is only valid on company leads")
		}
		lead.Website = optionalString(*req.Website)
	}
	if req.CompanySize != nil {
		if *req.CompanySize < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "company_size cannot be negative")
		}
		lead.CompanySize = *req.CompanySize
		scoringChanged = true
	}
	if req.CourseID != nil {
		lead.CourseID = *req.CourseID
		scoringChanged = true
	}
	if req.Trainees != nil {
		if *req.Trainees < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "trainees must be at least 1")
		}
		lead.Trainees = *req.Trainees
		scoringChanged = true
	}
	if req.TrainingDate != nil {
		lead.TrainingDate = req.TrainingDate
	}
	if req.Location != nil {
		lead.Location = optionalString(*req.Location)
	}
	if req.Urgency != nil {
		urgency, err := parseUrgency(*req.Urgency)
		if err != nil {
			return nil, err
		}
		lead.Urgency = urgency
		scoringChanged = true
	}
	if req.Source != nil {
		source, err := parseSource(*req.Source)
		if err != nil {
			return nil, err
		}
		lead.Source = source
		scoringChanged = true
	}
	if req.Category != nil {
		category, err := parseCategory(*req.Category)
		if err != nil {
			return nil, err
		}
		lead.Category = category
		scoringChanged = true
	}
	if req.AssignedTo != nil {
		if !actor.Role.ManagerTier() {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers may reassign leads")
		}
		lead.AssignedTo = optionalString(*req.AssignedTo)
	}
	if req.PipelineStatus != nil {
		next := models.PipelineStatus(strings.ToUpper(strings.TrimSpace(*req.PipelineStatus)))
		if err := ValidatePipelineTransition(lead.PipelineStatus, next); err != nil {
			return nil, err
		}
		lead.PipelineStatus = next
		now := time.Now().UTC()
		lead.LastContactAt = &now
		transitioned = true
	}

	if scoringChanged {
		course, err := s.courses.Course(ctx, lead.CourseID)
		if err != nil {
			return nil, err
		}
		result := ScoreLead(lead, course)
		lead.LeadScore = result.Score
		lead.LeadValue = result.Value
	}

	if err := s.repo.Update(ctx, lead); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrVersionConflict
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lead")
	}

	action := models.AuditActionLeadUpdate
	if transitioned {
		action = models.AuditActionLeadTransition
		s.metrics.RecordPipelineTransition(lead.PipelineStatus)
	}
	s.emitAudit(ctx, actor, action, lead.ID, before, leadSummary(lead))
	return lead, nil
}

// Get returns a lead; read access is unrestricted to authenticated callers.
func (s *LeadService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Lead, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}
	return lead, nil
}

// List returns leads scoped by role: sales reps see only leads they own or
// are assigned to, manager tier sees everything.
func (s *LeadService) List(ctx context.Context, query dto.LeadQuery, actor *models.JWTClaims) ([]models.Lead, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.LeadFilter{
		PipelineStatus: query.Status,
		LeadScore:      query.Score,
		Category:       query.Category,
		Source:         query.Source,
		OwnerID:        query.OwnerID,
		AssignedTo:     query.AssignedTo,
		RecordStatus:   query.RecordStatus,
		Search:         query.Search,
		Limit:          query.Limit,
		Offset:         query.Offset,
	}
	if !actor.Role.ManagerTier() {
		filter.VisibleTo = actor.UserID
	}
	leads, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leads")
	}
	return leads, nil
}

// History returns the append-only audit trail for a lead.
func (s *LeadService) History(ctx context.Context, id string, actor *models.JWTClaims) ([]models.AuditLog, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	logs, err := s.history.ListByResource(ctx, "lead", id, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead history")
	}
	return logs, nil
}

func (s *LeadService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, leadID string, before, after []byte) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "lead",
		ResourceID: &leadID,
		OldValues:  before,
		NewValues:  after,
		IPAddress:  "system",
		UserAgent:  "lead-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// leadSummary captures the workflow-relevant fields for history entries.
func leadSummary(lead *models.Lead) []byte {
	summary := map[string]interface{}{
		"pipeline_status":  lead.PipelineStatus,
		"quotation_status": lead.QuotationStatus,
		"invoice_status":   lead.InvoiceStatus,
		"record_status":    lead.RecordStatus,
		"lead_score":       lead.LeadScore,
		"lead_value":       lead.LeadValue,
		"category":         lead.Category,
		"urgency":          lead.Urgency,
		"trainees":         lead.Trainees,
		"version":          lead.Version,
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

func parseUrgency(raw string) (models.Urgency, error) {
	if strings.TrimSpace(raw) == "" {
		return models.UrgencyMedium, nil
	}
	switch models.Urgency(strings.ToUpper(strings.TrimSpace(raw))) {
	case models.UrgencyLow:
		return models.UrgencyLow, nil
	case models.UrgencyMedium:
		return models.UrgencyMedium, nil
	case models.UrgencyHigh:
		return models.UrgencyHigh, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "urgency must be LOW, MEDIUM, or HIGH")
}

func parseSource(raw string) (models.LeadSource, error) {
	if strings.TrimSpace(raw) == "" {
		return models.SourceOther, nil
	}
	switch models.LeadSource(strings.ToUpper(strings.TrimSpace(raw))) {
	case models.SourceReferral:
		return models.SourceReferral, nil
	case models.SourceWalkIn:
		return models.SourceWalkIn, nil
	case models.SourceWebsite:
		return models.SourceWebsite, nil
	case models.SourceColdCall:
		return models.SourceColdCall, nil
	case models.SourceSocialMedia:
		return models.SourceSocialMedia, nil
	case models.SourceOther:
		return models.SourceOther, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "unsupported lead source")
}

func parseCategory(raw string) (models.LeadCategory, error) {
	if strings.TrimSpace(raw) == "" {
		return models.CategoryWarm, nil
	}
	switch models.LeadCategory(strings.ToUpper(strings.TrimSpace(raw))) {
	case models.CategoryHot:
		return models.CategoryHot, nil
	case models.CategoryWarm:
		return models.CategoryWarm, nil
	case models.CategoryCold:
		return models.CategoryCold, nil
	case models.CategoryQualified:
		return models.CategoryQualified, nil
	case models.CategoryUnqualified:
		return models.CategoryUnqualified, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "unsupported lead category")
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}
