package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lead-lifecycle-api/internal/dto"
	"github.com/noah-isme/lead-lifecycle-api/internal/models"
	"github.com/noah-isme/lead-lifecycle-api/internal/repository"
	appErrors "github.com/noah-isme/lead-lifecycle-api/pkg/errors"
)

type approvalRepoStub struct {
	records     map[string]*models.ApprovalRecord
	transitions int
}

func newApprovalRepoStub() *approvalRepoStub {
	return &approvalRepoStub{records: make(map[string]*models.ApprovalRecord)}
}

func (r *approvalRepoStub) Create(ctx context.Context, record *models.ApprovalRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	copy := *record
	r.records[record.ID] = &copy
	return nil
}

func (r *approvalRepoStub) GetByID(ctx context.Context, id string) (*models.ApprovalRecord, error) {
	if record, ok := r.records[id]; ok {
		copy := *record
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *approvalRepoStub) GetLatestByLeadAndKind(ctx context.Context, leadID string, kind models.ApprovalKind) (*models.ApprovalRecord, error) {
	var latest *models.ApprovalRecord
	for _, record := range r.records {
		if record.LeadID != leadID || record.Kind != kind {
			continue
		}
		if latest == nil || record.CreatedAt.After(latest.CreatedAt) {
			latest = record
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	copy := *latest
	return &copy, nil
}

func (r *approvalRepoStub) ListByLead(ctx context.Context, leadID string) ([]models.ApprovalRecord, error) {
	result := make([]models.ApprovalRecord, 0)
	for _, record := range r.records {
		if record.LeadID == leadID {
			result = append(result, *record)
		}
	}
	return result, nil
}

func (r *approvalRepoStub) Transition(ctx context.Context, params repository.TransitionParams) error {
	record, ok := r.records[params.ID]
	if !ok || record.Status != params.FromStatus {
		return sql.ErrNoRows
	}
	record.Status = params.ToStatus
	if params.DecidedBy != nil {
		record.DecidedBy = params.DecidedBy
		record.DecidedAt = params.DecidedAt
	}
	if params.SentVia != nil {
		record.SentVia = params.SentVia
		record.SentTo = params.SentTo
		record.SentAt = params.SentAt
	}
	if params.BumpRevision {
		record.Revision++
	}
	r.transitions++
	return nil
}

type approvalLeadStub struct {
	leads           map[string]*models.Lead
	lastQuotation   *models.QuotationStatus
	lastInvoice     *models.InvoiceStatus
	mirroredLeadIDs []string
}

func newApprovalLeadStub() *approvalLeadStub {
	return &approvalLeadStub{leads: make(map[string]*models.Lead)}
}

func (s *approvalLeadStub) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	if lead, ok := s.leads[id]; ok {
		copy := *lead
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *approvalLeadStub) UpdateWorkflowStatus(ctx context.Context, leadID string, quotation *models.QuotationStatus, invoice *models.InvoiceStatus) error {
	if quotation != nil {
		s.lastQuotation = quotation
	}
	if invoice != nil {
		s.lastInvoice = invoice
	}
	s.mirroredLeadIDs = append(s.mirroredLeadIDs, leadID)
	return nil
}

type mailerStub struct {
	sent []string
}

func (m *mailerStub) SendQuotation(ctx context.Context, toEmail, clientName, leadID string, amount float64) error {
	m.sent = append(m.sent, toEmail)
	return nil
}

func approvalFixture() (*ApprovalService, *approvalRepoStub, *approvalLeadStub, *mailerStub) {
	repo := newApprovalRepoStub()
	leads := newApprovalLeadStub()
	name := "Acme Trading LLC"
	leads.leads["lead-1"] = &models.Lead{
		ID:           "lead-1",
		Type:         models.LeadTypeCompany,
		CompanyName:  &name,
		OwnerID:      "rep-1",
		LeadValue:    9600,
		RecordStatus: models.RecordActive,
	}
	m := &mailerStub{}
	svc := NewApprovalService(repo, leads, &auditStub{}, m, nil, nil)
	return svc, repo, leads, m
}

func managerActor(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleManager}
}

func TestApprovalServiceRequestQuotation(t *testing.T) {
	svc, _, leads, _ := approvalFixture()

	record, err := svc.RequestQuotation(context.Background(), "lead-1", dto.RequestApprovalRequest{}, salesActor("rep-1"))
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPending, record.Status)
	require.Equal(t, 1, record.Revision)
	require.Equal(t, 9600.0, record.Amount)
	require.NotNil(t, leads.lastQuotation)
	require.Equal(t, models.QuotationPending, *leads.lastQuotation)
}

func TestApprovalServiceRequestBlockedWhileOpen(t *testing.T) {
	svc, _, _, _ := approvalFixture()
	actor := salesActor("rep-1")

	_, err := svc.RequestQuotation(context.Background(), "lead-1", dto.RequestApprovalRequest{}, actor)
	require.NoError(t, err)

	_, err = svc.RequestQuotation(context.Background(), "lead-1", dto.RequestApprovalRequest{}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceDecideQuotationOnce(t *testing.T) {
	svc, repo, _, _ := approvalFixture()
	record, err := svc.RequestQuotation(context.Background(), "lead-1", dto.RequestApprovalRequest{}, salesActor("rep-1"))
	require.NoError(t, err)

	decided, err := svc.DecideQuotation(context.Background(), record.ID, dto.DecideApprovalRequest{Approve: true}, managerActor("mgr-1"))
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusApproved, decided.Status)

	_, err = svc.DecideQuotation(context.Background(), record.ID, dto.DecideApprovalRequest{Approve: false}, managerActor("mgr-2"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
	require.Equal(t, 1, repo.transitions)
}

func TestApprovalServiceDecideQuotationRequiresManager(t *testing.T) {
	svc, _, _, _ := approvalFixture()
	record, err := svc.RequestQuotation(context.Background(), "lead-1", dto.RequestApprovalRequest{}, salesActor("rep-1"))
	require.NoError(t, err)

	_, err = svc.DecideQuotation(context.Background(), record.ID, dto.DecideApprovalRequest{Approve: true}, salesActor("rep-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceSendQuotationEmail(t *testing.T) {
	svc, _, leads, m := approvalFixture()
	actor := salesActor("rep-1")
	record, err := svc.RequestQuotation(context.Background(), "lead-1", dto.RequestApprovalRequest{}, actor)
	require.NoError(t, err)
	_, err = svc.DecideQuotation(context.Background(), record.ID, dto.DecideApprovalRequest{Approve: true}, managerActor("mgr-1"))
	require.NoError(t, err)

	_, err = svc.SendQuotation(context.Background(), record.ID, dto.SendQuotationRequest{Channel: "EMAIL"}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	sent, err := svc.SendQuotation(context.Background(), record.ID, dto.SendQuotationRequest{
		Channel:     "EMAIL",
		Destination: "client@example.com",
	}, actor)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusSentToClient, sent.Status)
	require.Equal(t, []string{"client@example.com"}, m.sent)
	require.Equal(t, models.QuotationSentToClient, *leads.lastQuotation)

	_, err = svc.SendQuotation(context.Background(), record.ID, dto.SendQuotationRequest{
		Channel:     "EMAIL",
		Destination: "client@example.com",
	}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceSendRequiresApproval(t *testing.T) {
	svc, _, _, _ := approvalFixture()
	actor := salesActor("rep-1")
	record, err := svc.RequestQuotation(context.Background(), "lead-1", dto.RequestApprovalRequest{}, actor)
	require.NoError(t, err)

	_, err = svc.SendQuotation(context.Background(), record.ID, dto.SendQuotationRequest{Channel: "WHATSAPP"}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceReviseLoop(t *testing.T) {
	svc, _, _, _ := approvalFixture()
	actor := salesActor("rep-1")
	record, err := svc.RequestQuotation(context.Background(), "lead-1", dto.RequestApprovalRequest{}, actor)
	require.NoError(t, err)
	_, err = svc.DecideQuotation(context.Background(), record.ID, dto.DecideApprovalRequest{Approve: false, Comments: "price too high"}, managerActor("mgr-1"))
	require.NoError(t, err)

	revised, err := svc.ReviseQuotation(context.Background(), record.ID, dto.ReviseQuotationRequest{Reason: "discount applied"}, actor)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPending, revised.Status)
	require.Equal(t, 2, revised.Revision)

	_, err = svc.DecideQuotation(context.Background(), record.ID, dto.DecideApprovalRequest{Approve: false}, managerActor("mgr-1"))
	require.NoError(t, err)

	resubmitted, err := svc.ResubmitQuotation(context.Background(), record.ID, actor)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPending, resubmitted.Status)
	require.Equal(t, 2, resubmitted.Revision)
}

func TestApprovalServiceInvoiceFlow(t *testing.T) {
	svc, _, leads, _ := approvalFixture()
	actor := salesActor("rep-1")
	manager := managerActor("mgr-1")

	record, err := svc.RequestInvoice(context.Background(), "lead-1", dto.RequestApprovalRequest{}, actor)
	require.NoError(t, err)
	require.Equal(t, models.InvoicePendingReview, *leads.lastInvoice)

	decided, err := svc.DecideInvoice(context.Background(), record.ID, dto.DecideApprovalRequest{Approve: true}, manager)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPendingFinance, decided.Status)
	require.Equal(t, models.InvoicePendingFinance, *leads.lastInvoice)

	_, err = svc.RecordInvoiceOutcome(context.Background(), record.ID, dto.InvoiceOutcomeRequest{Status: "PAID"}, manager)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)

	_, err = svc.RecordInvoiceOutcome(context.Background(), record.ID, dto.InvoiceOutcomeRequest{Status: "SENT_AWAITING_PAYMENT"}, manager)
	require.NoError(t, err)

	paid, err := svc.RecordInvoiceOutcome(context.Background(), record.ID, dto.InvoiceOutcomeRequest{Status: "PAID"}, manager)
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusPaid, paid.Status)
	require.Equal(t, models.InvoicePaid, *leads.lastInvoice)
}

func TestApprovalServiceRejectedInvoiceAllowsNewRequest(t *testing.T) {
	svc, _, leads, _ := approvalFixture()
	actor := salesActor("rep-1")

	record, err := svc.RequestInvoice(context.Background(), "lead-1", dto.RequestApprovalRequest{}, actor)
	require.NoError(t, err)

	rejected, err := svc.DecideInvoice(context.Background(), record.ID, dto.DecideApprovalRequest{Approve: false, Comments: "wrong PO number"}, managerActor("mgr-1"))
	require.NoError(t, err)
	require.Equal(t, models.ApprovalStatusRejected, rejected.Status)
	require.Equal(t, models.InvoiceRejected, *leads.lastInvoice)

	// A rejected invoice review is closed, so the lead can be invoiced again.
	fresh, err := svc.RequestInvoice(context.Background(), "lead-1", dto.RequestApprovalRequest{}, actor)
	require.NoError(t, err)
	require.NotEqual(t, record.ID, fresh.ID)
	require.Equal(t, models.ApprovalStatusPending, fresh.Status)
	require.Equal(t, 1, fresh.Revision)
	require.Equal(t, models.InvoicePendingReview, *leads.lastInvoice)
}

func TestApprovalServiceRejectedQuotationStillBlocksNewRequest(t *testing.T) {
	svc, _, _, _ := approvalFixture()
	actor := salesActor("rep-1")

	record, err := svc.RequestQuotation(context.Background(), "lead-1", dto.RequestApprovalRequest{}, actor)
	require.NoError(t, err)
	_, err = svc.DecideQuotation(context.Background(), record.ID, dto.DecideApprovalRequest{Approve: false}, managerActor("mgr-1"))
	require.NoError(t, err)

	// Rejected quotations stay open for the revise/resubmit loop.
	_, err = svc.RequestQuotation(context.Background(), "lead-1", dto.RequestApprovalRequest{}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceRequestBlockedOnMergedLead(t *testing.T) {
	svc, _, leads, _ := approvalFixture()
	leads.leads["lead-1"].RecordStatus = models.RecordMerged

	_, err := svc.RequestQuotation(context.Background(), "lead-1", dto.RequestApprovalRequest{}, salesActor("rep-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
