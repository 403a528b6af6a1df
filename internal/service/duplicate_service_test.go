package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lead-lifecycle-api/internal/dto"
	"github.com/noah-isme/lead-lifecycle-api/internal/models"
	"github.com/noah-isme/lead-lifecycle-api/internal/repository"
	appErrors "github.com/noah-isme/lead-lifecycle-api/pkg/errors"
)

type duplicateRepoStub struct {
	alerts     map[string]*models.DuplicateAlert
	lastParams repository.ResolveParams
	resolves   int
}

func newDuplicateRepoStub() *duplicateRepoStub {
	return &duplicateRepoStub{alerts: make(map[string]*models.DuplicateAlert)}
}

func (r *duplicateRepoStub) Create(ctx context.Context, alert *models.DuplicateAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	copy := *alert
	r.alerts[alert.ID] = &copy
	return nil
}

func (r *duplicateRepoStub) GetByID(ctx context.Context, id string) (*models.DuplicateAlert, error) {
	if alert, ok := r.alerts[id]; ok {
		copy := *alert
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *duplicateRepoStub) List(ctx context.Context, filter models.DuplicateAlertFilter) ([]models.DuplicateAlert, error) {
	result := make([]models.DuplicateAlert, 0, len(r.alerts))
	for _, alert := range r.alerts {
		result = append(result, *alert)
	}
	return result, nil
}

func (r *duplicateRepoStub) Resolve(ctx context.Context, params repository.ResolveParams) error {
	alert, ok := r.alerts[params.AlertID]
	if !ok || alert.Status != models.AlertUnresolved {
		return sql.ErrNoRows
	}
	alert.Status = models.AlertResolved
	r.lastParams = params
	r.resolves++
	return nil
}

type duplicateLeadStub struct {
	leads map[string]*models.Lead
}

func (s *duplicateLeadStub) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	if lead, ok := s.leads[id]; ok {
		copy := *lead
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func duplicateFixture() (*DuplicateService, *duplicateRepoStub, *duplicateLeadStub) {
	repo := newDuplicateRepoStub()
	leads := &duplicateLeadStub{leads: map[string]*models.Lead{
		"lead-a": {ID: "lead-a", RecordStatus: models.RecordActive, CreatedAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)},
		"lead-b": {ID: "lead-b", RecordStatus: models.RecordActive, CreatedAt: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewDuplicateService(repo, leads, &auditStub{}, nil, nil)
	return svc, repo, leads
}

func TestDuplicateServiceIngestOrdersByCreation(t *testing.T) {
	svc, _, _ := duplicateFixture()

	alert, err := svc.Ingest(context.Background(), dto.IngestAlertRequest{
		LeadAID:         "lead-b",
		LeadBID:         "lead-a",
		SimilarityScore: 87,
	})
	require.NoError(t, err)
	require.Equal(t, "lead-a", alert.LeadAID)
	require.Equal(t, "lead-b", alert.LeadBID)
	require.Equal(t, models.AlertUnresolved, alert.Status)
}

func TestDuplicateServiceIngestValidation(t *testing.T) {
	svc, _, _ := duplicateFixture()

	_, err := svc.Ingest(context.Background(), dto.IngestAlertRequest{LeadAID: "lead-a", LeadBID: "lead-a", SimilarityScore: 50})
	require.Error(t, err)

	_, err = svc.Ingest(context.Background(), dto.IngestAlertRequest{LeadAID: "lead-a", LeadBID: "lead-b", SimilarityScore: 120})
	require.Error(t, err)

	_, err = svc.Ingest(context.Background(), dto.IngestAlertRequest{LeadAID: "lead-a", LeadBID: "ghost", SimilarityScore: 70})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDuplicateServiceIngestPayload(t *testing.T) {
	svc, repo, _ := duplicateFixture()

	err := svc.IngestPayload(context.Background(), []byte(`{"lead_a_id":"lead-a","lead_b_id":"lead-b","similarity_score":91}`))
	require.NoError(t, err)
	require.Len(t, repo.alerts, 1)

	err = svc.IngestPayload(context.Background(), []byte(`not json`))
	require.Error(t, err)
}

func TestDuplicateServiceResolveRequiresManager(t *testing.T) {
	svc, _, _ := duplicateFixture()
	alert, err := svc.Ingest(context.Background(), dto.IngestAlertRequest{LeadAID: "lead-a", LeadBID: "lead-b", SimilarityScore: 80})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), alert.ID, dto.ResolveAlertRequest{Action: "ASSIGN_TO_A"}, salesActor("rep-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDuplicateServiceResolveAssignToA(t *testing.T) {
	svc, repo, _ := duplicateFixture()
	alert, err := svc.Ingest(context.Background(), dto.IngestAlertRequest{LeadAID: "lead-a", LeadBID: "lead-b", SimilarityScore: 80})
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), alert.ID, dto.ResolveAlertRequest{Action: "ASSIGN_TO_A"}, managerActor("mgr-1"))
	require.NoError(t, err)
	require.Equal(t, models.AlertResolved, resolved.Status)
	require.NotNil(t, resolved.CreditedLeadID)
	require.Equal(t, "lead-a", *resolved.CreditedLeadID)
	require.Equal(t, models.RecordMerged, repo.lastParams.LeadStatuses["lead-b"])
	require.Empty(t, repo.lastParams.LeadStatuses["lead-a"])
}

func TestDuplicateServiceResolveExactlyOnce(t *testing.T) {
	svc, repo, _ := duplicateFixture()
	alert, err := svc.Ingest(context.Background(), dto.IngestAlertRequest{LeadAID: "lead-a", LeadBID: "lead-b", SimilarityScore: 80})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), alert.ID, dto.ResolveAlertRequest{Action: "DIFFERENT"}, managerActor("mgr-1"))
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), alert.ID, dto.ResolveAlertRequest{Action: "ASSIGN_TO_B"}, managerActor("mgr-2"))
	require.ErrorIs(t, err, appErrors.ErrAlreadyResolved)
	require.Equal(t, 1, repo.resolves)
}

func TestDuplicateServiceResolveSplitCredit(t *testing.T) {
	svc, repo, _ := duplicateFixture()
	alert, err := svc.Ingest(context.Background(), dto.IngestAlertRequest{LeadAID: "lead-a", LeadBID: "lead-b", SimilarityScore: 80})
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), alert.ID, dto.ResolveAlertRequest{Action: "SPLIT_CREDIT"}, managerActor("mgr-1"))
	require.NoError(t, err)
	require.True(t, resolved.CreditSplit)
	require.Nil(t, resolved.CreditedLeadID)
	require.Empty(t, repo.lastParams.LeadStatuses)
}

func TestDuplicateServiceResolveRejectBoth(t *testing.T) {
	svc, repo, _ := duplicateFixture()
	alert, err := svc.Ingest(context.Background(), dto.IngestAlertRequest{LeadAID: "lead-a", LeadBID: "lead-b", SimilarityScore: 80})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), alert.ID, dto.ResolveAlertRequest{Action: "REJECT_BOTH"}, managerActor("mgr-1"))
	require.NoError(t, err)
	require.Equal(t, models.RecordRejected, repo.lastParams.LeadStatuses["lead-a"])
	require.Equal(t, models.RecordRejected, repo.lastParams.LeadStatuses["lead-b"])
}

func TestDuplicateServiceResolveUnknownAction(t *testing.T) {
	svc, _, _ := duplicateFixture()
	alert, err := svc.Ingest(context.Background(), dto.IngestAlertRequest{LeadAID: "lead-a", LeadBID: "lead-b", SimilarityScore: 80})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), alert.ID, dto.ResolveAlertRequest{Action: "MERGE_ALL"}, managerActor("mgr-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDuplicateServiceGetComparison(t *testing.T) {
	svc, _, _ := duplicateFixture()
	alert, err := svc.Ingest(context.Background(), dto.IngestAlertRequest{LeadAID: "lead-a", LeadBID: "lead-b", SimilarityScore: 80})
	require.NoError(t, err)

	comparison, err := svc.Get(context.Background(), alert.ID, salesActor("rep-1"))
	require.NoError(t, err)
	require.Equal(t, "lead-a", comparison.LeadA.ID)
	require.Equal(t, "lead-b", comparison.LeadB.ID)
}
