package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lead-lifecycle-api/internal/dto"
	"github.com/noah-isme/lead-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/lead-lifecycle-api/pkg/errors"
)

type leadRepoStub struct {
	leads  map[string]*models.Lead
	filter models.LeadFilter
}

func newLeadRepoStub() *leadRepoStub {
	return &leadRepoStub{leads: make(map[string]*models.Lead)}
}

func (r *leadRepoStub) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	lead.Version = 1
	copy := *lead
	r.leads[lead.ID] = &copy
	return nil
}

func (r *leadRepoStub) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	if lead, ok := r.leads[id]; ok {
		copy := *lead
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *leadRepoStub) Update(ctx context.Context, lead *models.Lead) error {
	stored, ok := r.leads[lead.ID]
	if !ok || stored.Version != lead.Version {
		return sql.ErrNoRows
	}
	copy := *lead
	copy.Version++
	r.leads[lead.ID] = &copy
	lead.Version++
	return nil
}

func (r *leadRepoStub) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error) {
	r.filter = filter
	result := make([]models.Lead, 0, len(r.leads))
	for _, lead := range r.leads {
		result = append(result, *lead)
	}
	return result, nil
}

type courseProviderStub struct {
	course *models.Course
}

func (c *courseProviderStub) Course(ctx context.Context, id string) (*models.Course, error) {
	return c.course, nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditStub) ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	result := make([]models.AuditLog, 0, len(a.logs))
	for _, log := range a.logs {
		if log.Resource == resource && log.ResourceID != nil && *log.ResourceID == resourceID {
			result = append(result, *log)
		}
	}
	return result, nil
}

func newLeadService(repo *leadRepoStub, course *models.Course, audit *auditStub) *LeadService {
	return NewLeadService(repo, &courseProviderStub{course: course}, audit, audit, nil, nil)
}

func defaultCourse() *models.Course {
	tier := 800.0
	return &models.Course{ID: "course-1", Name: "Fire Safety", BaseFee: 1000, Tier10Plus: &tier, Active: true}
}

func salesActor(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleSales}
}

func TestLeadServiceCreateCompanyLead(t *testing.T) {
	repo := newLeadRepoStub()
	audit := &auditStub{}
	svc := newLeadService(repo, defaultCourse(), audit)

	lead, err := svc.Create(context.Background(), dto.CreateLeadRequest{
		Type:          models.LeadTypeCompany,
		CompanyName:   "Acme Trading LLC",
		ContactPerson: "Fatima",
		Designation:   "HR Manager",
		Mobile:        "+971501234567",
		CourseID:      "course-1",
		Trainees:      12,
		Urgency:       "HIGH",
		Source:        "REFERRAL",
		Category:      "HOT",
	}, salesActor("rep-1"))
	require.NoError(t, err)
	require.Equal(t, models.PipelineNew, lead.PipelineStatus)
	require.Equal(t, models.RecordActive, lead.RecordStatus)
	require.Equal(t, models.ScoreHot, lead.LeadScore)
	require.Equal(t, 9600.0, lead.LeadValue)
	require.Equal(t, "rep-1", lead.OwnerID)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionLeadCreate, audit.logs[0].Action)
}

func TestLeadServiceCreateIndividualRejectsCompanyFields(t *testing.T) {
	repo := newLeadRepoStub()
	svc := newLeadService(repo, defaultCourse(), &auditStub{})

	_, err := svc.Create(context.Background(), dto.CreateLeadRequest{
		Type:        models.LeadTypeIndividual,
		ClientName:  "Omar",
		CompanyName: "Acme Trading LLC",
		Mobile:      "+971501234567",
		CourseID:    "course-1",
		Trainees:    1,
	}, salesActor("rep-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLeadServiceCreateCompanyMissingContact(t *testing.T) {
	repo := newLeadRepoStub()
	svc := newLeadService(repo, defaultCourse(), &auditStub{})

	_, err := svc.Create(context.Background(), dto.CreateLeadRequest{
		Type:        models.LeadTypeCompany,
		CompanyName: "Acme Trading LLC",
		Mobile:      "+971501234567",
		CourseID:    "course-1",
		Trainees:    5,
	}, salesActor("rep-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLeadServiceUpdateVersionConflict(t *testing.T) {
	repo := newLeadRepoStub()
	svc := newLeadService(repo, defaultCourse(), &auditStub{})
	actor := salesActor("rep-1")

	lead, err := svc.Create(context.Background(), dto.CreateLeadRequest{
		Type:       models.LeadTypeIndividual,
		ClientName: "Omar",
		Mobile:     "+971501234567",
		CourseID:   "course-1",
		Trainees:   3,
	}, actor)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), lead.ID, dto.UpdateLeadRequest{
		ExpectedVersion: lead.Version + 5,
	}, actor)
	require.ErrorIs(t, err, appErrors.ErrVersionConflict)
}

func TestLeadServiceUpdateRescoresOnTraineeChange(t *testing.T) {
	repo := newLeadRepoStub()
	svc := newLeadService(repo, defaultCourse(), &auditStub{})
	actor := salesActor("rep-1")

	lead, err := svc.Create(context.Background(), dto.CreateLeadRequest{
		Type:       models.LeadTypeIndividual,
		ClientName: "Omar",
		Mobile:     "+971501234567",
		CourseID:   "course-1",
		Trainees:   3,
	}, actor)
	require.NoError(t, err)
	require.Equal(t, 3000.0, lead.LeadValue)

	trainees := 12
	updated, err := svc.Update(context.Background(), lead.ID, dto.UpdateLeadRequest{
		ExpectedVersion: lead.Version,
		Trainees:        &trainees,
	}, actor)
	require.NoError(t, err)
	require.Equal(t, 9600.0, updated.LeadValue)
	require.Equal(t, lead.Version+1, updated.Version)
}

func TestLeadServiceUpdateTerminalLeadBlocked(t *testing.T) {
	repo := newLeadRepoStub()
	svc := newLeadService(repo, defaultCourse(), &auditStub{})
	actor := salesActor("rep-1")

	lead, err := svc.Create(context.Background(), dto.CreateLeadRequest{
		Type:       models.LeadTypeIndividual,
		ClientName: "Omar",
		Mobile:     "+971501234567",
		CourseID:   "course-1",
		Trainees:   3,
	}, actor)
	require.NoError(t, err)

	won := string(models.PipelineWon)
	updated, err := svc.Update(context.Background(), lead.ID, dto.UpdateLeadRequest{
		ExpectedVersion: lead.Version,
		PipelineStatus:  &won,
	}, actor)
	require.NoError(t, err)
	require.NotNil(t, updated.LastContactAt)

	lost := string(models.PipelineLost)
	_, err = svc.Update(context.Background(), lead.ID, dto.UpdateLeadRequest{
		ExpectedVersion: updated.Version,
		PipelineStatus:  &lost,
	}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestLeadServiceUpdateContactFieldsRequireCompanyLead(t *testing.T) {
	repo := newLeadRepoStub()
	svc := newLeadService(repo, defaultCourse(), &auditStub{})
	actor := salesActor("rep-1")

	lead, err := svc.Create(context.Background(), dto.CreateLeadRequest{
		Type:       models.LeadTypeIndividual,
		ClientName: "Omar",
		Mobile:     "+971501234567",
		CourseID:   "course-1",
		Trainees:   3,
	}, actor)
	require.NoError(t, err)

	contact := "Fatima"
	_, err = svc.Update(context.Background(), lead.ID, dto.UpdateLeadRequest{
		ExpectedVersion: lead.Version,
		ContactPerson:   &contact,
	}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	designation := "HR Manager"
	_, err = svc.Update(context.Background(), lead.ID, dto.UpdateLeadRequest{
		ExpectedVersion: lead.Version,
		Designation:     &designation,
	}, actor)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	company, err := svc.Create(context.Background(), dto.CreateLeadRequest{
		Type:          models.LeadTypeCompany,
		CompanyName:   "Acme Trading LLC",
		ContactPerson: "Fatima",
		Designation:   "HR Manager",
		Mobile:        "+971501234567",
		CourseID:      "course-1",
		Trainees:      5,
	}, actor)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), company.ID, dto.UpdateLeadRequest{
		ExpectedVersion: company.Version,
		ContactPerson:   &contact,
		Designation:     &designation,
	}, actor)
	require.NoError(t, err)
	require.Equal(t, contact, *updated.ContactPerson)
}

func TestLeadServiceUpdateForbiddenForOtherRep(t *testing.T) {
	repo := newLeadRepoStub()
	svc := newLeadService(repo, defaultCourse(), &auditStub{})

	lead, err := svc.Create(context.Background(), dto.CreateLeadRequest{
		Type:       models.LeadTypeIndividual,
		ClientName: "Omar",
		Mobile:     "+971501234567",
		CourseID:   "course-1",
		Trainees:   3,
	}, salesActor("rep-1"))
	require.NoError(t, err)

	location := "Dubai"
	_, err = svc.Update(context.Background(), lead.ID, dto.UpdateLeadRequest{
		ExpectedVersion: lead.Version,
		Location:        &location,
	}, salesActor("rep-2"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestLeadServiceListScopesSalesReps(t *testing.T) {
	repo := newLeadRepoStub()
	svc := newLeadService(repo, defaultCourse(), &auditStub{})

	_, err := svc.List(context.Background(), dto.LeadQuery{}, salesActor("rep-1"))
	require.NoError(t, err)
	require.Equal(t, "rep-1", repo.filter.VisibleTo)

	_, err = svc.List(context.Background(), dto.LeadQuery{}, &models.JWTClaims{UserID: "mgr-1", Role: models.RoleManager})
	require.NoError(t, err)
	require.Empty(t, repo.filter.VisibleTo)
}
