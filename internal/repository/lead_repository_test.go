package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lead-lifecycle-api/internal/models"
)

func newLeadRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLeadRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leads")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	name := "Acme Trading LLC"
	lead := &models.Lead{
		Type:           models.LeadTypeCompany,
		CompanyName:    &name,
		Mobile:         "+971501234567",
		CourseID:       "course-1",
		Trainees:       12,
		Urgency:        models.UrgencyHigh,
		Source:         models.SourceReferral,
		Category:       models.CategoryHot,
		LeadScore:      models.ScoreHot,
		LeadValue:      9600,
		OwnerID:        "rep-1",
		PipelineStatus: models.PipelineNew,
		RecordStatus:   models.RecordActive,
	}
	require.NoError(t, repo.Create(context.Background(), lead))
	require.NotEmpty(t, lead.ID)
	require.EqualValues(t, 1, lead.Version)

	rows := sqlmock.NewRows([]string{"id", "type", "company_name", "mobile", "course_id", "trainees", "pipeline_status", "record_status", "version", "created_at", "updated_at"}).
		AddRow(lead.ID, "COMPANY", name, "+971501234567", "course-1", 12, "NEW", "ACTIVE", 1, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, company_name")).
		WithArgs(lead.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Equal(t, lead.ID, found.ID)
	require.Equal(t, models.PipelineNew, found.PipelineStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryUpdateVersionGuard(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)
	lead := &models.Lead{ID: "lead-1", Mobile: "+971501234567", CourseID: "course-1", Version: 3}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), lead))
	require.EqualValues(t, 4, lead.Version)

	// Stale version matches zero rows and must not bump the struct.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), lead)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.EqualValues(t, 4, lead.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryUpdateWorkflowStatus(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)
	quotation := models.QuotationSentToClient

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateWorkflowStatus(context.Background(), "lead-1", &quotation, nil))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateWorkflowStatus(context.Background(), "ghost", &quotation, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)
	rows := sqlmock.NewRows([]string{"id", "type", "mobile", "lead_score", "pipeline_status", "record_status", "version", "created_at", "updated_at"}).
		AddRow("lead-1", "INDIVIDUAL", "+971501234567", "HOT", "CONTACTED", "ACTIVE", 2, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, company_name")).
		WithArgs("HOT", "rep-1").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.LeadFilter{
		LeadScore: models.ScoreHot,
		VisibleTo: "rep-1",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "lead-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
