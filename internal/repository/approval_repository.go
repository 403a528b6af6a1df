package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lead-lifecycle-api/internal/models"
)

const approvalColumns = `id, lead_id, kind, status, revision, amount, comments, reject_reason,
       requested_by, decided_by, decided_at, sent_via, sent_to, sent_at, version, created_at, updated_at`

// ApprovalRepository persists quotation and invoice review records.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create inserts a new approval record.
func (r *ApprovalRepository) Create(ctx context.Context, record *models.ApprovalRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.ApprovalStatusPending
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Version == 0 {
		record.Version = 1
	}
	const query = `INSERT INTO approvals
	(id, lead_id, kind, status, revision, amount, comments, reject_reason,
	 requested_by, decided_by, decided_at, sent_via, sent_to, sent_at, version, created_at, updated_at)
	VALUES (:id, :lead_id, :kind, :status, :revision, :amount, :comments, :reject_reason,
	 :requested_by, :decided_by, :decided_at, :sent_via, :sent_to, :sent_at, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create approval record: %w", err)
	}
	return nil
}

// GetByID fetches an approval record.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.ApprovalRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM approvals WHERE id = $1`, approvalColumns)
	var record models.ApprovalRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetLatestByLeadAndKind fetches the most recent record for one flow of a lead.
func (r *ApprovalRepository) GetLatestByLeadAndKind(ctx context.Context, leadID string, kind models.ApprovalKind) (*models.ApprovalRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM approvals WHERE lead_id = $1 AND kind = $2 ORDER BY created_at DESC LIMIT 1`, approvalColumns)
	var record models.ApprovalRecord
	if err := r.db.GetContext(ctx, &record, query, leadID, kind); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByLead returns all approval records for a lead, newest first.
func (r *ApprovalRepository) ListByLead(ctx context.Context, leadID string) ([]models.ApprovalRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM approvals WHERE lead_id = $1 ORDER BY created_at DESC`, approvalColumns)
	var records []models.ApprovalRecord
	if err := r.db.SelectContext(ctx, &records, query, leadID); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return records, nil
}

// TransitionParams groups the columns touched by a workflow step. The update
// only applies while the record still sits in FromStatus; zero rows affected
// means another reviewer finalized it first.
type TransitionParams struct {
	ID           string
	FromStatus   models.ApprovalStatus
	ToStatus     models.ApprovalStatus
	DecidedBy    *string
	DecidedAt    *time.Time
	Comments     *string
	RejectReason *string
	SentVia      *string
	SentTo       *string
	SentAt       *time.Time
	BumpRevision bool
}

// Transition applies a guarded status change.
func (r *ApprovalRepository) Transition(ctx context.Context, params TransitionParams) error {
	setParts := []string{
		"status = :to_status",
		"version = version + 1",
		"updated_at = :updated_at",
	}
	values := map[string]interface{}{
		"id":          params.ID,
		"from_status": params.FromStatus,
		"to_status":   params.ToStatus,
		"updated_at":  time.Now().UTC(),
	}
	if params.DecidedBy != nil {
		setParts = append(setParts, "decided_by = :decided_by", "decided_at = :decided_at")
		values["decided_by"] = params.DecidedBy
		values["decided_at"] = params.DecidedAt
	}
	if params.Comments != nil {
		setParts = append(setParts, "comments = :comments")
		values["comments"] = params.Comments
	}
	if params.RejectReason != nil {
		setParts = append(setParts, "reject_reason = :reject_reason")
		values["reject_reason"] = params.RejectReason
	}
	if params.SentVia != nil {
		setParts = append(setParts, "sent_via = :sent_via", "sent_to = :sent_to", "sent_at = :sent_at")
		values["sent_via"] = params.SentVia
		values["sent_to"] = params.SentTo
		values["sent_at"] = params.SentAt
	}
	if params.BumpRevision {
		setParts = append(setParts, "revision = revision + 1")
	}
	query := fmt.Sprintf("UPDATE approvals SET %s WHERE id = :id AND status = :from_status",
		strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, values)
	if err != nil {
		return fmt.Errorf("transition approval: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check approval transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
