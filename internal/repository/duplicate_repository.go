package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lead-lifecycle-api/internal/models"
)

const alertColumns = `id, lead_a_id, lead_b_id, similarity_score, similarity_factors, status,
       resolution, notes, credited_lead_id, credit_split, resolved_by, resolved_at, created_at`

// DuplicateRepository persists detector alerts and applies resolutions.
type DuplicateRepository struct {
	db *sqlx.DB
}

// NewDuplicateRepository constructs the repository.
func NewDuplicateRepository(db *sqlx.DB) *DuplicateRepository {
	return &DuplicateRepository{db: db}
}

// Create inserts an unresolved alert.
func (r *DuplicateRepository) Create(ctx context.Context, alert *models.DuplicateAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Status == "" {
		alert.Status = models.AlertUnresolved
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if len(alert.SimilarityFactors) == 0 {
		alert.SimilarityFactors = []byte("[]")
	}
	const query = `INSERT INTO duplicate_alerts
	(id, lead_a_id, lead_b_id, similarity_score, similarity_factors, status,
	 resolution, notes, credited_lead_id, credit_split, resolved_by, resolved_at, created_at)
	VALUES (:id, :lead_a_id, :lead_b_id, :similarity_score, :similarity_factors, :status,
	 :resolution, :notes, :credited_lead_id, :credit_split, :resolved_by, :resolved_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create duplicate alert: %w", err)
	}
	return nil
}

// GetByID fetches an alert.
func (r *DuplicateRepository) GetByID(ctx context.Context, id string) (*models.DuplicateAlert, error) {
	query := fmt.Sprintf(`SELECT %s FROM duplicate_alerts WHERE id = $1`, alertColumns)
	var alert models.DuplicateAlert
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		return nil, err
	}
	return &alert, nil
}

// List returns alerts matching the filter, newest first.
func (r *DuplicateRepository) List(ctx context.Context, filter models.DuplicateAlertFilter) ([]models.DuplicateAlert, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM duplicate_alerts", alertColumns))

	conditions := make([]string, 0, 2)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.LeadID != "" {
		args = append(args, filter.LeadID)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(lead_a_id = $%d OR lead_b_id = $%d)", n, n))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var alerts []models.DuplicateAlert
	if err := r.db.SelectContext(ctx, &alerts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list duplicate alerts: %w", err)
	}
	return alerts, nil
}

// ResolveParams describes one atomic resolution: the alert close plus any
// record-status changes on the referenced leads.
type ResolveParams struct {
	AlertID        string
	LeadAID        string
	LeadBID        string
	Action         models.ResolutionAction
	Notes          *string
	CreditedLeadID *string
	CreditSplit    bool
	ResolvedBy     string
	ResolvedAt     time.Time
	// LeadStatuses maps lead id to its new record status. Empty for
	// SPLIT_CREDIT and DIFFERENT, which leave both leads untouched.
	LeadStatuses map[string]models.RecordStatus
}

// Resolve closes the alert and updates both leads in a single transaction.
// Both lead rows are locked (ordered by id to avoid deadlock between two
// resolvers) before any write; the alert close is guarded on UNRESOLVED so a
// second resolution attempt rolls back with sql.ErrNoRows.
func (r *DuplicateRepository) Resolve(ctx context.Context, params ResolveParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resolve tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	lockIDs := []string{params.LeadAID, params.LeadBID}
	sort.Strings(lockIDs)
	var locked []string
	if err := tx.SelectContext(ctx, &locked,
		`SELECT id FROM leads WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`,
		lockIDs[0], lockIDs[1]); err != nil {
		return fmt.Errorf("lock leads: %w", err)
	}
	if len(locked) != 2 {
		return sql.ErrNoRows
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE duplicate_alerts
		 SET status = $1, resolution = $2, notes = $3, credited_lead_id = $4,
		     credit_split = $5, resolved_by = $6, resolved_at = $7
		 WHERE id = $8 AND status = $9`,
		models.AlertResolved, params.Action, params.Notes, params.CreditedLeadID,
		params.CreditSplit, params.ResolvedBy, params.ResolvedAt,
		params.AlertID, models.AlertUnresolved)
	if err != nil {
		return fmt.Errorf("close alert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check alert close rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	for leadID, status := range params.LeadStatuses {
		if _, err := tx.ExecContext(ctx,
			`UPDATE leads SET record_status = $1, version = version + 1, updated_at = $2 WHERE id = $3`,
			status, params.ResolvedAt, leadID); err != nil {
			return fmt.Errorf("update lead record status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit resolve tx: %w", err)
	}
	return nil
}
