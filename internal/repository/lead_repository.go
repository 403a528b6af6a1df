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

const leadColumns = `id, type, company_name, client_name, contact_person, designation, mobile, email, website,
       company_size, course_id, trainees, training_date, location, urgency, source, category,
       lead_score, lead_value, owner_id, assigned_to, pipeline_status, quotation_status, invoice_status,
       record_status, version, created_at, updated_at, last_contact_at`

// LeadRepository persists lead records with optimistic concurrency.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository constructs the repository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Create inserts a new lead row at version 1.
func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	if lead.Version == 0 {
		lead.Version = 1
	}
	const query = `INSERT INTO leads
	(id, type, company_name, client_name, contact_person, designation, mobile, email, website,
	 company_size, course_id, trainees, training_date, location, urgency, source, category,
	 lead_score, lead_value, owner_id, assigned_to, pipeline_status, quotation_status, invoice_status,
	 record_status, version, created_at, updated_at, last_contact_at)
	VALUES (:id, :type, :company_name, :client_name, :contact_person, :designation, :mobile, :email, :website,
	 :company_size, :course_id, :trainees, :training_date, :location, :urgency, :source, :category,
	 :lead_score, :lead_value, :owner_id, :assigned_to, :pipeline_status, :quotation_status, :invoice_status,
	 :record_status, :version, :created_at, :updated_at, :last_contact_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lead); err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// GetByID fetches a lead by identifier.
func (r *LeadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE id = $1`, leadColumns)
	var lead models.Lead
	if err := r.db.GetContext(ctx, &lead, query, id); err != nil {
		return nil, err
	}
	return &lead, nil
}

// Update writes the full lead row guarded by the version the caller read.
// The version column is bumped in the same statement; zero rows affected means
// a concurrent writer got there first.
func (r *LeadRepository) Update(ctx context.Context, lead *models.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	const query = `UPDATE leads SET
	 company_name = :company_name, client_name = :client_name, contact_person = :contact_person,
	 designation = :designation, mobile = :mobile, email = :email, website = :website,
	 company_size = :company_size, course_id = :course_id, trainees = :trainees,
	 training_date = :training_date, location = :location, urgency = :urgency,
	 source = :source, category = :category, lead_score = :lead_score, lead_value = :lead_value,
	 assigned_to = :assigned_to, pipeline_status = :pipeline_status,
	 quotation_status = :quotation_status, invoice_status = :invoice_status,
	 record_status = :record_status, version = version + 1, updated_at = :updated_at,
	 last_contact_at = :last_contact_at
	WHERE id = :id AND version = :version`
	result, err := r.db.NamedExecContext(ctx, query, lead)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check lead update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	lead.Version++
	return nil
}

// UpdateWorkflowStatus adjusts only the quotation/invoice mirror columns.
// Used by the approval gateway so a parallel lead edit does not race the
// version-guarded full update.
func (r *LeadRepository) UpdateWorkflowStatus(ctx context.Context, leadID string, quotation *models.QuotationStatus, invoice *models.InvoiceStatus) error {
	setParts := []string{"updated_at = :updated_at", "version = version + 1"}
	params := map[string]interface{}{
		"id":         leadID,
		"updated_at": time.Now().UTC(),
	}
	if quotation != nil {
		setParts = append(setParts, "quotation_status = :quotation_status")
		params["quotation_status"] = *quotation
	}
	if invoice != nil {
		setParts = append(setParts, "invoice_status = :invoice_status")
		params["invoice_status"] = *invoice
	}
	query := fmt.Sprintf("UPDATE leads SET %s WHERE id = :id", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return fmt.Errorf("update lead workflow status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check lead workflow update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns leads matching the filter (newest first).
func (r *LeadRepository) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 8)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM leads", leadColumns))

	conditions := make([]string, 0, 6)
	if len(filter.PipelineStatus) > 0 {
		placeholders := make([]string, len(filter.PipelineStatus))
		for i, status := range filter.PipelineStatus {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("pipeline_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.LeadScore != "" {
		args = append(args, filter.LeadScore)
		conditions = append(conditions, fmt.Sprintf("lead_score = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if filter.VisibleTo != "" {
		args = append(args, filter.VisibleTo)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(owner_id = $%d OR assigned_to = $%d)", n, n))
	}
	if filter.RecordStatus != "" {
		args = append(args, filter.RecordStatus)
		conditions = append(conditions, fmt.Sprintf("record_status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.TrimSpace(filter.Search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(company_name ILIKE $%d OR client_name ILIKE $%d OR mobile ILIKE $%d)", n, n, n))
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

	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}
