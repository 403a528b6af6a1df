package dto

import (
	"time"

	"github.com/noah-isme/lead-lifecycle-api/internal/models"
)

// CreateLeadRequest is the intake payload. Required contact fields depend on
// the lead type and are enforced by the service, not by binding tags.
type CreateLeadRequest struct {
	Type models.LeadType `json:"type" binding:"required"`

	CompanyName   string `json:"company_name"`
	ClientName    string `json:"client_name"`
	ContactPerson string `json:"contact_person"`
	Designation   string `json:"designation"`
	Mobile        string `json:"mobile" binding:"required"`
	Email         string `json:"email" binding:"omitempty,email"`
	Website       string `json:"website"`
	CompanySize   int    `json:"company_size" binding:"omitempty,min=0"`

	CourseID     string     `json:"course_id" binding:"required"`
	Trainees     int        `json:"trainees" binding:"required,min=1"`
	TrainingDate *time.Time `json:"training_date"`
	Location     string     `json:"location"`
	Urgency      string     `json:"urgency"`

	Source   string `json:"source"`
	Category string `json:"category"`

	AssignedTo string `json:"assigned_to"`
}

// UpdateLeadRequest patches a lead. Nil fields are left untouched.
// ExpectedVersion carries the optimistic-concurrency token the caller read.
// There is deliberately no lead_score or lead_value field here.
type UpdateLeadRequest struct {
	ExpectedVersion int64 `json:"expected_version" binding:"required,min=1"`

	CompanyName   *string `json:"company_name"`
	ClientName    *string `json:"client_name"`
	ContactPerson *string `json:"contact_person"`
	Designation   *string `json:"designation"`
	Mobile        *string `json:"mobile"`
	Email         *string `json:"email"`
	Website       *string `json:"website"`
	CompanySize   *int    `json:"company_size"`

	CourseID     *string    `json:"course_id"`
	Trainees     *int       `json:"trainees"`
	TrainingDate *time.Time `json:"training_date"`
	Location     *string    `json:"location"`
	Urgency      *string    `json:"urgency"`

	Source   *string `json:"source"`
	Category *string `json:"category"`

	AssignedTo *string `json:"assigned_to"`

	PipelineStatus *string `json:"pipeline_status"`
}

// LeadQuery mirrors supported listing filters.
type LeadQuery struct {
	Status       []models.PipelineStatus
	Score        models.LeadScore
	Category     models.LeadCategory
	Source       models.LeadSource
	OwnerID      string
	AssignedTo   string
	RecordStatus models.RecordStatus
	Search       string
	Limit        int
	Offset       int
}
