package models

import "time"

// LeadType distinguishes the two lead variants with different required fields.
type LeadType string

const (
	LeadTypeCompany    LeadType = "COMPANY"
	LeadTypeIndividual LeadType = "INDIVIDUAL"
)

// Urgency captures how soon the client needs the training delivered.
type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// LeadSource enumerates acquisition channels.
type LeadSource string

const (
	SourceReferral    LeadSource = "REFERRAL"
	SourceWalkIn      LeadSource = "WALK_IN"
	SourceWebsite     LeadSource = "WEBSITE"
	SourceColdCall    LeadSource = "COLD_CALL"
	SourceSocialMedia LeadSource = "SOCIAL_MEDIA"
	SourceOther       LeadSource = "OTHER"
)

// LeadCategory is the manually assigned classification. It feeds the scoring
// engine as one weighted input and never replaces the computed score.
type LeadCategory string

const (
	CategoryHot         LeadCategory = "HOT"
	CategoryWarm        LeadCategory = "WARM"
	CategoryCold        LeadCategory = "COLD"
	CategoryQualified   LeadCategory = "QUALIFIED"
	CategoryUnqualified LeadCategory = "UNQUALIFIED"
)

// LeadScore is the computed hot/warm/cold bucket.
type LeadScore string

const (
	ScoreHot  LeadScore = "HOT"
	ScoreWarm LeadScore = "WARM"
	ScoreCold LeadScore = "COLD"
)

// PipelineStatus tracks the lead's position in the sales funnel.
type PipelineStatus string

const (
	PipelineNew         PipelineStatus = "NEW"
	PipelineContacted   PipelineStatus = "CONTACTED"
	PipelineQuoted      PipelineStatus = "QUOTED"
	PipelineNegotiation PipelineStatus = "NEGOTIATION"
	PipelineWon         PipelineStatus = "WON"
	PipelineLost        PipelineStatus = "LOST"
)

// RecordStatus reflects duplicate-resolution outcomes. Only ACTIVE leads
// participate in the pipeline.
type RecordStatus string

const (
	RecordActive   RecordStatus = "ACTIVE"
	RecordMerged   RecordStatus = "MERGED"
	RecordRejected RecordStatus = "REJECTED"
)

// Lead is the central entity: a prospective client with a training requirement.
// Exactly one of CompanyName/ClientName is set, consistent with Type.
// LeadScore and LeadValue are always engine output, never client supplied.
type Lead struct {
	ID   string   `db:"id" json:"id"`
	Type LeadType `db:"type" json:"type"`

	CompanyName   *string `db:"company_name" json:"company_name,omitempty"`
	ClientName    *string `db:"client_name" json:"client_name,omitempty"`
	ContactPerson *string `db:"contact_person" json:"contact_person,omitempty"`
	Designation   *string `db:"designation" json:"designation,omitempty"`
	Mobile        string  `db:"mobile" json:"mobile"`
	Email         *string `db:"email" json:"email,omitempty"`
	Website       *string `db:"website" json:"website,omitempty"`
	CompanySize   int     `db:"company_size" json:"company_size"`

	CourseID     string     `db:"course_id" json:"course_id"`
	Trainees     int        `db:"trainees" json:"trainees"`
	TrainingDate *time.Time `db:"training_date" json:"training_date,omitempty"`
	Location     *string    `db:"location" json:"location,omitempty"`
	Urgency      Urgency    `db:"urgency" json:"urgency"`

	Source    LeadSource   `db:"source" json:"source"`
	Category  LeadCategory `db:"category" json:"category"`
	LeadScore LeadScore    `db:"lead_score" json:"lead_score"`
	LeadValue float64      `db:"lead_value" json:"lead_value"`

	OwnerID    string  `db:"owner_id" json:"owner_id"`
	AssignedTo *string `db:"assigned_to" json:"assigned_to,omitempty"`

	PipelineStatus  PipelineStatus  `db:"pipeline_status" json:"pipeline_status"`
	QuotationStatus QuotationStatus `db:"quotation_status" json:"quotation_status"`
	InvoiceStatus   InvoiceStatus   `db:"invoice_status" json:"invoice_status"`
	RecordStatus    RecordStatus    `db:"record_status" json:"record_status"`

	Version       int64      `db:"version" json:"version"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	LastContactAt *time.Time `db:"last_contact_at" json:"last_contact_at,omitempty"`
}

// DisplayName returns the client-facing name for either variant.
func (l *Lead) DisplayName() string {
	if l.Type == LeadTypeCompany && l.CompanyName != nil {
		return *l.CompanyName
	}
	if l.ClientName != nil {
		return *l.ClientName
	}
	return l.ID
}

// Terminal reports whether the pipeline state admits no further transitions.
func (s PipelineStatus) Terminal() bool {
	return s == PipelineWon || s == PipelineLost
}

// LeadFilter constrains listing queries.
type LeadFilter struct {
	PipelineStatus []PipelineStatus
	LeadScore      LeadScore
	Category       LeadCategory
	Source         LeadSource
	OwnerID        string
	AssignedTo     string
	VisibleTo      string
	RecordStatus   RecordStatus
	Search         string
	Limit          int
	Offset         int
}
