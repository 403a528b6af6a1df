package service

import (
	"github.com/noah-isme/lead-lifecycle-api/internal/models"
)

// The scoring engine is a pure function over lead attributes: weighted point
// accumulation around a warm center of 50, with inclusive bucket thresholds.
// It holds no state and touches no store; the lifecycle service invokes it
// whenever a scoring input changes.
const (
	scoringBase   = 50
	hotThreshold  = 80
	coldThreshold = 35
)

// Tier fallbacks when the course carries no explicit tier price.
const (
	tier10PlusFallback = 0.80
	tier5To10Fallback  = 0.90
)

// ScoringInput collects every attribute the point model weighs.
type ScoringInput struct {
	Urgency     models.Urgency
	LeadValue   float64
	Trainees    int
	Category    models.LeadCategory
	Source      models.LeadSource
	CompanySize int
}

// ScoringResult is the engine output: bucket, currency value, and the raw
// point total (kept for explainability in history entries).
type ScoringResult struct {
	Score  models.LeadScore
	Value  float64
	Points int
}

// PricePerTrainee resolves the applicable tier price. Ten or more trainees
// take the 10-plus tier, five to nine the 5-10 tier; absent tiers fall back to
// fixed fractions of the base fee.
func PricePerTrainee(course *models.Course, trainees int) float64 {
	switch {
	case trainees >= 10:
		if course.Tier10Plus != nil {
			return *course.Tier10Plus
		}
		return course.BaseFee * tier10PlusFallback
	case trainees >= 5:
		if course.Tier5To10 != nil {
			return *course.Tier5To10
		}
		return course.BaseFee * tier5To10Fallback
	default:
		return course.BaseFee
	}
}

// ComputeLeadValue derives the deal value from course pricing and headcount.
func ComputeLeadValue(course *models.Course, trainees int) float64 {
	if trainees < 1 {
		return 0
	}
	return PricePerTrainee(course, trainees) * float64(trainees)
}

// ScorePoints accumulates the weighted point total for the input.
func ScorePoints(in ScoringInput) int {
	points := scoringBase

	switch in.Urgency {
	case models.UrgencyHigh:
		points += 30
	case models.UrgencyMedium:
		points += 10
	case models.UrgencyLow:
		points -= 20
	}

	switch {
	case in.LeadValue > 50000:
		points += 20
	case in.LeadValue > 20000:
		points += 10
	case in.LeadValue < 5000:
		points -= 10
	}

	switch {
	case in.Trainees >= 20:
		points += 20
	case in.Trainees >= 10:
		points += 10
	case in.Trainees < 5:
		points -= 10
	}

	switch in.Category {
	case models.CategoryHot:
		points += 30
	case models.CategoryQualified:
		points += 15
	case models.CategoryWarm:
		points += 10
	case models.CategoryCold:
		points -= 20
	}

	switch in.Source {
	case models.SourceReferral:
		points += 15
	case models.SourceWalkIn:
		points += 10
	case models.SourceWebsite:
		points += 5
	case models.SourceColdCall:
		points -= 5
	}

	switch {
	case in.CompanySize >= 500:
		points += 10
	case in.CompanySize >= 201:
		points += 5
	case in.CompanySize >= 1 && in.CompanySize <= 10:
		points -= 5
	}

	return points
}

// ClassifyScore maps a point total to its bucket; thresholds are inclusive.
func ClassifyScore(points int) models.LeadScore {
	switch {
	case points >= hotThreshold:
		return models.ScoreHot
	case points <= coldThreshold:
		return models.ScoreCold
	default:
		return models.ScoreWarm
	}
}

// ScoreLead runs the full engine for a lead against its course.
func ScoreLead(lead *models.Lead, course *models.Course) ScoringResult {
	value := ComputeLeadValue(course, lead.Trainees)
	points := ScorePoints(ScoringInput{
		Urgency:     lead.Urgency,
		LeadValue:   value,
		Trainees:    lead.Trainees,
		Category:    lead.Category,
		Source:      lead.Source,
		CompanySize: lead.CompanySize,
	})
	return ScoringResult{
		Score:  ClassifyScore(points),
		Value:  value,
		Points: points,
	}
}
