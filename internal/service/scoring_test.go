package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lead-lifecycle-api/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestPricePerTraineeTierBoundaries(t *testing.T) {
	course := &models.Course{
		BaseFee:    1000,
		Tier5To10:  floatPtr(920),
		Tier10Plus: floatPtr(800),
	}

	require.Equal(t, 1000.0, PricePerTrainee(course, 4))
	require.Equal(t, 920.0, PricePerTrainee(course, 5))
	require.Equal(t, 920.0, PricePerTrainee(course, 9))
	require.Equal(t, 800.0, PricePerTrainee(course, 10))
	require.Equal(t, 800.0, PricePerTrainee(course, 50))
}

func TestPricePerTraineeFallbacks(t *testing.T) {
	course := &models.Course{BaseFee: 1000}

	require.Equal(t, 1000.0, PricePerTrainee(course, 3))
	require.InDelta(t, 900.0, PricePerTrainee(course, 7), 0.001)
	require.InDelta(t, 800.0, PricePerTrainee(course, 12), 0.001)
}

func TestComputeLeadValue(t *testing.T) {
	course := &models.Course{BaseFee: 1000, Tier10Plus: floatPtr(800)}

	require.Equal(t, 9600.0, ComputeLeadValue(course, 12))
	require.Equal(t, 0.0, ComputeLeadValue(course, 0))
}

func TestScoreLeadWorkedExample(t *testing.T) {
	course := &models.Course{BaseFee: 1000, Tier10Plus: floatPtr(800)}
	lead := &models.Lead{
		Trainees: 12,
		Urgency:  models.UrgencyHigh,
		Category: models.CategoryHot,
		Source:   models.SourceReferral,
	}

	result := ScoreLead(lead, course)
	require.Equal(t, 9600.0, result.Value)
	require.Equal(t, 135, result.Points)
	require.Equal(t, models.ScoreHot, result.Score)
}

func TestScoreLeadDeterministic(t *testing.T) {
	course := &models.Course{BaseFee: 500}
	lead := &models.Lead{
		Trainees:    8,
		Urgency:     models.UrgencyMedium,
		Category:    models.CategoryWarm,
		Source:      models.SourceWebsite,
		CompanySize: 300,
	}

	first := ScoreLead(lead, course)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, ScoreLead(lead, course))
	}
}

func TestScorePointsUrgencyMonotonic(t *testing.T) {
	base := ScoringInput{Trainees: 8, Category: models.CategoryWarm, Source: models.SourceWebsite}

	low := base
	low.Urgency = models.UrgencyLow
	medium := base
	medium.Urgency = models.UrgencyMedium
	high := base
	high.Urgency = models.UrgencyHigh

	require.Less(t, ScorePoints(low), ScorePoints(medium))
	require.Less(t, ScorePoints(medium), ScorePoints(high))
}

func TestClassifyScoreThresholdsInclusive(t *testing.T) {
	require.Equal(t, models.ScoreHot, ClassifyScore(80))
	require.Equal(t, models.ScoreWarm, ClassifyScore(79))
	require.Equal(t, models.ScoreWarm, ClassifyScore(36))
	require.Equal(t, models.ScoreCold, ClassifyScore(35))
}

func TestScorePointsColdFloor(t *testing.T) {
	in := ScoringInput{
		Urgency:     models.UrgencyLow,
		LeadValue:   1200,
		Trainees:    2,
		Category:    models.CategoryCold,
		Source:      models.SourceColdCall,
		CompanySize: 4,
	}
	points := ScorePoints(in)
	require.Equal(t, -20, points)
	require.Equal(t, models.ScoreCold, ClassifyScore(points))
}
