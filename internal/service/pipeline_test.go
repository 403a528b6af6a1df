package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lead-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/lead-lifecycle-api/pkg/errors"
)

func TestValidatePipelineTransitionNonTerminal(t *testing.T) {
	openStates := []models.PipelineStatus{
		models.PipelineNew, models.PipelineContacted, models.PipelineQuoted, models.PipelineNegotiation,
	}
	all := append(openStates, models.PipelineWon, models.PipelineLost)

	for _, from := range openStates {
		for _, to := range all {
			if from == to {
				continue
			}
			require.NoError(t, ValidatePipelineTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestValidatePipelineTransitionTerminal(t *testing.T) {
	for _, from := range []models.PipelineStatus{models.PipelineWon, models.PipelineLost} {
		for _, to := range []models.PipelineStatus{models.PipelineNew, models.PipelineContacted, models.PipelineWon} {
			err := ValidatePipelineTransition(from, to)
			require.Error(t, err)
			require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
		}
	}
}

func TestValidatePipelineTransitionSameState(t *testing.T) {
	err := ValidatePipelineTransition(models.PipelineContacted, models.PipelineContacted)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidatePipelineTransitionUnknownTarget(t *testing.T) {
	err := ValidatePipelineTransition(models.PipelineNew, models.PipelineStatus("ARCHIVED"))
	require.Error(t, err)
}

func TestCanActOnLead(t *testing.T) {
	assignee := "rep-2"
	lead := &models.Lead{OwnerID: "rep-1", AssignedTo: &assignee}

	require.True(t, canActOnLead(&models.JWTClaims{UserID: "rep-1", Role: models.RoleSales}, lead))
	require.True(t, canActOnLead(&models.JWTClaims{UserID: "rep-2", Role: models.RoleSales}, lead))
	require.True(t, canActOnLead(&models.JWTClaims{UserID: "mgr-1", Role: models.RoleManager}, lead))
	require.False(t, canActOnLead(&models.JWTClaims{UserID: "rep-3", Role: models.RoleSales}, lead))
	require.False(t, canActOnLead(nil, lead))
}
