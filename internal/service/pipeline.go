package service

import (
	"fmt"

	"github.com/noah-isme/lead-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/lead-lifecycle-api/pkg/errors"
)

// The funnel does not enforce strict linear order: any authorized actor may
// move a non-terminal lead to any other state. WON and LOST admit nothing.
var pipelineTransitions = map[models.PipelineStatus]map[models.PipelineStatus]bool{
	models.PipelineNew:         {models.PipelineContacted: true, models.PipelineQuoted: true, models.PipelineNegotiation: true, models.PipelineWon: true, models.PipelineLost: true},
	models.PipelineContacted:   {models.PipelineNew: true, models.PipelineQuoted: true, models.PipelineNegotiation: true, models.PipelineWon: true, models.PipelineLost: true},
	models.PipelineQuoted:      {models.PipelineNew: true, models.PipelineContacted: true, models.PipelineNegotiation: true, models.PipelineWon: true, models.PipelineLost: true},
	models.PipelineNegotiation: {models.PipelineNew: true, models.PipelineContacted: true, models.PipelineQuoted: true, models.PipelineWon: true, models.PipelineLost: true},
	models.PipelineWon:         {},
	models.PipelineLost:        {},
}

// ValidatePipelineTransition checks whether moving from current to next is legal.
func ValidatePipelineTransition(current, next models.PipelineStatus) error {
	if current.Terminal() {
		return appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("lead is %s, no further transitions allowed", current))
	}
	nexts, ok := pipelineTransitions[current]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown pipeline status: %s", current))
	}
	if !nexts[next] {
		if current == next {
			return appErrors.Clone(appErrors.ErrValidation, "lead is already in that status")
		}
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown pipeline status: %s", next))
	}
	return nil
}

// canActOnLead reports whether the actor owns, is assigned to, or outranks the lead.
func canActOnLead(actor *models.JWTClaims, lead *models.Lead) bool {
	if actor == nil {
		return false
	}
	if actor.Role.ManagerTier() {
		return true
	}
	if lead.OwnerID == actor.UserID {
		return true
	}
	if lead.AssignedTo != nil && *lead.AssignedTo == actor.UserID {
		return true
	}
	return false
}
