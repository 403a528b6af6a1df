package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lead-lifecycle-api/internal/dto"
	"github.com/noah-isme/lead-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/lead-lifecycle-api/pkg/errors"
	"github.com/noah-isme/lead-lifecycle-api/pkg/response"
)

type duplicateService interface {
	Ingest(ctx context.Context, req dto.IngestAlertRequest) (*models.DuplicateAlert, error)
	List(ctx context.Context, filter models.DuplicateAlertFilter, actor *models.JWTClaims) ([]models.DuplicateAlert, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.AlertComparison, error)
	Resolve(ctx context.Context, id string, req dto.ResolveAlertRequest, actor *models.JWTClaims) (*models.DuplicateAlert, error)
}

// DuplicateHandler exposes REST endpoints for duplicate alert review.
type DuplicateHandler struct {
	service duplicateService
}

// NewDuplicateHandler constructs the handler.
func NewDuplicateHandler(service duplicateService) *DuplicateHandler {
	return &DuplicateHandler{service: service}
}

// Ingest godoc
// @Summary Ingest a detector alert
// @Description Backfill endpoint mirroring the broker consumer
// @Tags Duplicates
// @Accept json
// @Produce json
// @Param payload body dto.IngestAlertRequest true "Alert payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /duplicates [post]
func (h *DuplicateHandler) Ingest(c *gin.Context) {
	var req dto.IngestAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid alert payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	alert, err := h.service.Ingest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, alert, nil)
}

// List godoc
// @Summary List duplicate alerts
// @Tags Duplicates
// @Produce json
// @Param status query string false "Alert status"
// @Param lead_id query string false "Lead ID appearing on either side"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /duplicates [get]
func (h *DuplicateHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.DuplicateAlertFilter{
		Status: models.AlertStatus(strings.ToUpper(c.Query("status"))),
		LeadID: strings.TrimSpace(c.Query("lead_id")),
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	alerts, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// Get godoc
// @Summary Get a duplicate alert with both lead snapshots
// @Tags Duplicates
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /duplicates/{id} [get]
func (h *DuplicateHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	comparison, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comparison, nil)
}

// Resolve godoc
// @Summary Resolve a duplicate alert
// @Tags Duplicates
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param payload body dto.ResolveAlertRequest true "Resolution payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /duplicates/{id}/resolve [post]
func (h *DuplicateHandler) Resolve(c *gin.Context) {
	var req dto.ResolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resolution payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	alert, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}
