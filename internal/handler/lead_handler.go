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

type leadService interface {
	Create(ctx context.Context, req dto.CreateLeadRequest, actor *models.JWTClaims) (*models.Lead, error)
	Update(ctx context.Context, id string, req dto.UpdateLeadRequest, actor *models.JWTClaims) (*models.Lead, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Lead, error)
	List(ctx context.Context, query dto.LeadQuery, actor *models.JWTClaims) ([]models.Lead, error)
	History(ctx context.Context, id string, actor *models.JWTClaims) ([]models.AuditLog, error)
}

// LeadHandler exposes REST endpoints for the lead lifecycle.
type LeadHandler struct {
	service leadService
}

// NewLeadHandler constructs the handler.
func NewLeadHandler(service leadService) *LeadHandler {
	return &LeadHandler{service: service}
}

// Create godoc
// @Summary Create a lead
// @Tags Leads
// @Accept json
// @Produce json
// @Param payload body dto.CreateLeadRequest true "Lead payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leads [post]
func (h *LeadHandler) Create(c *gin.Context) {
	var req dto.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid lead payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	lead, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, lead, nil)
}

// List godoc
// @Summary List leads
// @Tags Leads
// @Produce json
// @Param status query string false "Comma separated pipeline statuses"
// @Param score query string false "Lead score band"
// @Param category query string false "Lead category"
// @Param source query string false "Lead source"
// @Param owner_id query string false "Owner user ID"
// @Param assigned_to query string false "Assignee user ID"
// @Param record_status query string false "Record status"
// @Param search query string false "Free text search"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /leads [get]
func (h *LeadHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.LeadQuery{
		Score:        models.LeadScore(strings.ToUpper(c.Query("score"))),
		Category:     models.LeadCategory(strings.ToUpper(c.Query("category"))),
		Source:       models.LeadSource(strings.ToUpper(c.Query("source"))),
		OwnerID:      strings.TrimSpace(c.Query("owner_id")),
		AssignedTo:   strings.TrimSpace(c.Query("assigned_to")),
		RecordStatus: models.RecordStatus(strings.ToUpper(c.Query("record_status"))),
		Search:       strings.TrimSpace(c.Query("search")),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.PipelineStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.PipelineStatus(part))
		}
		query.Status = statuses
	}
	query.Limit, _ = strconv.Atoi(c.Query("limit"))
	query.Offset, _ = strconv.Atoi(c.Query("offset"))

	leads, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leads, nil)
}

// Get godoc
// @Summary Get lead detail
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leads/{id} [get]
func (h *LeadHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	lead, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// Update godoc
// @Summary Update a lead
// @Description Patch lead fields under optimistic concurrency; pipeline_status moves go through transition validation
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body dto.UpdateLeadRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leads/{id} [patch]
func (h *LeadHandler) Update(c *gin.Context) {
	var req dto.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid lead patch payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	lead, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// History godoc
// @Summary Get lead history
// @Description Append-only audit trail of lifecycle events for a lead
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} response.Envelope
// @Router /leads/{id}/history [get]
func (h *LeadHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	logs, err := h.service.History(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
