package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lead-lifecycle-api/internal/dto"
	"github.com/noah-isme/lead-lifecycle-api/internal/middleware"
	"github.com/noah-isme/lead-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/lead-lifecycle-api/pkg/errors"
)

type leadServiceMock struct {
	createResp   *models.Lead
	createErr    error
	updateResp   *models.Lead
	updateErr    error
	getResp      *models.Lead
	getErr       error
	listResp     []models.Lead
	listErr      error
	historyResp  []models.AuditLog
	historyErr   error
	lastQuery    dto.LeadQuery
	createCalled bool
	updateCalled bool
	listCalled   bool
}

func (m *leadServiceMock) Create(ctx context.Context, req dto.CreateLeadRequest, actor *models.JWTClaims) (*models.Lead, error) {
	m.createCalled = true
	return m.createResp, m.createErr
}

func (m *leadServiceMock) Update(ctx context.Context, id string, req dto.UpdateLeadRequest, actor *models.JWTClaims) (*models.Lead, error) {
	m.updateCalled = true
	return m.updateResp, m.updateErr
}

func (m *leadServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Lead, error) {
	return m.getResp, m.getErr
}

func (m *leadServiceMock) List(ctx context.Context, query dto.LeadQuery, actor *models.JWTClaims) ([]models.Lead, error) {
	m.listCalled = true
	m.lastQuery = query
	return m.listResp, m.listErr
}

func (m *leadServiceMock) History(ctx context.Context, id string, actor *models.JWTClaims) ([]models.AuditLog, error) {
	return m.historyResp, m.historyErr
}

func leadTestContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "rep-1", Role: models.RoleSales})
	return c, w
}

func TestLeadHandlerCreate(t *testing.T) {
	mockSvc := &leadServiceMock{
		createResp: &models.Lead{ID: "lead-1", PipelineStatus: models.PipelineNew, Version: 1},
	}
	handler := NewLeadHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateLeadRequest{
		Type:          models.LeadTypeCompany,
		CompanyName:   "Acme Trading LLC",
		ContactPerson: "Fatima",
		Mobile:        "+971501234567",
		CourseID:      "course-1",
		Trainees:      12,
		Urgency:       "HIGH",
		Source:        "REFERRAL",
		Category:      "HOT",
	})
	c, w := leadTestContext(t, http.MethodPost, "/leads", payload)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.createCalled)
}

func TestLeadHandlerCreateInvalidBody(t *testing.T) {
	mockSvc := &leadServiceMock{}
	handler := NewLeadHandler(mockSvc)

	c, w := leadTestContext(t, http.MethodPost, "/leads", []byte(`{"type":"COMPANY"`))

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.createCalled)
}

func TestLeadHandlerCreateUnauthenticated(t *testing.T) {
	handler := NewLeadHandler(&leadServiceMock{})

	payload, _ := json.Marshal(dto.CreateLeadRequest{
		Type:       models.LeadTypeIndividual,
		ClientName: "Omar",
		Mobile:     "+971501234567",
		CourseID:   "course-1",
		Trainees:   1,
	})
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/leads", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLeadHandlerListParsesQuery(t *testing.T) {
	mockSvc := &leadServiceMock{listResp: []models.Lead{{ID: "lead-1"}}}
	handler := NewLeadHandler(mockSvc)

	c, w := leadTestContext(t, http.MethodGet, "/leads?status=new,contacted&score=hot&limit=25&offset=50", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.listCalled)
	assert.Equal(t, []models.PipelineStatus{models.PipelineNew, models.PipelineContacted}, mockSvc.lastQuery.Status)
	assert.Equal(t, models.ScoreHot, mockSvc.lastQuery.Score)
	assert.Equal(t, 25, mockSvc.lastQuery.Limit)
	assert.Equal(t, 50, mockSvc.lastQuery.Offset)
}

func TestLeadHandlerUpdateConflict(t *testing.T) {
	mockSvc := &leadServiceMock{updateErr: appErrors.ErrVersionConflict}
	handler := NewLeadHandler(mockSvc)

	payload, _ := json.Marshal(dto.UpdateLeadRequest{ExpectedVersion: 2})
	c, w := leadTestContext(t, http.MethodPatch, "/leads/lead-1", payload)
	c.Params = gin.Params{{Key: "id", Value: "lead-1"}}

	handler.Update(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, mockSvc.updateCalled)
}

func TestLeadHandlerGetNotFound(t *testing.T) {
	mockSvc := &leadServiceMock{getErr: appErrors.ErrNotFound}
	handler := NewLeadHandler(mockSvc)

	c, w := leadTestContext(t, http.MethodGet, "/leads/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
