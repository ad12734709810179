package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/norddok/norddok/internal/domain"
	"github.com/norddok/norddok/internal/service"
)

type MockInsightExtractor struct {
	mock.Mock
}

func (m *MockInsightExtractor) ExtractInsights(ctx context.Context, input service.ExtractInsightsInput) ([]service.LearningInsight, *service.BatchReport, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]service.LearningInsight), args.Get(1).(*service.BatchReport), args.Error(2)
}

func TestInsightHandler_Extract_Success(t *testing.T) {
	mockSvc := new(MockInsightExtractor)
	handler := NewInsightHandler(mockSvc)

	mockSvc.On("ExtractInsights", mock.Anything, service.ExtractInsightsInput{
		Municipality: "Aarhus",
		DocumentType: domain.DocumentTypeBSR,
	}).Return([]service.LearningInsight{{
		ID:                 "insight-1",
		Municipality:       "Aarhus",
		DocumentType:       domain.DocumentTypeBSR,
		PatternDescription: "Escape routes must be dimensioned per floor",
		ConfidenceScore:    0.8,
		Recommendation:     "Include per-floor dimensioning",
	}}, &service.BatchReport{Inserted: 1}, nil)

	body := `{"municipality":"Aarhus","document_type":"BSR"}`
	req := httptest.NewRequest(http.MethodPost, "/insights", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Extract(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	insights := data["insights"].([]interface{})
	require.Len(t, insights, 1)
	first := insights[0].(map[string]interface{})
	assert.Equal(t, "insight-1", first["id"])
	assert.Equal(t, 0.8, first["confidence_score"])
	report := data["report"].(map[string]interface{})
	assert.Equal(t, float64(1), report["inserted"])
	mockSvc.AssertExpectations(t)
}

func TestInsightHandler_Extract_InvalidBody(t *testing.T) {
	mockSvc := new(MockInsightExtractor)
	handler := NewInsightHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/insights", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()

	handler.Extract(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "ExtractInsights")
}

func TestInsightHandler_Extract_CollaboratorError(t *testing.T) {
	mockSvc := new(MockInsightExtractor)
	handler := NewInsightHandler(mockSvc)

	mockSvc.On("ExtractInsights", mock.Anything, mock.Anything).
		Return(nil, nil, domain.NewDomainError(domain.ErrCodeCollaborator, "analyze feedback"))

	req := httptest.NewRequest(http.MethodPost, "/insights", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	handler.Extract(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}
