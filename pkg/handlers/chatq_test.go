package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/apperrors"
	"github.com/chatq-inc/chatq-engine/pkg/auth"
	"github.com/chatq-inc/chatq-engine/pkg/database"
	"github.com/chatq-inc/chatq-engine/pkg/llm"
	"github.com/chatq-inc/chatq-engine/pkg/models"
)

type mockQueryService struct {
	outcome   *models.QueryOutcome
	err       error
	chatReply string
	lastTurn  *models.QueryTurn
	lastChat  [2]string
}

func (m *mockQueryService) Ask(_ context.Context, turn *models.QueryTurn) (*models.QueryOutcome, error) {
	m.lastTurn = turn
	return m.outcome, m.err
}

func (m *mockQueryService) Chat(_ context.Context, conversationID, message string) (string, error) {
	m.lastChat = [2]string{conversationID, message}
	return m.chatReply, m.err
}

func (m *mockQueryService) NewConversation(authCode string) string {
	return authCode + "_1700000000000"
}

func newChatQRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	ctx := database.WithTenant(req.Context(), "acme")
	ctx = auth.WithProfile(ctx, &models.AccessProfile{AuthCode: "A1", UserID: "u1", Level: 2})
	return req.WithContext(ctx)
}

func TestChatQHandler_Ask(t *testing.T) {
	svc := &mockQueryService{outcome: &models.QueryOutcome{
		State:             models.TurnStateExecuted,
		Message:           models.MessageSuccess,
		Columns:           []string{"region", "total"},
		Rows:              []*models.Row{},
		DetailFlag:        "N",
		ContinuationToken: "tok",
		TableAlias:        "sales",
		TableName:         "sales_2024",
		ConversationID:    "A1_1",
	}}
	h := NewChatQHandler(svc, zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := newChatQRequest(t, "/api/chatq", QueryRequest{
		Prompt:            "total by region",
		ConversationID:    "A1_1",
		ContinuationToken: "prev",
		TableAlias:        "sales",
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SUCCESS", body["message"])
	assert.Equal(t, "tok", body["continuationToken"])
	assert.Equal(t, "sales", body["tableAlias"])
	assert.Equal(t, "sales_2024", body["tableName"])
	assert.Equal(t, "N", body["detailYn"])
	assert.NotContains(t, body, "State")

	require.NotNil(t, svc.lastTurn)
	assert.Equal(t, "acme", svc.lastTurn.Tenant)
	assert.Equal(t, "A1", svc.lastTurn.Profile.AuthCode)
	assert.Equal(t, 2, svc.lastTurn.Profile.Level)
	assert.Equal(t, "total by region", svc.lastTurn.Question)
	assert.Equal(t, "prev", svc.lastTurn.ContinuationToken)
	assert.Equal(t, "sales", svc.lastTurn.BoundTableOverride)
}

func TestChatQHandler_Ask_FailedTurnIs200(t *testing.T) {
	svc := &mockQueryService{outcome: &models.QueryOutcome{
		State:   models.TurnStateFailed,
		Message: models.MessageFail,
		Reason:  models.ReasonNoTableMatched,
	}}
	h := NewChatQHandler(svc, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Ask(rec, newChatQRequest(t, "/api/chatq", QueryRequest{Prompt: "weather?"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FAIL", body["message"])
	assert.Equal(t, "no table matched", body["reason"])
}

func TestChatQHandler_Ask_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", fmt.Errorf("%w: prompt is required", apperrors.ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
		{"gateway auth", fmt.Errorf("table_selection: %w", llm.NewError(llm.ErrorTypeAuth, "bad key", nil)), http.StatusBadGateway, "llm_auth"},
		{"gateway unavailable", apperrors.ErrGatewayUnavailable, http.StatusBadGateway, "llm_unavailable"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewChatQHandler(&mockQueryService{err: tt.err}, zap.NewNop())

			rec := httptest.NewRecorder()
			h.Ask(rec, newChatQRequest(t, "/api/chatq", QueryRequest{Prompt: "x"}))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["error"])
		})
	}
}

func TestChatQHandler_Ask_InvalidBody(t *testing.T) {
	svc := &mockQueryService{}
	h := NewChatQHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/chatq", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.Ask(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.lastTurn)
}

func TestChatQHandler_Chat(t *testing.T) {
	svc := &mockQueryService{chatReply: "hello there"}
	h := NewChatQHandler(svc, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Chat(rec, newChatQRequest(t, "/api/chat", QueryRequest{Prompt: "hi", ConversationID: "A1_1"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var body ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hello there", body.Message)
	assert.Equal(t, "A1_1", body.ConversationID)
	assert.Equal(t, [2]string{"A1_1", "hi"}, svc.lastChat)
}

func TestChatQHandler_NewConversation(t *testing.T) {
	h := NewChatQHandler(&mockQueryService{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.NewConversation(rec, newChatQRequest(t, "/api/new", map[string]string{}))

	require.Equal(t, http.StatusOK, rec.Code)
	var body ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "A1_1700000000000", body.ConversationID)
	assert.Equal(t, "New chat session started: A1_1700000000000", body.Message)
}

func TestChatQHandler_RoutesRejectGet(t *testing.T) {
	h := NewChatQHandler(&mockQueryService{}, zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chatq", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
