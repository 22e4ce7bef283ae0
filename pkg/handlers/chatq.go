package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/auth"
	"github.com/chatq-inc/chatq-engine/pkg/database"
	"github.com/chatq-inc/chatq-engine/pkg/logging"
	"github.com/chatq-inc/chatq-engine/pkg/models"
	"github.com/chatq-inc/chatq-engine/pkg/services"
)

// QueryRequest is the body of POST /api/chatq and POST /api/chat.
type QueryRequest struct {
	Prompt            string `json:"prompt"`
	ConversationID    string `json:"conversationId,omitempty"`
	ContinuationToken string `json:"continuationToken,omitempty"`
	TableAlias        string `json:"tableAlias,omitempty"`
}

// ChatResponse is returned by /api/chat and /api/new.
type ChatResponse struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ChatQHandler serves the natural-language query endpoints.
type ChatQHandler struct {
	queryService services.QueryService
	logger       *zap.Logger
}

// NewChatQHandler creates a new ChatQHandler.
func NewChatQHandler(queryService services.QueryService, logger *zap.Logger) *ChatQHandler {
	return &ChatQHandler{
		queryService: queryService,
		logger:       logger.Named("chatq"),
	}
}

// RegisterRoutes registers the query routes on the given mux.
func (h *ChatQHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chatq", h.Ask)
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("POST /api/new", h.NewConversation)
}

// Ask handles POST /api/chatq. FAILED turns are still 200 responses with
// message "FAIL" and a reason.
func (h *ChatQHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	profile := auth.ProfileFromContext(ctx)
	turn := &models.QueryTurn{
		Tenant:             database.TenantFromContext(ctx),
		Profile:            profile,
		Question:           req.Prompt,
		ConversationID:     req.ConversationID,
		ContinuationToken:  req.ContinuationToken,
		BoundTableOverride: req.TableAlias,
	}

	h.logger.Debug("Query turn",
		zap.String("tenant", turn.Tenant),
		zap.String("auth", profile.AuthCode),
		zap.String("question", logging.SanitizeQuestion(req.Prompt)),
		zap.Bool("continued", req.ContinuationToken != ""))

	outcome, err := h.queryService.Ask(ctx, turn)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, outcome); err != nil {
		h.logger.Error("Failed to encode query response", zap.Error(err))
	}
}

// Chat handles POST /api/chat, a plain chat turn with no SQL.
func (h *ChatQHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !h.decode(w, r, &req) {
		return
	}

	reply, err := h.queryService.Chat(r.Context(), req.ConversationID, req.Prompt)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ChatResponse{Message: reply, ConversationID: req.ConversationID}); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}

// NewConversation handles POST /api/new. The body is ignored.
func (h *ChatQHandler) NewConversation(w http.ResponseWriter, r *http.Request) {
	profile := auth.ProfileFromContext(r.Context())
	id := h.queryService.NewConversation(profile.AuthCode)

	resp := ChatResponse{
		Message:        "New chat session started: " + id,
		ConversationID: id,
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode new conversation response", zap.Error(err))
	}
}

func (h *ChatQHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}
