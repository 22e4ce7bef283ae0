package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/apperrors"
	"github.com/chatq-inc/chatq-engine/pkg/auth"
	"github.com/chatq-inc/chatq-engine/pkg/database"
	"github.com/chatq-inc/chatq-engine/pkg/llm"
	"github.com/chatq-inc/chatq-engine/pkg/models"
	"github.com/chatq-inc/chatq-engine/pkg/services"
)

// AskToolName is the MCP name of the question tool.
const AskToolName = "ask_database"

// RegisterAskTool adds the ask_database tool. Tenant and access profile are
// read from the request context, as set by the HTTP middleware chain.
func RegisterAskTool(s *server.MCPServer, queryService services.QueryService, logger *zap.Logger) {
	tool := mcp.NewTool(
		AskToolName,
		mcp.WithDescription("Answers a natural-language question with rows from the tenant database. "+
			"Pass continuation_token from the previous answer to refine the same query."),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question to answer, e.g. \"total sales by region for 2024\""),
		),
		mcp.WithString(
			"conversation_id",
			mcp.Description("Optional: conversation id from a previous answer; keeps model history"),
		),
		mcp.WithString(
			"continuation_token",
			mcp.Description("Optional: opaque token from the previous answer, echoed back unmodified"),
		),
		mcp.WithString(
			"table_alias",
			mcp.Description("Optional: table alias to query, skipping table selection"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, askHandler(queryService, logger.Named("mcp.ask")))
}

func askHandler(queryService services.QueryService, logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return NewErrorResult("invalid_request", "question is required"), nil
		}

		turn := &models.QueryTurn{
			Tenant:             database.TenantFromContext(ctx),
			Profile:            auth.ProfileFromContext(ctx),
			Question:           question,
			ConversationID:     req.GetString("conversation_id", ""),
			ContinuationToken:  req.GetString("continuation_token", ""),
			BoundTableOverride: req.GetString("table_alias", ""),
		}

		outcome, err := queryService.Ask(ctx, turn)
		if err != nil {
			var llmErr *llm.Error
			switch {
			case errors.Is(err, apperrors.ErrInvalidRequest):
				return NewErrorResult("invalid_request", err.Error()), nil
			case errors.As(err, &llmErr):
				logger.Warn("Gateway failure during ask", zap.String("type", string(llmErr.Type)))
				return NewErrorResult("llm_"+string(llmErr.Type), llmErr.Message), nil
			}
			return nil, fmt.Errorf("ask failed: %w", err)
		}

		if outcome.State == models.TurnStateFailed {
			return NewErrorResultWithDetails("query_failed", outcome.Reason, outcome), nil
		}

		body, err := json.Marshal(outcome)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal outcome: %w", err)
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}
