package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/adapters/datasource"
	"github.com/chatq-inc/chatq-engine/pkg/apperrors"
	"github.com/chatq-inc/chatq-engine/pkg/audit"
	"github.com/chatq-inc/chatq-engine/pkg/config"
	"github.com/chatq-inc/chatq-engine/pkg/crypto"
	"github.com/chatq-inc/chatq-engine/pkg/database"
	"github.com/chatq-inc/chatq-engine/pkg/llm"
	"github.com/chatq-inc/chatq-engine/pkg/logging"
	"github.com/chatq-inc/chatq-engine/pkg/metrics"
	"github.com/chatq-inc/chatq-engine/pkg/middleware"
	"github.com/chatq-inc/chatq-engine/pkg/models"
	sqlpkg "github.com/chatq-inc/chatq-engine/pkg/sql"
)

// LLM call steps, used as the metrics step label.
const (
	stepTableSelection = "table_selection"
	stepQuerySynthesis = "query_synthesis"
	stepChat           = "chat"
)

// ConnectionResolver maps a tenant id to its live connection.
// *datasource.Router is the production implementation.
type ConnectionResolver interface {
	ConnectionFor(ctx context.Context, tenantID string) *datasource.TenantConnection
}

// QueryService answers natural-language questions against the tenant's
// database, one stateless turn at a time.
type QueryService interface {
	// Ask runs one orchestrated turn. Extraction, validation and execution
	// failures are reported as a FAILED outcome; gateway failures and
	// invalid input are returned as errors.
	Ask(ctx context.Context, turn *models.QueryTurn) (*models.QueryOutcome, error)

	// Chat sends message as a plain chat turn sharing the conversation memory.
	Chat(ctx context.Context, conversationID, message string) (string, error)

	// NewConversation returns a fresh conversation id for authCode.
	NewConversation(authCode string) string
}

type queryService struct {
	connections ConnectionResolver
	prompts     PromptService
	gateway     llm.Gateway
	memory      llm.ConversationMemory
	codec       *crypto.ContinuationCodec
	auditor     *audit.SecurityAuditor
	preQuery    string
	postQuery   string
	now         func() time.Time
	logger      *zap.Logger
}

// NewQueryService creates a QueryService. memory may be nil, in which case
// every LLM call is stateless. auditor may be nil.
func NewQueryService(
	connections ConnectionResolver,
	promptSvc PromptService,
	gateway llm.Gateway,
	memory llm.ConversationMemory,
	codec *crypto.ContinuationCodec,
	auditor *audit.SecurityAuditor,
	queryCfg *config.QueryConfig,
	logger *zap.Logger,
) QueryService {
	return &queryService{
		connections: connections,
		prompts:     promptSvc,
		gateway:     gateway,
		memory:      memory,
		codec:       codec,
		auditor:     auditor,
		preQuery:    queryCfg.PreQuery,
		postQuery:   queryCfg.PostQuery,
		now:         time.Now,
		logger:      logger.Named("query"),
	}
}

var _ QueryService = (*queryService)(nil)

func (s *queryService) Ask(ctx context.Context, turn *models.QueryTurn) (*models.QueryOutcome, error) {
	if strings.TrimSpace(turn.Question) == "" {
		return nil, fmt.Errorf("%w: prompt is required", apperrors.ErrInvalidRequest)
	}

	tenant := turn.Tenant
	if tenant == "" {
		tenant = database.TenantFromContext(ctx)
	}
	ctx = database.WithTenant(ctx, tenant)

	profile := turn.Profile
	if profile == nil {
		profile = models.GuestProfile()
	}

	if check := sqlpkg.CheckValueForInjection("tableAlias", turn.BoundTableOverride); check != nil {
		s.auditor.LogInjectionAttempt(ctx, tenant, profile, audit.InjectionDetails{
			Field:       check.Field,
			Value:       turn.BoundTableOverride,
			Fingerprint: check.Fingerprint,
		})
		return nil, fmt.Errorf("%w: invalid table alias", apperrors.ErrInvalidRequest)
	}

	t := &turnRun{
		svc:     s,
		turn:    turn,
		tenant:  tenant,
		profile: profile,
		state:   models.TurnStateNew,
		outcome: &models.QueryOutcome{ConversationID: turn.ConversationID},
	}

	outcome, err := t.run(ctx)
	if err != nil {
		metrics.ObserveQueryTurn(string(models.TurnStateFailed))
		return nil, err
	}
	metrics.ObserveQueryTurn(string(outcome.State))
	return outcome, nil
}

// turnRun carries the mutable state of one Ask call.
type turnRun struct {
	svc     *queryService
	turn    *models.QueryTurn
	tenant  string
	profile *models.AccessProfile

	state        models.TurnState
	continuation *models.ContinuationState
	outcome      *models.QueryOutcome
}

func (t *turnRun) run(ctx context.Context) (*models.QueryOutcome, error) {
	s := t.svc
	conn := s.connections.ConnectionFor(ctx, t.tenant)

	t.continuation = s.decodeToken(t.turn.ContinuationToken)
	if t.continuation != nil && !t.continuation.IssuedTo(t.tenant, t.profile) {
		metrics.IncrementContinuationRejected()
		s.logger.Warn("Ignoring continuation token issued to another caller",
			zap.String("tenant", t.tenant),
			zap.String("token_tenant", t.continuation.Tenant),
			zap.String("auth", t.profile.AuthCode),
			zap.String("request_id", middleware.RequestIDFromContext(ctx)))
		t.continuation = nil
	}

	if t.continuation == nil {
		t.advance(models.TurnStateTableSelection)
		reason, err := t.selectTable(ctx, conn)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			return t.fail(reason), nil
		}
	}

	t.advance(models.TurnStateQuerySynthesis)
	prompt := s.prompts.QuerySynthesisPrompt(ctx, conn, t.continuation.LastSQL, t.turn.Question, t.continuation.CodeMap)
	reply, err := s.converse(ctx, stepQuerySynthesis, t.memoryKey(), prompt)
	if err != nil {
		return nil, err
	}

	generated, ok := llm.ExtractSQL(reply)
	if !ok {
		s.logger.Info("No SQL in model reply",
			zap.String("tenant", t.tenant),
			zap.String("reply", logging.SanitizeQuestion(reply)))
		return t.fail(models.ReasonNoSQLExtracted), nil
	}

	validation := sqlpkg.ValidateReadOnly(generated)
	if validation.Error != nil {
		return t.rejectStatement(ctx, generated, validation.Error), nil
	}
	anchorSQL := validation.NormalizedSQL

	// The binding text is substituted after the model's statement was checked,
	// so the statement actually sent is validated again.
	executable := sqlpkg.SubstituteTable(anchorSQL, t.continuation.BoundTableName, t.continuation.BindingQuery)
	executable = sqlpkg.Wrap(executable, s.preQuery, s.postQuery)
	if final := sqlpkg.ValidateReadOnly(executable); final.Error != nil {
		return t.rejectStatement(ctx, executable, final.Error), nil
	}

	s.logger.Debug("Executing generated SQL",
		zap.String("tenant", t.tenant),
		zap.String("sql", logging.SanitizeQuery(executable)))

	result, err := conn.Query(ctx, executable)
	if err != nil {
		s.logger.Warn("Generated SQL failed",
			zap.String("tenant", t.tenant),
			zap.String("sql", logging.SanitizeQuery(executable)),
			zap.String("error", logging.SanitizeError(err)))
		return t.fail(fmt.Sprintf("%s: %v", models.ReasonExecutionFailure, err)), nil
	}

	s.auditor.LogQueryExecution(ctx, t.tenant, t.profile, audit.StatementDetails{
		Table:    t.continuation.BoundTableName,
		SQL:      executable,
		RowCount: result.RowCount,
	})

	projection := ProjectHeaders(result.Columns, result.Rows, t.continuation.HeaderColumns, t.continuation.LastDetailFlag)
	refreshAnchor(t.continuation, result.Columns, anchorSQL, projection.DetailFlag)

	token, err := s.codec.Encode(t.continuation)
	if err != nil {
		return nil, fmt.Errorf("failed to encode continuation: %w", err)
	}

	t.advance(models.TurnStateExecuted)
	out := t.outcome
	out.State = t.state
	out.Message = models.MessageSuccess
	out.Columns = result.Columns
	out.Rows = result.Rows
	out.DetailFlag = projection.DetailFlag
	out.HeaderColumns = projection.HeaderColumns
	out.HeaderRows = projection.HeaderRows
	out.LastColumns = t.continuation.LastColumns
	out.ContinuationToken = token
	out.TableAlias = t.continuation.BoundTableAlias
	out.TableName = t.continuation.BoundTableName

	s.logger.Info("Query turn executed",
		zap.String("tenant", t.tenant),
		zap.String("table", out.TableAlias),
		zap.Int("rows", result.RowCount),
		zap.String("detail", out.DetailFlag))

	return out, nil
}

func (t *turnRun) rejectStatement(ctx context.Context, stmt string, reason error) *models.QueryOutcome {
	t.svc.auditor.LogUnsafeStatement(ctx, t.tenant, t.profile, audit.StatementDetails{
		Table:  t.continuation.BoundTableName,
		SQL:    stmt,
		Reason: reason.Error(),
	})
	return t.fail(fmt.Sprintf("%s: %v", models.ReasonUnsafeStatement, reason))
}

// memoryKey is the conversation memory key for this turn, or "" when the
// turn is stateless.
func (t *turnRun) memoryKey() string {
	return conversationKey(t.tenant, t.turn.ConversationID)
}

// selectTable binds a table for a fresh turn. A non-empty reason means the
// turn fails without running SQL.
func (t *turnRun) selectTable(ctx context.Context, conn *datasource.TenantConnection) (string, error) {
	s := t.svc

	selection, err := s.prompts.TableSelectionPrompt(ctx, conn, t.profile.AuthCode, t.turn.Question, t.profile.Level)
	if err != nil {
		return "", err
	}
	if len(selection.Tables) == 0 {
		s.logger.Info("No tables authorized for caller",
			zap.String("tenant", t.tenant),
			zap.String("auth", t.profile.AuthCode))
		return models.ReasonNoTableMatched, nil
	}

	alias := t.turn.BoundTableOverride
	if alias == "" {
		reply, err := s.converse(ctx, stepTableSelection, t.memoryKey(), selection.Prompt)
		if err != nil {
			return "", err
		}
		extracted, ok := llm.ExtractAlias(reply)
		if ok {
			alias = llm.Sanitize(extracted)
		}
		if alias == "" {
			s.logger.Info("No table alias in model reply",
				zap.String("tenant", t.tenant),
				zap.String("reply", logging.SanitizeQuestion(reply)))
			return models.ReasonNoTableMatched, nil
		}
	}

	bound, ok := selection.Lookup(alias)
	if !ok {
		s.logger.Info("Model picked an unknown table",
			zap.String("tenant", t.tenant),
			zap.String("alias", alias))
		return models.ReasonNoTableMatched, nil
	}

	t.continuation = &models.ContinuationState{
		BoundTableName:  bound.Table.TableName,
		BoundTableAlias: bound.Table.Alias,
		BindingQuery:    bound.Table.BindingQuery,
		LastSQL:         bound.Statement,
		LastColumns:     bound.ColumnNames,
		LastDetailFlag:  bound.Table.DetailFlag,
		HeaderColumns:   bound.HeaderColumns,
		CodeMap:         bound.CodeMaps,
		Tenant:          t.tenant,
		AuthCode:        t.profile.AuthCode,
		Level:           t.profile.Level,
	}
	return "", nil
}

func (t *turnRun) advance(next models.TurnState) {
	t.svc.logger.Debug("Query turn state",
		zap.String("from", string(t.state)),
		zap.String("to", string(next)))
	t.state = next
}

func (t *turnRun) fail(reason string) *models.QueryOutcome {
	t.advance(models.TurnStateFailed)
	t.outcome.State = t.state
	t.outcome.Message = models.MessageFail
	t.outcome.Reason = reason
	return t.outcome
}

// refreshAnchor moves the continuation anchor to the query just executed when
// its columns still cover the anchor's columns. An empty anchor adopts the
// result columns without moving the statement.
func refreshAnchor(state *models.ContinuationState, columns []string, executedSQL, detailFlag string) {
	if len(state.LastColumns) == 0 {
		state.LastColumns = columns
		return
	}
	if containsAll(columns, state.LastColumns) {
		state.LastColumns = columns
		state.LastSQL = executedSQL
		state.LastDetailFlag = detailFlag
	}
}

func (s *queryService) decodeToken(token string) *models.ContinuationState {
	if token == "" {
		return nil
	}
	state := s.codec.Decode(token)
	if state == nil {
		metrics.IncrementContinuationRejected()
		s.logger.Info("Ignoring undecodable continuation token",
			zap.String("token", logging.TokenPreview(token)))
	}
	return state
}

// converse wraps llm.Converse with timing and error classification.
func (s *queryService) converse(ctx context.Context, step, conversationID, prompt string) (string, error) {
	start := time.Now()
	reply, err := llm.Converse(ctx, s.gateway, s.memory, conversationID, prompt)
	metrics.ObserveLLMCall(step, err, time.Since(start))

	if err != nil {
		classified := llm.ClassifyError(err)
		s.logger.Error("LLM call failed",
			zap.String("step", step),
			zap.String("model", s.gateway.Model()),
			zap.String("type", string(classified.Type)),
			zap.String("error", logging.SanitizeError(err)))
		return "", fmt.Errorf("%s: %w", step, classified)
	}

	s.logger.Debug("LLM reply",
		zap.String("step", step),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("reply", reply))
	return reply, nil
}

func (s *queryService) Chat(ctx context.Context, conversationID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: prompt is required", apperrors.ErrInvalidRequest)
	}
	return s.converse(ctx, stepChat, conversationKey(database.TenantFromContext(ctx), conversationID), message)
}

// conversationKey scopes a conversation id to its tenant. Ids are guessable
// (auth code plus a timestamp), so histories of different tenants must never
// share a key. An empty id stays empty and the call is stateless.
func conversationKey(tenant, conversationID string) string {
	if conversationID == "" {
		return ""
	}
	return tenant + ":" + conversationID
}

func (s *queryService) NewConversation(authCode string) string {
	if authCode == "" {
		authCode = models.GuestAuthCode
	}
	return authCode + "_" + strconv.FormatInt(s.now().UnixMilli(), 10)
}
