package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/adapters/datasource"
	"github.com/chatq-inc/chatq-engine/pkg/config"
	"github.com/chatq-inc/chatq-engine/pkg/models"
	"github.com/chatq-inc/chatq-engine/pkg/prompts"
	"github.com/chatq-inc/chatq-engine/pkg/repositories"
)

// PromptService loads the catalog for the active tenant and renders the two
// prompts of a query turn.
type PromptService interface {
	// TableSelectionPrompt renders the tables granted to authCode, with the
	// columns visible at level, into a table-selection prompt. Column aliases
	// use the identifier quoting of conn.
	TableSelectionPrompt(ctx context.Context, conn *datasource.TenantConnection, authCode, question string, level int) (*prompts.TableSelectionResult, error)

	// QuerySynthesisPrompt renders the rewrite prompt for baseSQL in the
	// dialect of conn.
	QuerySynthesisPrompt(ctx context.Context, conn *datasource.TenantConnection, baseSQL, question string, codeMap map[string]string) string
}

type promptService struct {
	catalog    repositories.CatalogRepository
	dateFormat string
	logger     *zap.Logger
}

// NewPromptService creates a PromptService reading from catalog.
func NewPromptService(catalog repositories.CatalogRepository, queryCfg *config.QueryConfig, logger *zap.Logger) PromptService {
	return &promptService{
		catalog:    catalog,
		dateFormat: queryCfg.DateFormat,
		logger:     logger.Named("prompts"),
	}
}

var _ PromptService = (*promptService)(nil)

func (s *promptService) TableSelectionPrompt(ctx context.Context, conn *datasource.TenantConnection, authCode, question string, level int) (*prompts.TableSelectionResult, error) {
	metaFlag := models.YesNo(prompts.IsMetaQuestion(question))

	tables, err := s.catalog.Tables(ctx, authCode, metaFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}

	specs := make([]prompts.TableSpec, 0, len(tables))
	for _, table := range tables {
		columns, err := s.catalog.Columns(ctx, table.TableName, level)
		if err != nil {
			return nil, fmt.Errorf("failed to load columns for %s: %w", table.TableName, err)
		}
		specs = append(specs, prompts.TableSpec{Table: table, Columns: columns})
	}

	var quote prompts.Quoter
	if conn != nil {
		quote = conn.QuoteIdentifier
	}
	result := prompts.TableSelection(question, specs, quote)

	s.logger.Debug("Rendered table selection prompt",
		zap.String("auth", authCode),
		zap.String("meta", metaFlag),
		zap.Int("tables", len(specs)),
		zap.String("prompt", result.Prompt))

	return result, nil
}

func (s *promptService) QuerySynthesisPrompt(ctx context.Context, conn *datasource.TenantConnection, baseSQL, question string, codeMap map[string]string) string {
	dialect := conn.Dialect(ctx)
	prompt := prompts.QuerySynthesis(baseSQL, question, dialect, s.dateFormat, codeMap)

	s.logger.Debug("Rendered query synthesis prompt",
		zap.String("dialect", dialect),
		zap.String("prompt", prompt))

	return prompt
}
