package datasource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chatq-inc/chatq-engine/pkg/models"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []string      `json:"columns"`
	Rows     []*models.Row `json:"rows"`
	RowCount int           `json:"row_count"`
}

// Execute runs sqlText unmodified and collects every row. Column labels are
// kept in result order and []byte values are returned as strings.
func Execute(ctx context.Context, db Querier, sqlText string) (*QueryExecutionResult, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	resultRows := make([]*models.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := models.NewRow(len(columns))
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row.Set(col, val)
		}
		resultRows = append(resultRows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}
