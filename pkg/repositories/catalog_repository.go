package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chatq-inc/chatq-engine/pkg/database"
	"github.com/chatq-inc/chatq-engine/pkg/models"
)

// CatalogRepository is read-only access to the per-tenant schema catalog.
// Every statement is scoped to the tenant carried by ctx.
type CatalogRepository interface {
	// AuthorizedTables lists the tables granted to authCode, each with the
	// highest alias known for it.
	AuthorizedTables(ctx context.Context, authCode string) ([]*models.AuthorizedTable, error)
	// Tables lists the catalog tables reachable by authCode whose meta flag
	// equals metaFlag.
	Tables(ctx context.Context, authCode, metaFlag string) ([]*models.SchemaTable, error)
	// Columns lists the columns of tableName visible at the caller's level,
	// in display order.
	Columns(ctx context.Context, tableName string, level int) ([]*models.SchemaColumn, error)
}

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a CatalogRepository over the control-plane database.
func NewCatalogRepository(db *sql.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

var _ CatalogRepository = (*catalogRepository)(nil)

// query runs a catalog statement whose first placeholder ($1) is the
// company, on a connection scoped to the same company for RLS. All catalog
// reads go through here so none can skip the tenant predicate. The caller
// closes rows before the scope.
func (r *catalogRepository) query(ctx context.Context, stmt string, args ...any) (*sql.Rows, *database.TenantScope, error) {
	tenant := database.TenantFromContext(ctx)
	scope, err := database.OpenTenantScope(ctx, r.db, tenant)
	if err != nil {
		return nil, nil, err
	}

	scoped := make([]any, 0, len(args)+1)
	scoped = append(scoped, tenant)
	scoped = append(scoped, args...)
	rows, err := scope.Conn.QueryContext(ctx, stmt, scoped...)
	if err != nil {
		scope.Close()
		return nil, nil, err
	}
	return rows, scope, nil
}

func (r *catalogRepository) AuthorizedTables(ctx context.Context, authCode string) ([]*models.AuthorizedTable, error) {
	stmt := `
		SELECT a.auth, a.table_nm,
		       COALESCE((SELECT max(t.table_alias) FROM chatqtable t
		                 WHERE t.company = a.company AND t.table_nm = a.table_nm), '') AS table_alias
		FROM chatqauth a
		WHERE a.company = $1 AND a.auth = $2
		ORDER BY a.table_nm`

	rows, scope, err := r.query(ctx, stmt, authCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorized tables: %w", err)
	}
	defer scope.Close()
	defer rows.Close()

	var tables []*models.AuthorizedTable
	for rows.Next() {
		t := &models.AuthorizedTable{}
		if err := rows.Scan(&t.AuthCode, &t.TableName, &t.Alias); err != nil {
			return nil, fmt.Errorf("failed to scan authorized table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate authorized tables: %w", err)
	}

	return tables, nil
}

func (r *catalogRepository) Tables(ctx context.Context, authCode, metaFlag string) ([]*models.SchemaTable, error) {
	if authCode == "" {
		return []*models.SchemaTable{}, nil
	}

	stmt := `
		SELECT t.table_nm, t.table_alias, t.tail_query, t.table_query, t.detail_yn, t.meta_yn
		FROM chatqtable t
		JOIN chatqauth a ON a.company = t.company AND a.table_nm = t.table_nm
		WHERE t.company = $1 AND a.auth = $2 AND t.meta_yn = $3
		ORDER BY t.table_nm, t.table_alias`

	rows, scope, err := r.query(ctx, stmt, authCode, metaFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer scope.Close()
	defer rows.Close()

	tables := []*models.SchemaTable{}
	for rows.Next() {
		t := &models.SchemaTable{}
		if err := rows.Scan(&t.TableName, &t.Alias, &t.TailClause, &t.BindingQuery, &t.DetailFlag, &t.MetaFlag); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tables: %w", err)
	}

	return tables, nil
}

func (r *catalogRepository) Columns(ctx context.Context, tableName string, level int) ([]*models.SchemaColumn, error) {
	stmt := `
		SELECT table_nm, column_cd, column_nm, column_desc, subquery_yn,
		       level, header_column_yn, code_map, column_order
		FROM chatqcolumn
		WHERE company = $1 AND table_nm = $2 AND level >= $3
		ORDER BY column_order`

	rows, scope, err := r.query(ctx, stmt, tableName, level)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns for %s: %w", tableName, err)
	}
	defer scope.Close()
	defer rows.Close()

	var columns []*models.SchemaColumn
	for rows.Next() {
		c := &models.SchemaColumn{}
		var subquery, header string
		if err := rows.Scan(&c.TableName, &c.Code, &c.Name, &c.Description, &subquery,
			&c.MinLevel, &header, &c.CodeMap, &c.Order); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		c.IsSubquery = subquery == models.FlagYes
		c.IsHeader = header == models.FlagYes
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate columns: %w", err)
	}

	return columns, nil
}
