package services

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/chatq-inc/chatq-engine/pkg/adapters/datasource"
	"github.com/chatq-inc/chatq-engine/pkg/database"
	"github.com/chatq-inc/chatq-engine/pkg/models"
)

// ============================================================================
// Mock Implementations for Service Tests
// ============================================================================

type mockCatalog struct {
	mu         sync.Mutex
	tables     []*models.SchemaTable
	columns    map[string][]*models.SchemaColumn
	tablesErr  error
	columnsErr error

	tableCalls  int
	lastAuth    string
	lastMeta    string
	lastLevel   int
	lastTenants []string
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{columns: make(map[string][]*models.SchemaColumn)}
}

func (m *mockCatalog) addTable(table *models.SchemaTable, columns ...*models.SchemaColumn) {
	m.tables = append(m.tables, table)
	m.columns[table.TableName] = columns
}

func (m *mockCatalog) AuthorizedTables(ctx context.Context, authCode string) ([]*models.AuthorizedTable, error) {
	var out []*models.AuthorizedTable
	for _, t := range m.tables {
		out = append(out, &models.AuthorizedTable{AuthCode: authCode, TableName: t.TableName, Alias: t.Alias})
	}
	return out, nil
}

func (m *mockCatalog) Tables(ctx context.Context, authCode, metaFlag string) ([]*models.SchemaTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tableCalls++
	m.lastAuth = authCode
	m.lastMeta = metaFlag
	m.lastTenants = append(m.lastTenants, database.TenantFromContext(ctx))
	if m.tablesErr != nil {
		return nil, m.tablesErr
	}
	if authCode == "" {
		return []*models.SchemaTable{}, nil
	}
	var out []*models.SchemaTable
	for _, t := range m.tables {
		flag := t.MetaFlag
		if flag == "" {
			flag = models.FlagNo
		}
		if flag == metaFlag {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockCatalog) Columns(ctx context.Context, tableName string, level int) ([]*models.SchemaColumn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLevel = level
	if m.columnsErr != nil {
		return nil, m.columnsErr
	}
	var out []*models.SchemaColumn
	for _, c := range m.columns[tableName] {
		if c.VisibleTo(level) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCatalog) tableCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tableCalls
}

// staticResolver hands out one connection for every tenant.
type staticResolver struct {
	conn    *datasource.TenantConnection
	tenants []string
}

func (r *staticResolver) ConnectionFor(_ context.Context, tenantID string) *datasource.TenantConnection {
	r.tenants = append(r.tenants, tenantID)
	return r.conn
}

var testPostgresDriver = &datasource.DriverRegistration{
	Info:       datasource.DriverInfo{Type: "postgres", DisplayName: "PostgreSQL", DriverName: "sqlmock"},
	ReadOnlyTx: true,
}

// newMockTenantConnection returns a connection whose statements are matched
// exactly against sqlmock expectations.
func newMockTenantConnection(t *testing.T, tenant string) (*datasource.TenantConnection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return datasource.NewTenantConnection(tenant, db, testPostgresDriver), mock
}

// expectTenantRows expects stmt to run inside a rolled-back transaction and
// return rows.
func expectTenantRows(mock sqlmock.Sqlmock, stmt string, rows *sqlmock.Rows) {
	mock.ExpectBegin()
	mock.ExpectQuery(stmt).WillReturnRows(rows)
	mock.ExpectRollback()
}

// expectTenantError expects stmt to run inside a rolled-back transaction and fail.
func expectTenantError(mock sqlmock.Sqlmock, stmt string, err error) {
	mock.ExpectBegin()
	mock.ExpectQuery(stmt).WillReturnError(err)
	mock.ExpectRollback()
}

// salesCatalog is a catalog with one sales table visible to the SALES auth code.
func salesCatalog() *mockCatalog {
	catalog := newMockCatalog()
	catalog.addTable(
		&models.SchemaTable{TableName: "sales", Alias: "sales", DetailFlag: models.FlagNo},
		&models.SchemaColumn{TableName: "sales", Code: "region", Name: "region", MinLevel: 9, Order: 1},
		&models.SchemaColumn{TableName: "sales", Code: "amount", Name: "total", MinLevel: 9, Order: 2},
		&models.SchemaColumn{TableName: "sales", Code: "cost", Name: "cost", MinLevel: 1, Order: 3},
	)
	catalog.addTable(
		&models.SchemaTable{TableName: "orders", Alias: "orders", DetailFlag: models.FlagYes},
		&models.SchemaColumn{TableName: "orders", Code: "order_no", Name: "order_no", MinLevel: 9, IsHeader: true, Order: 1},
		&models.SchemaColumn{TableName: "orders", Code: "customer", Name: "customer", MinLevel: 9, IsHeader: true, Order: 2},
		&models.SchemaColumn{TableName: "orders", Code: "item", Name: "item", MinLevel: 9, Order: 3},
		&models.SchemaColumn{TableName: "orders", Code: "status", Name: "status", MinLevel: 9, CodeMap: "01=open,02=shipped", Order: 4},
	)
	return catalog
}
