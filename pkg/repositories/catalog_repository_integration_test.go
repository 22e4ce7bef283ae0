//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatq-inc/chatq-engine/pkg/database"
	"github.com/chatq-inc/chatq-engine/pkg/testhelpers"
)

func seedCatalog(t *testing.T, testDB *testhelpers.TestDB) {
	t.Helper()
	ctx := context.Background()

	stmts := []string{
		`DELETE FROM chatqcolumn`, `DELETE FROM chatqauth`, `DELETE FROM chatqtable`, `DELETE FROM chatqcomp`,
		`INSERT INTO chatqtable (company, table_nm, table_alias, tail_query, detail_yn, meta_yn) VALUES
			('acme', 'sales', 'sales', 'where deleted = 0', 'Y', 'N'),
			('globex', 'sales', 'globex_sales', '', 'N', 'N')`,
		`INSERT INTO chatqauth (company, auth, table_nm) VALUES
			('acme', 'SALES', 'sales'),
			('globex', 'SALES', 'sales')`,
		`INSERT INTO chatqcolumn (company, table_nm, column_cd, column_nm, level, column_order) VALUES
			('acme', 'sales', 'amount', 'amount', 9, 1),
			('acme', 'sales', 'cost', 'cost', 3, 2),
			('globex', 'sales', 'secret', 'secret', 9, 1)`,
	}
	for _, stmt := range stmts {
		_, err := testDB.DB.Exec(ctx, stmt)
		require.NoError(t, err)
	}
}

func TestCatalogRepository_Integration_TenantIsolation(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	seedCatalog(t, testDB)

	repo := NewCatalogRepository(testDB.DB.SQL())
	ctx := database.WithTenant(context.Background(), "acme")

	tables, err := repo.Tables(ctx, "SALES", "N")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "sales", tables[0].Alias)

	columns, err := repo.Columns(ctx, "sales", 9)
	require.NoError(t, err)
	require.Len(t, columns, 1)
	assert.Equal(t, "amount", columns[0].Name)
}

func TestCatalogRepository_Integration_LevelFiltering(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	seedCatalog(t, testDB)

	repo := NewCatalogRepository(testDB.DB.SQL())
	ctx := database.WithTenant(context.Background(), "acme")

	privileged, err := repo.Columns(ctx, "sales", 2)
	require.NoError(t, err)
	assert.Len(t, privileged, 2, "level 2 sees the level-3 column")

	restricted, err := repo.Columns(ctx, "sales", 5)
	require.NoError(t, err)
	require.Len(t, restricted, 1, "level 5 does not see the level-3 column")
	assert.Equal(t, "amount", restricted[0].Name)
}

func TestCatalogRepository_Integration_AuthorizedTables(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	seedCatalog(t, testDB)

	repo := NewCatalogRepository(testDB.DB.SQL())
	ctx := database.WithTenant(context.Background(), "globex")

	tables, err := repo.AuthorizedTables(ctx, "SALES")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "globex_sales", tables[0].Alias)
}

func TestTenantScope_Integration_RowLevelSecurity(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	seedCatalog(t, testDB)
	ctx := context.Background()

	for _, table := range []string{"chatqcomp", "chatqtable", "chatqauth", "chatqcolumn"} {
		var rlsEnabled bool
		err := testDB.DB.QueryRow(ctx, `SELECT relrowsecurity FROM pg_class WHERE relname = $1`, table).Scan(&rlsEnabled)
		require.NoError(t, err)
		assert.True(t, rlsEnabled, "Row Level Security should be enabled on %s", table)

		var policyExists bool
		err = testDB.DB.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM pg_policy
				WHERE polrelid = (SELECT oid FROM pg_class WHERE relname = $1)
				AND polname = $2
			)
		`, table, table+"_company_access").Scan(&policyExists)
		require.NoError(t, err)
		assert.True(t, policyExists, "RLS policy should exist on %s", table)
	}

	// The container user is a superuser and bypasses RLS, so read as a plain role.
	_, err := testDB.DB.Exec(ctx, `DO $$ BEGIN
		IF NOT EXISTS (SELECT FROM pg_roles WHERE rolname = 'chatq_reader') THEN
			CREATE ROLE chatq_reader NOLOGIN;
		END IF;
	END $$`)
	require.NoError(t, err)
	_, err = testDB.DB.Exec(ctx, `GRANT SELECT ON chatqcomp, chatqtable, chatqauth, chatqcolumn TO chatq_reader`)
	require.NoError(t, err)

	scope, err := database.OpenTenantScope(ctx, testDB.DB.SQL(), "acme")
	require.NoError(t, err)
	defer scope.Close()

	_, err = scope.Conn.ExecContext(ctx, "SET ROLE chatq_reader")
	require.NoError(t, err)
	defer func() { _, _ = scope.Conn.ExecContext(ctx, "RESET ROLE") }()

	// No company predicate: the policy alone hides globex rows.
	rows, err := scope.Conn.QueryContext(ctx, `SELECT DISTINCT company FROM chatqcolumn ORDER BY company`)
	require.NoError(t, err)
	defer rows.Close()

	var companies []string
	for rows.Next() {
		var company string
		require.NoError(t, rows.Scan(&company))
		companies = append(companies, company)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"acme"}, companies)
}
