package repositories

import (
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

// expectTenantScope expects a TenantScope to be opened for company.
func expectTenantScope(mock sqlmock.Sqlmock, company string) {
	mock.ExpectExec(`SELECT set_config\('app\.current_company', \$1, false\)`).
		WithArgs(company).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

// expectScopeReset expects the tenant context to be reset when the scope closes.
func expectScopeReset(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`RESET app\.current_company`).WillReturnResult(sqlmock.NewResult(0, 0))
}
