package database

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenTenantScope_SetsAndResetsCompany(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`SELECT set_config\('app\.current_company', \$1, false\)`).
		WithArgs("acme").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT 1`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectExec(`RESET app\.current_company`).WillReturnResult(sqlmock.NewResult(0, 0))

	scope, err := OpenTenantScope(context.Background(), db, "acme")
	require.NoError(t, err)

	var n int
	require.NoError(t, scope.Conn.QueryRowContext(context.Background(), "SELECT 1").Scan(&n))
	scope.Close()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenTenantScope_SetConfigFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`set_config`).WithArgs("acme").WillReturnError(errors.New("connection reset"))

	scope, err := OpenTenantScope(context.Background(), db, "acme")
	assert.Nil(t, scope)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set tenant context")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantScope_CloseNil(t *testing.T) {
	var scope *TenantScope
	assert.NotPanics(t, scope.Close)
	assert.NotPanics(t, (&TenantScope{}).Close)
}
