package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("select region, total from sales").
		WillReturnRows(sqlmock.NewRows([]string{"region", "total"}).
			AddRow([]byte("North"), int64(10)).
			AddRow("South", nil))

	result, err := Execute(context.Background(), db, "select region, total from sales")
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "total"}, result.Columns)
	assert.Equal(t, 2, result.RowCount)

	region, _ := result.Rows[0].Get("region")
	assert.Equal(t, "North", region, "[]byte values are converted to string")

	data, err := json.Marshal(result.Rows)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"region":"North","total":10},{"region":"South","total":null}]`, string(data))
	assert.Equal(t, `{"region":"North","total":10}`, string(mustMarshal(t, result.Rows[0])))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_EmptyResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("select").WillReturnRows(sqlmock.NewRows([]string{"a"}))

	result, err := Execute(context.Background(), db, "select a from t where 1=0")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.Columns)
	assert.Empty(t, result.Rows)
	assert.NotNil(t, result.Rows)
}

func TestExecute_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("select").WillReturnError(errors.New(`relation "salez" does not exist`))

	_, err = Execute(context.Background(), db, "select * from salez")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `relation "salez" does not exist`)
}

func TestExecute_RowError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("select").WillReturnRows(
		sqlmock.NewRows([]string{"a"}).AddRow(1).AddRow(2).RowError(1, errors.New("connection reset")))

	_, err = Execute(context.Background(), db, "select a from t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestTenantConnection_QueryRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	conn := NewTenantConnection("acme", db, &DriverRegistration{ReadOnlyTx: true})

	mock.ExpectBegin()
	mock.ExpectQuery("select region from sales").
		WillReturnRows(sqlmock.NewRows([]string{"region"}).AddRow("North"))
	mock.ExpectRollback()

	result, err := conn.Query(context.Background(), "select region from sales")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet(), "the transaction is never committed")
}

func TestTenantConnection_QueryErrorRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	conn := NewTenantConnection("acme", db, &DriverRegistration{})

	mock.ExpectBegin()
	mock.ExpectQuery("select").WillReturnError(errors.New("cannot execute INSERT in a read-only transaction"))
	mock.ExpectRollback()

	_, err = conn.Query(context.Background(), "select * into sales_copy from sales")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantConnection_QueryBeginError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	conn := NewTenantConnection("acme", db, &DriverRegistration{})
	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, err = conn.Query(context.Background(), "select 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
}

func TestTenantConnection_QuoteIdentifier(t *testing.T) {
	ansi := NewTenantConnection("acme", nil, &DriverRegistration{})
	assert.Equal(t, `"Amount"`, ansi.QuoteIdentifier("Amount"))
	assert.Equal(t, `"say ""hi"""`, ansi.QuoteIdentifier(`say "hi"`))

	brackets := NewTenantConnection("acme", nil, &DriverRegistration{
		QuoteIdentifier: func(name string) string { return "[" + name + "]" },
	})
	assert.Equal(t, "[Amount]", brackets.QuoteIdentifier("Amount"))
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
