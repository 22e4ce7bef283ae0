package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chatq-inc/chatq-engine/pkg/apperrors"
	"github.com/chatq-inc/chatq-engine/pkg/database"
	"github.com/chatq-inc/chatq-engine/pkg/models"
)

// TenantDataSourceRepository reads tenant connection parameters from the
// control-plane chatqcomp table.
type TenantDataSourceRepository interface {
	// GetByCompany returns apperrors.ErrNotFound when the tenant has no row.
	GetByCompany(ctx context.Context, company string) (*models.TenantDataSource, error)
}

type tenantDataSourceRepository struct {
	db *sql.DB
}

// NewTenantDataSourceRepository creates a TenantDataSourceRepository.
func NewTenantDataSourceRepository(db *sql.DB) TenantDataSourceRepository {
	return &tenantDataSourceRepository{db: db}
}

var _ TenantDataSourceRepository = (*tenantDataSourceRepository)(nil)

func (r *tenantDataSourceRepository) GetByCompany(ctx context.Context, company string) (*models.TenantDataSource, error) {
	query := `
		SELECT jdbc_url, user_nm, password, driver_class_name
		FROM chatqcomp
		WHERE company = $1`

	scope, err := database.OpenTenantScope(ctx, r.db, company)
	if err != nil {
		return nil, fmt.Errorf("failed to load datasource for company %s: %w", company, err)
	}
	defer scope.Close()

	ds := &models.TenantDataSource{Company: company}
	err = scope.Conn.QueryRowContext(ctx, query, company).Scan(&ds.URL, &ds.User, &ds.Password, &ds.DriverClass)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load datasource for company %s: %w", company, err)
	}

	return ds, nil
}
