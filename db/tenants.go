package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "gitpulse/db/tx"
	"gitpulse/models"
)

type PostgresTenantsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for tenants table
var tenantsColumns = []string{
	"id",
	"name",
	"created_at",
	"updated_at",
}

func NewPostgresTenantsRepository(db *sqlx.DB, schema string) *PostgresTenantsRepository {
	return &PostgresTenantsRepository{db: db, schema: schema}
}

func (r *PostgresTenantsRepository) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	returningStr := strings.Join(tenantsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.tenants (id, name, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING %s`, r.schema, returningStr)

	q := dbtx.GetTransactional(ctx, r.db)
	err := q.QueryRowxContext(ctx, query, tenant.ID, tenant.Name).StructScan(tenant)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	return nil
}

func (r *PostgresTenantsRepository) GetTenantByID(
	ctx context.Context,
	id models.TenantID,
) (mo.Option[*models.Tenant], error) {
	columnsStr := strings.Join(tenantsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.tenants
		WHERE id = $1`, columnsStr, r.schema)

	var tenant models.Tenant
	q := dbtx.GetTransactional(ctx, r.db)
	err := q.GetContext(ctx, &tenant, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Tenant](), nil
		}
		return mo.None[*models.Tenant](), fmt.Errorf("failed to get tenant: %w", err)
	}

	return mo.Some(&tenant), nil
}
