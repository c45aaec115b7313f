package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "gitpulse/db/tx"
	"gitpulse/models"
)

type PostgresInstallationsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for installations table
var installationsColumns = []string{
	"id",
	"github_installation_id",
	"account_type",
	"account_login",
	"account_id",
	"is_active",
	"suspended_at",
	"permissions",
	"cached_token",
	"token_expires_at",
	"tenant_id",
	"created_at",
	"updated_at",
}

func NewPostgresInstallationsRepository(db *sqlx.DB, schema string) *PostgresInstallationsRepository {
	return &PostgresInstallationsRepository{db: db, schema: schema}
}

// UpsertInstallation inserts a new installation record or, if a record with the
// same github_installation_id exists, updates its account fields and activation
// state in place. Duplicate installation.created deliveries therefore never
// produce duplicate rows. An existing tenant link is never cleared by an upsert
// carrying a nil tenant.
func (r *PostgresInstallationsRepository) UpsertInstallation(
	ctx context.Context,
	installation *models.Installation,
) error {
	returningStr := strings.Join(installationsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.installations
			(id, github_installation_id, account_type, account_login, account_id,
			 is_active, suspended_at, permissions, cached_token, token_expires_at, tenant_id,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (github_installation_id) DO UPDATE SET
			account_type = EXCLUDED.account_type,
			account_login = EXCLUDED.account_login,
			account_id = EXCLUDED.account_id,
			is_active = EXCLUDED.is_active,
			suspended_at = EXCLUDED.suspended_at,
			permissions = EXCLUDED.permissions,
			tenant_id = COALESCE(EXCLUDED.tenant_id, %s.installations.tenant_id),
			updated_at = NOW()
		RETURNING %s`, r.schema, r.schema, returningStr)

	q := dbtx.GetTransactional(ctx, r.db)
	err := q.QueryRowxContext(ctx, query,
		installation.ID,
		installation.GitHubInstallationID,
		installation.AccountType,
		installation.AccountLogin,
		installation.AccountID,
		installation.IsActive,
		installation.SuspendedAt,
		installation.Permissions,
		installation.CachedToken,
		installation.TokenExpiresAt,
		installation.TenantID,
	).StructScan(installation)
	if err != nil {
		return fmt.Errorf("failed to upsert installation: %w", err)
	}

	return nil
}

func (r *PostgresInstallationsRepository) GetInstallationByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.Installation], error) {
	columnsStr := strings.Join(installationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.installations
		WHERE id = $1`, columnsStr, r.schema)

	var installation models.Installation
	q := dbtx.GetTransactional(ctx, r.db)
	err := q.GetContext(ctx, &installation, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Installation](), nil
		}
		return mo.None[*models.Installation](), fmt.Errorf("failed to get installation: %w", err)
	}

	return mo.Some(&installation), nil
}

// GetInstallationByIDForUpdate loads the installation row holding an exclusive
// row lock for the remainder of the surrounding transaction. Token refresh is
// serialized through this lock so concurrent workers under the same
// installation observe at most one external token issuance per refresh cycle.
func (r *PostgresInstallationsRepository) GetInstallationByIDForUpdate(
	ctx context.Context,
	id string,
) (mo.Option[*models.Installation], error) {
	if _, ok := dbtx.TransactionFromContext(ctx); !ok {
		return mo.None[*models.Installation](), fmt.Errorf("FOR UPDATE requires a transaction in context")
	}

	columnsStr := strings.Join(installationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.installations
		WHERE id = $1
		FOR UPDATE`, columnsStr, r.schema)

	var installation models.Installation
	q := dbtx.GetTransactional(ctx, r.db)
	err := q.GetContext(ctx, &installation, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Installation](), nil
		}
		return mo.None[*models.Installation](), fmt.Errorf("failed to get installation for update: %w", err)
	}

	return mo.Some(&installation), nil
}

func (r *PostgresInstallationsRepository) GetInstallationByGitHubID(
	ctx context.Context,
	githubInstallationID int64,
) (mo.Option[*models.Installation], error) {
	columnsStr := strings.Join(installationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.installations
		WHERE github_installation_id = $1`, columnsStr, r.schema)

	var installation models.Installation
	q := dbtx.GetTransactional(ctx, r.db)
	err := q.GetContext(ctx, &installation, query, githubInstallationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Installation](), nil
		}
		return mo.None[*models.Installation](), fmt.Errorf("failed to get installation by github id: %w", err)
	}

	return mo.Some(&installation), nil
}

// GetLatestInactiveByAccountID returns the most recent deactivated installation
// for an account, used to detect a reinstall and inherit its tenant link.
func (r *PostgresInstallationsRepository) GetLatestInactiveByAccountID(
	ctx context.Context,
	accountID int64,
) (mo.Option[*models.Installation], error) {
	columnsStr := strings.Join(installationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.installations
		WHERE account_id = $1 AND is_active = FALSE
		ORDER BY created_at DESC
		LIMIT 1`, columnsStr, r.schema)

	var installation models.Installation
	q := dbtx.GetTransactional(ctx, r.db)
	err := q.GetContext(ctx, &installation, query, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Installation](), nil
		}
		return mo.None[*models.Installation](), fmt.Errorf("failed to get inactive installation by account id: %w", err)
	}

	return mo.Some(&installation), nil
}

// UpdateInstallationToken persists a freshly issued access token. Called with
// the row lock still held by the surrounding refresh transaction.
func (r *PostgresInstallationsRepository) UpdateInstallationToken(
	ctx context.Context,
	id string,
	token string,
	expiresAt time.Time,
) error {
	query := fmt.Sprintf(`
		UPDATE %s.installations
		SET cached_token = $2, token_expires_at = $3, updated_at = NOW()
		WHERE id = $1`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, token, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to update installation token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("installation not found")
	}

	return nil
}

// MarkSuspended transitions an installation to the Suspended state and drops
// the cached token so it can never be served again.
func (r *PostgresInstallationsRepository) MarkSuspended(
	ctx context.Context,
	githubInstallationID int64,
) error {
	query := fmt.Sprintf(`
		UPDATE %s.installations
		SET is_active = FALSE, suspended_at = NOW(), cached_token = '', token_expires_at = NULL, updated_at = NOW()
		WHERE github_installation_id = $1`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	if _, err := q.ExecContext(ctx, query, githubInstallationID); err != nil {
		return fmt.Errorf("failed to mark installation suspended: %w", err)
	}

	return nil
}

// MarkActive transitions an installation back to the Active state.
func (r *PostgresInstallationsRepository) MarkActive(
	ctx context.Context,
	githubInstallationID int64,
) error {
	query := fmt.Sprintf(`
		UPDATE %s.installations
		SET is_active = TRUE, suspended_at = NULL, updated_at = NOW()
		WHERE github_installation_id = $1`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	if _, err := q.ExecContext(ctx, query, githubInstallationID); err != nil {
		return fmt.Errorf("failed to mark installation active: %w", err)
	}

	return nil
}

// MarkRemovedByID transitions an installation to the Removed state (is_active
// false, suspended_at cleared) and drops the cached token.
func (r *PostgresInstallationsRepository) MarkRemovedByID(
	ctx context.Context,
	id string,
) error {
	query := fmt.Sprintf(`
		UPDATE %s.installations
		SET is_active = FALSE, suspended_at = NULL, cached_token = '', token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	if _, err := q.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark installation removed: %w", err)
	}

	return nil
}

// AttachTenant links an installation to the tenant that completed onboarding.
func (r *PostgresInstallationsRepository) AttachTenant(
	ctx context.Context,
	githubInstallationID int64,
	tenantID models.TenantID,
) error {
	query := fmt.Sprintf(`
		UPDATE %s.installations
		SET tenant_id = $2, updated_at = NOW()
		WHERE github_installation_id = $1`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	result, err := q.ExecContext(ctx, query, githubInstallationID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to attach tenant to installation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("installation not found")
	}

	return nil
}

// CountByGitHubInstallationID exists for idempotency checks in tests.
func (r *PostgresInstallationsRepository) CountByGitHubInstallationID(
	ctx context.Context,
	githubInstallationID int64,
) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s.installations WHERE github_installation_id = $1`, r.schema)

	var count int
	q := dbtx.GetTransactional(ctx, r.db)
	if err := q.GetContext(ctx, &count, query, githubInstallationID); err != nil {
		return 0, fmt.Errorf("failed to count installations: %w", err)
	}

	return count, nil
}
