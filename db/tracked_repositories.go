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

type PostgresTrackedRepositoriesRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for tracked_repositories table
var trackedRepositoriesColumns = []string{
	"id",
	"full_name",
	"tenant_id",
	"installation_id",
	"oauth_credential_id",
	"sync_status",
	"last_sync_at",
	"last_sync_error",
	"created_at",
	"updated_at",
}

func NewPostgresTrackedRepositoriesRepository(db *sqlx.DB, schema string) *PostgresTrackedRepositoriesRepository {
	return &PostgresTrackedRepositoriesRepository{db: db, schema: schema}
}

func (r *PostgresTrackedRepositoriesRepository) CreateTrackedRepository(
	ctx context.Context,
	repo *models.TrackedRepository,
) error {
	returningStr := strings.Join(trackedRepositoriesColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.tracked_repositories
			(id, full_name, tenant_id, installation_id, oauth_credential_id, sync_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING %s`, r.schema, returningStr)

	q := dbtx.GetTransactional(ctx, r.db)
	err := q.QueryRowxContext(ctx, query,
		repo.ID,
		repo.FullName,
		repo.TenantID,
		repo.InstallationID,
		repo.OAuthCredentialID,
		repo.SyncStatus,
	).StructScan(repo)
	if err != nil {
		return fmt.Errorf("failed to create tracked repository: %w", err)
	}

	return nil
}

func (r *PostgresTrackedRepositoriesRepository) GetRepositoryByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.TrackedRepository], error) {
	columnsStr := strings.Join(trackedRepositoriesColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.tracked_repositories
		WHERE id = $1`, columnsStr, r.schema)

	var repo models.TrackedRepository
	q := dbtx.GetTransactional(ctx, r.db)
	err := q.GetContext(ctx, &repo, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.TrackedRepository](), nil
		}
		return mo.None[*models.TrackedRepository](), fmt.Errorf("failed to get tracked repository: %w", err)
	}

	return mo.Some(&repo), nil
}

func (r *PostgresTrackedRepositoriesRepository) GetRepositoryByFullName(
	ctx context.Context,
	tenantID models.TenantID,
	fullName string,
) (mo.Option[*models.TrackedRepository], error) {
	columnsStr := strings.Join(trackedRepositoriesColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.tracked_repositories
		WHERE tenant_id = $1 AND full_name = $2`, columnsStr, r.schema)

	var repo models.TrackedRepository
	q := dbtx.GetTransactional(ctx, r.db)
	err := q.GetContext(ctx, &repo, query, tenantID, fullName)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.TrackedRepository](), nil
		}
		return mo.None[*models.TrackedRepository](), fmt.Errorf("failed to get tracked repository by full name: %w", err)
	}

	return mo.Some(&repo), nil
}

func (r *PostgresTrackedRepositoriesRepository) ListRepositoriesByInstallationID(
	ctx context.Context,
	installationID string,
) ([]*models.TrackedRepository, error) {
	columnsStr := strings.Join(trackedRepositoriesColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.tracked_repositories
		WHERE installation_id = $1
		ORDER BY created_at ASC`, columnsStr, r.schema)

	repos := []*models.TrackedRepository{}
	q := dbtx.GetTransactional(ctx, r.db)
	if err := q.SelectContext(ctx, &repos, query, installationID); err != nil {
		return nil, fmt.Errorf("failed to list tracked repositories by installation: %w", err)
	}

	return repos, nil
}

// ListRepositoriesDueForSync returns repositories whose last successful sync is
// older than the cutoff (or that never synced). Fatally-errored rows need user
// action first and are never returned. Rows sitting in syncing since before
// reclaimBefore were abandoned by a dead worker and are handed out again.
func (r *PostgresTrackedRepositoriesRepository) ListRepositoriesDueForSync(
	ctx context.Context,
	cutoff time.Time,
	reclaimBefore time.Time,
) ([]*models.TrackedRepository, error) {
	columnsStr := strings.Join(trackedRepositoriesColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.tracked_repositories
		WHERE (sync_status NOT IN ($1, $2) AND (last_sync_at IS NULL OR last_sync_at < $3))
		   OR (sync_status = $1 AND updated_at < $4)
		ORDER BY last_sync_at ASC NULLS FIRST`, columnsStr, r.schema)

	repos := []*models.TrackedRepository{}
	q := dbtx.GetTransactional(ctx, r.db)
	err := q.SelectContext(ctx, &repos, query,
		models.SyncStatusSyncing, models.SyncStatusErrorFatal, cutoff, reclaimBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories due for sync: %w", err)
	}

	return repos, nil
}

// MigrateToInstallation repoints every repository referencing the old
// installation record to the new one. Part of reinstall handling.
func (r *PostgresTrackedRepositoriesRepository) MigrateToInstallation(
	ctx context.Context,
	oldInstallationID, newInstallationID string,
) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s.tracked_repositories
		SET installation_id = $2, updated_at = NOW()
		WHERE installation_id = $1`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	result, err := q.ExecContext(ctx, query, oldInstallationID, newInstallationID)
	if err != nil {
		return 0, fmt.Errorf("failed to migrate tracked repositories: %w", err)
	}

	migrated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return migrated, nil
}

func (r *PostgresTrackedRepositoriesRepository) UpdateSyncStatus(
	ctx context.Context,
	id string,
	status models.SyncStatus,
) error {
	query := fmt.Sprintf(`
		UPDATE %s.tracked_repositories
		SET sync_status = $2, updated_at = NOW()
		WHERE id = $1`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tracked repository not found")
	}

	return nil
}

// MarkSyncComplete advances last_sync_at and clears any previous error.
func (r *PostgresTrackedRepositoriesRepository) MarkSyncComplete(
	ctx context.Context,
	id string,
	syncedAt time.Time,
) error {
	query := fmt.Sprintf(`
		UPDATE %s.tracked_repositories
		SET sync_status = $2, last_sync_at = $3, last_sync_error = NULL, updated_at = NOW()
		WHERE id = $1`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, models.SyncStatusComplete, syncedAt)
	if err != nil {
		return fmt.Errorf("failed to mark sync complete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tracked repository not found")
	}

	return nil
}

// MarkSyncError stores the user-visible error message for the failed run.
// last_sync_at is left untouched so the next run retries the same window.
// A fatal failure parks the row in error_fatal, taking it off the schedule.
func (r *PostgresTrackedRepositoriesRepository) MarkSyncError(
	ctx context.Context,
	id string,
	errorMessage string,
	fatal bool,
) error {
	status := models.SyncStatusError
	if fatal {
		status = models.SyncStatusErrorFatal
	}

	query := fmt.Sprintf(`
		UPDATE %s.tracked_repositories
		SET sync_status = $2, last_sync_error = $3, updated_at = NOW()
		WHERE id = $1`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark sync error: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tracked repository not found")
	}

	return nil
}

// RequeueFatalErrors returns fatally-errored repositories under the given
// installation to the pending state. Called when a lifecycle event makes the
// installation usable again.
func (r *PostgresTrackedRepositoriesRepository) RequeueFatalErrors(
	ctx context.Context,
	installationID string,
) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s.tracked_repositories
		SET sync_status = $2, last_sync_error = NULL, updated_at = NOW()
		WHERE installation_id = $1 AND sync_status = $3`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	result, err := q.ExecContext(ctx, query, installationID, models.SyncStatusPending, models.SyncStatusErrorFatal)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue fatally-errored repositories: %w", err)
	}

	requeued, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return requeued, nil
}

func (r *PostgresTrackedRepositoriesRepository) DeleteTrackedRepository(
	ctx context.Context,
	tenantID models.TenantID,
	id string,
) error {
	if tenantID == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if id == "" {
		return fmt.Errorf("repository ID cannot be empty")
	}

	query := fmt.Sprintf(`
		DELETE FROM %s.tracked_repositories
		WHERE id = $1 AND tenant_id = $2`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete tracked repository: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tracked repository not found")
	}

	return nil
}
