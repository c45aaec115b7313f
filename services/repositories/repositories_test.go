package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitpulse/db"
	"gitpulse/models"
	"gitpulse/testutils"
)

type testEnv struct {
	dbConn            *sqlx.DB
	schema            string
	trackedReposRepo  *db.PostgresTrackedRepositoriesRepository
	tenantsRepo       *db.PostgresTenantsRepository
	installationsRepo *db.PostgresInstallationsRepository
	service           *TrackedRepositoriesService
}

func setupTestEnv(t *testing.T) *testEnv {
	cfg, err := testutils.LoadTestConfig()
	require.NoError(t, err)

	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { dbConn.Close() })

	trackedReposRepo := db.NewPostgresTrackedRepositoriesRepository(dbConn, cfg.DatabaseSchema)

	return &testEnv{
		dbConn:            dbConn,
		schema:            cfg.DatabaseSchema,
		trackedReposRepo:  trackedReposRepo,
		tenantsRepo:       db.NewPostgresTenantsRepository(dbConn, cfg.DatabaseSchema),
		installationsRepo: db.NewPostgresInstallationsRepository(dbConn, cfg.DatabaseSchema),
		service:           NewTrackedRepositoriesService(trackedReposRepo),
	}
}

// newFixtures creates a tenant and an installation and registers cleanup for
// both, including any tracked repositories created underneath them.
func (env *testEnv) newFixtures(t *testing.T) (*models.Tenant, *models.Installation) {
	tenant := testutils.CreateTestTenant(t, env.tenantsRepo)
	installation := testutils.CreateTestInstallation(t, env.installationsRepo)

	t.Cleanup(testutils.CleanupTestTenant(t, env.dbConn, env.schema, tenant.ID))
	t.Cleanup(testutils.CleanupTestInstallation(t, env.dbConn, env.schema, installation.ID))

	return tenant, installation
}

func TestTrackedRepositoriesService_CreateTrackedRepository(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tenant, installation := env.newFixtures(t)

	repo, err := env.service.CreateTrackedRepository(ctx, tenant.ID, "acme/api", &installation.ID, nil)

	require.NoError(t, err)
	assert.Equal(t, "acme/api", repo.FullName)
	assert.Equal(t, models.SyncStatusPending, repo.SyncStatus)
	assert.Nil(t, repo.LastSyncAt)
	assert.Equal(t, "acme", repo.Owner())
	assert.Equal(t, "api", repo.Name())
}

func TestTrackedRepositoriesService_CreateTrackedRepository_Validation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tenant, installation := env.newFixtures(t)

	_, err := env.service.CreateTrackedRepository(ctx, "not-a-ulid", "acme/api", &installation.ID, nil)
	assert.ErrorContains(t, err, "valid ULID")

	_, err = env.service.CreateTrackedRepository(ctx, tenant.ID, "no-slash", &installation.ID, nil)
	assert.ErrorContains(t, err, "owner/name")

	_, err = env.service.CreateTrackedRepository(ctx, tenant.ID, "acme/api", nil, nil)
	assert.ErrorContains(t, err, "installation or an oauth credential")
}

func TestTrackedRepositoriesService_SyncStatusTransitions(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tenant, installation := env.newFixtures(t)
	repo := testutils.CreateTestTrackedRepository(t, env.trackedReposRepo, tenant.ID, &installation.ID)

	require.NoError(t, env.service.MarkSyncStarted(ctx, repo.ID))

	maybeRepo, err := env.service.GetRepositoryByID(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSyncing, maybeRepo.MustGet().SyncStatus)

	// a failed run records the message but keeps last_sync_at untouched
	require.NoError(t, env.service.MarkSyncError(ctx, repo.ID, "operation list failed", false))

	maybeRepo, err = env.service.GetRepositoryByID(ctx, repo.ID)
	require.NoError(t, err)
	failed := maybeRepo.MustGet()
	assert.Equal(t, models.SyncStatusError, failed.SyncStatus)
	require.NotNil(t, failed.LastSyncError)
	assert.Equal(t, "operation list failed", *failed.LastSyncError)
	assert.Nil(t, failed.LastSyncAt)

	// a successful run advances last_sync_at and clears the error
	syncedAt := time.Now()
	require.NoError(t, env.service.MarkSyncComplete(ctx, repo.ID, syncedAt))

	maybeRepo, err = env.service.GetRepositoryByID(ctx, repo.ID)
	require.NoError(t, err)
	completed := maybeRepo.MustGet()
	assert.Equal(t, models.SyncStatusComplete, completed.SyncStatus)
	assert.Nil(t, completed.LastSyncError)
	require.NotNil(t, completed.LastSyncAt)
	assert.WithinDuration(t, syncedAt, *completed.LastSyncAt, 2*time.Second)
}

func TestTrackedRepositoriesService_MarkSyncError_RequiresMessage(t *testing.T) {
	env := setupTestEnv(t)

	err := env.service.MarkSyncError(context.Background(), "repo_x", "", false)
	assert.ErrorContains(t, err, "error message cannot be empty")
}

func TestTrackedRepositoriesService_FatalErrorTakesRepositoryOffSchedule(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tenant, installation := env.newFixtures(t)
	repo := testutils.CreateTestTrackedRepository(t, env.trackedReposRepo, tenant.ID, &installation.ID)

	require.NoError(t, env.service.MarkSyncError(ctx, repo.ID, "no usable credential for acme/api", true))

	maybeRepo, err := env.service.GetRepositoryByID(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusErrorFatal, maybeRepo.MustGet().SyncStatus)

	// never synced, but user action is required before another attempt
	due, err := env.service.ListRepositoriesDueForSync(ctx, 5*time.Minute)
	require.NoError(t, err)
	for _, r := range due {
		assert.NotEqual(t, repo.ID, r.ID, "fatally-errored repository must not be due")
	}
}

func TestTrackedRepositoriesService_ReclaimsAbandonedSyncingRepository(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tenant, installation := env.newFixtures(t)
	repo := testutils.CreateTestTrackedRepository(t, env.trackedReposRepo, tenant.ID, &installation.ID)

	require.NoError(t, env.service.MarkSyncStarted(ctx, repo.ID))

	// backdate the row as if the worker process died an hour ago
	_, err := env.dbConn.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s.tracked_repositories SET updated_at = NOW() - interval '1 hour' WHERE id = $1`,
		env.schema), repo.ID)
	require.NoError(t, err)

	due, err := env.service.ListRepositoriesDueForSync(ctx, 5*time.Minute)
	require.NoError(t, err)

	found := false
	for _, r := range due {
		if r.ID == repo.ID {
			found = true
		}
	}
	assert.True(t, found, "repository stranded in syncing must become due again")
}

func TestTrackedRepositoriesService_ListRepositoriesDueForSync(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tenant, installation := env.newFixtures(t)

	neverSynced := testutils.CreateTestTrackedRepository(t, env.trackedReposRepo, tenant.ID, &installation.ID)
	recentlySynced := testutils.CreateTestTrackedRepository(t, env.trackedReposRepo, tenant.ID, &installation.ID)
	inFlight := testutils.CreateTestTrackedRepository(t, env.trackedReposRepo, tenant.ID, &installation.ID)

	require.NoError(t, env.service.MarkSyncComplete(ctx, recentlySynced.ID, time.Now()))
	require.NoError(t, env.service.MarkSyncStarted(ctx, inFlight.ID))

	due, err := env.service.ListRepositoriesDueForSync(ctx, 5*time.Minute)
	require.NoError(t, err)

	dueIDs := make(map[string]bool)
	for _, r := range due {
		dueIDs[r.ID] = true
	}
	assert.True(t, dueIDs[neverSynced.ID], "never-synced repository must be due")
	assert.False(t, dueIDs[recentlySynced.ID], "recently synced repository must not be due")
	assert.False(t, dueIDs[inFlight.ID], "repository mid-sync must be skipped")
}
