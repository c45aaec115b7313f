package testutils

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"gitpulse/config"
	"gitpulse/core"
	"gitpulse/db"
	"gitpulse/models"
)

// LoadTestConfig loads configuration for tests from environment variables
func LoadTestConfig() (*config.AppConfig, error) {
	// Try to load environment variables from various possible locations
	_ = godotenv.Load("../.env.test") // From services/ directory
	_ = godotenv.Load(".env.test")    // From root directory
	_ = godotenv.Load()               // Default .env file

	databaseURL := os.Getenv("DB_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}

	databaseSchema := os.Getenv("DB_SCHEMA")
	if databaseSchema == "" {
		return nil, fmt.Errorf("DB_SCHEMA is not set")
	}

	return &config.AppConfig{
		DatabaseURL:    databaseURL,
		DatabaseSchema: databaseSchema,
	}, nil
}

// CreateTestTenant creates a tenant with a unique name to avoid collisions
// between parallel test runs.
func CreateTestTenant(t *testing.T, tenantsRepo *db.PostgresTenantsRepository) *models.Tenant {
	tenant := &models.Tenant{
		ID:   models.TenantID(core.NewID("t")),
		Name: "test-tenant-" + uuid.New().String(),
	}
	err := tenantsRepo.CreateTenant(context.Background(), tenant)
	require.NoError(t, err, "Failed to create test tenant")
	return tenant
}

// UniqueGitHubID returns an id suitable for github_installation_id or
// account_id columns that will not collide with other test fixtures.
func UniqueGitHubID() int64 {
	// uuid.ID() yields a 32-bit value; shifted to keep clear of real-world ids
	return int64(uuid.New().ID()) + (1 << 33)
}

// CreateTestInstallation inserts an active installation with unique github ids.
func CreateTestInstallation(
	t *testing.T,
	installationsRepo *db.PostgresInstallationsRepository,
) *models.Installation {
	installation := &models.Installation{
		ID:                   core.NewID("inst"),
		GitHubInstallationID: UniqueGitHubID(),
		AccountType:          models.AccountTypeOrganization,
		AccountLogin:         "test-org-" + uuid.New().String(),
		AccountID:            UniqueGitHubID(),
		IsActive:             true,
	}
	err := installationsRepo.UpsertInstallation(context.Background(), installation)
	require.NoError(t, err, "Failed to create test installation")
	return installation
}

// CreateTestTrackedRepository inserts a pending repository bound to the given
// tenant and installation.
func CreateTestTrackedRepository(
	t *testing.T,
	trackedReposRepo *db.PostgresTrackedRepositoriesRepository,
	tenantID models.TenantID,
	installationID *string,
) *models.TrackedRepository {
	repo := &models.TrackedRepository{
		ID:             core.NewID("repo"),
		FullName:       fmt.Sprintf("test-org/repo-%s", uuid.New().String()),
		TenantID:       tenantID,
		InstallationID: installationID,
		SyncStatus:     models.SyncStatusPending,
	}
	err := trackedReposRepo.CreateTrackedRepository(context.Background(), repo)
	require.NoError(t, err, "Failed to create test tracked repository")
	return repo
}

// CleanupTestTenant deletes a tenant and everything hanging off it. Returns a
// func suitable for defer.
func CleanupTestTenant(t *testing.T, dbConn *sqlx.DB, schema string, tenantID models.TenantID) func() {
	return func() {
		cleanupRows(t, dbConn, fmt.Sprintf("DELETE FROM %s.pull_requests WHERE repository_id IN (SELECT id FROM %s.tracked_repositories WHERE tenant_id = $1)", schema, schema), string(tenantID))
		cleanupRows(t, dbConn, fmt.Sprintf("DELETE FROM %s.tracked_repositories WHERE tenant_id = $1", schema), string(tenantID))
		cleanupRows(t, dbConn, fmt.Sprintf("DELETE FROM %s.oauth_credentials WHERE tenant_id = $1", schema), string(tenantID))
		cleanupRows(t, dbConn, fmt.Sprintf("DELETE FROM %s.installations WHERE tenant_id = $1", schema), string(tenantID))
		cleanupRows(t, dbConn, fmt.Sprintf("DELETE FROM %s.tenants WHERE id = $1", schema), string(tenantID))
	}
}

// CleanupTestInstallation deletes an installation row and its tracked
// repositories. Returns a func suitable for defer.
func CleanupTestInstallation(t *testing.T, dbConn *sqlx.DB, schema string, installationID string) func() {
	return func() {
		cleanupRows(t, dbConn, fmt.Sprintf("DELETE FROM %s.pull_requests WHERE repository_id IN (SELECT id FROM %s.tracked_repositories WHERE installation_id = $1)", schema, schema), installationID)
		cleanupRows(t, dbConn, fmt.Sprintf("DELETE FROM %s.tracked_repositories WHERE installation_id = $1", schema), installationID)
		cleanupRows(t, dbConn, fmt.Sprintf("DELETE FROM %s.installations WHERE id = $1", schema), installationID)
	}
}

// CleanupInstallationsByAccountID deletes all installation rows for a test
// account, including records retired by reinstall handling.
func CleanupInstallationsByAccountID(t *testing.T, dbConn *sqlx.DB, schema string, accountID int64) func() {
	return func() {
		cleanupRows(t, dbConn, fmt.Sprintf("DELETE FROM %s.tracked_repositories WHERE installation_id IN (SELECT id FROM %s.installations WHERE account_id = $1)", schema, schema), accountID)
		cleanupRows(t, dbConn, fmt.Sprintf("DELETE FROM %s.installations WHERE account_id = $1", schema), accountID)
	}
}

func cleanupRows(t *testing.T, dbConn *sqlx.DB, query string, arg any) {
	if _, err := dbConn.Exec(query, arg); err != nil {
		t.Logf("⚠️ Failed to clean up test rows: %v", err)
	}
}
