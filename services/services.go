package services

import (
	"context"
	"time"

	"github.com/google/go-github/v80/github"
	"github.com/samber/mo"

	"gitpulse/models"
)

// TransactionManager defines the interface for transaction lifecycle operations
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

// TenantsService defines the interface for tenant-related operations
type TenantsService interface {
	CreateTenant(ctx context.Context, name string) (*models.Tenant, error)
	GetTenantByID(ctx context.Context, id models.TenantID) (mo.Option[*models.Tenant], error)
}

// InstallationsService owns the installation lifecycle state machine and the
// refresh-or-reuse decision for installation access tokens.
type InstallationsService interface {
	// HandleInstallationCreated processes an installation.created delivery,
	// including reinstall migration. Safe to invoke more than once per event.
	HandleInstallationCreated(ctx context.Context, event *models.InstallationEvent) (*models.Installation, error)
	HandleInstallationSuspended(ctx context.Context, githubInstallationID int64) error
	HandleInstallationUnsuspended(ctx context.Context, githubInstallationID int64) error
	HandleInstallationDeleted(ctx context.Context, githubInstallationID int64) error

	// GetAccessToken returns a usable installation token, refreshing it under
	// a row-scoped lock when close to expiry. Returns a typed
	// InstallationDeactivatedError when the installation cannot issue tokens.
	GetAccessToken(ctx context.Context, installationID string) (string, error)

	GetInstallationByID(ctx context.Context, id string) (mo.Option[*models.Installation], error)
	GetInstallationByGitHubID(ctx context.Context, githubInstallationID int64) (mo.Option[*models.Installation], error)
	AttachTenant(ctx context.Context, githubInstallationID int64, tenantID models.TenantID) error

	// DeactivateInstallation marks the installation removed. Called as a side
	// effect when the external API reports the installation's auth revoked.
	DeactivateInstallation(ctx context.Context, id string) error
}

// OAuthCredentialsService defines the interface for fallback credential operations
type OAuthCredentialsService interface {
	CreateOAuthCredential(
		ctx context.Context,
		tenantID models.TenantID,
		githubLogin, accessToken string,
	) (*models.OAuthCredential, error)
	GetOAuthCredentialByID(ctx context.Context, id string) (mo.Option[*models.OAuthCredential], error)
	RevokeOAuthCredential(ctx context.Context, id string, reason string) error
}

// TrackedRepositoriesService defines the interface for tracked repository operations
type TrackedRepositoriesService interface {
	CreateTrackedRepository(
		ctx context.Context,
		tenantID models.TenantID,
		fullName string,
		installationID, oauthCredentialID *string,
	) (*models.TrackedRepository, error)
	GetRepositoryByID(ctx context.Context, id string) (mo.Option[*models.TrackedRepository], error)
	GetRepositoryByFullName(
		ctx context.Context,
		tenantID models.TenantID,
		fullName string,
	) (mo.Option[*models.TrackedRepository], error)
	ListRepositoriesDueForSync(ctx context.Context, staleAfter time.Duration) ([]*models.TrackedRepository, error)
	MarkSyncStarted(ctx context.Context, id string) error
	MarkSyncComplete(ctx context.Context, id string, syncedAt time.Time) error
	// MarkSyncError records a failed run. Fatal failures are taken off the
	// schedule until user action resolves them.
	MarkSyncError(ctx context.Context, id string, errorMessage string, fatal bool) error
}

// PullRequestsService persists synced pull-request records for the downstream
// metrics layer (eventually consistent, last-write-wins per record identity).
type PullRequestsService interface {
	RecordPullRequest(ctx context.Context, repositoryID string, pr *github.PullRequest) (*models.PullRequest, error)
	CountByRepositoryID(ctx context.Context, repositoryID string) (int, error)
}
