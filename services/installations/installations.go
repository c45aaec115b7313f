package installations

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"gitpulse/clients"
	"gitpulse/core"
	"gitpulse/db"
	"gitpulse/models"
	"gitpulse/opsnotif"
	"gitpulse/services"
)

// DefaultTokenRefreshMargin is how close to expiry a cached token may get
// before a refresh is triggered. Installation tokens live ~1 hour; refreshing
// 2 minutes early keeps a token valid across a full page fetch.
const DefaultTokenRefreshMargin = 2 * time.Minute

type InstallationsService struct {
	installationsRepo  *db.PostgresInstallationsRepository
	trackedReposRepo   *db.PostgresTrackedRepositoriesRepository
	githubClient       clients.GitHubClient
	txManager          services.TransactionManager
	tokenRefreshMargin time.Duration
}

func NewInstallationsService(
	installationsRepo *db.PostgresInstallationsRepository,
	trackedReposRepo *db.PostgresTrackedRepositoriesRepository,
	githubClient clients.GitHubClient,
	txManager services.TransactionManager,
	tokenRefreshMargin time.Duration,
) *InstallationsService {
	if tokenRefreshMargin <= 0 {
		tokenRefreshMargin = DefaultTokenRefreshMargin
	}
	return &InstallationsService{
		installationsRepo:  installationsRepo,
		trackedReposRepo:   trackedReposRepo,
		githubClient:       githubClient,
		txManager:          txManager,
		tokenRefreshMargin: tokenRefreshMargin,
	}
}

// GetAccessToken returns a usable installation access token.
//
// Fast path: re-read the row from durable storage (to catch webhook-driven
// deactivation) and reuse the cached token when it is active and not within
// the refresh margin of expiry.
//
// Slow path: take the row lock, re-check validity (a concurrent holder may
// have refreshed while we waited), and only then call out for a new token.
// Exactly one waiter performs the external call per refresh cycle.
func (s *InstallationsService) GetAccessToken(ctx context.Context, installationID string) (string, error) {
	log.Printf("📋 Starting to get access token for installation: %s", installationID)

	maybeInst, err := s.installationsRepo.GetInstallationByID(ctx, installationID)
	if err != nil {
		return "", fmt.Errorf("failed to get installation: %w", err)
	}
	if !maybeInst.IsPresent() {
		return "", fmt.Errorf("installation %s: %w", installationID, core.ErrNotFound)
	}

	installation := maybeInst.MustGet()
	if !installation.IsActive {
		return "", deactivatedError(installation)
	}
	if installation.HasValidToken(s.tokenRefreshMargin) {
		log.Printf("📋 Completed successfully - reusing cached token for installation: %s", installationID)
		return installation.CachedToken, nil
	}

	var token string
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		maybeLocked, err := s.installationsRepo.GetInstallationByIDForUpdate(txCtx, installationID)
		if err != nil {
			return fmt.Errorf("failed to lock installation: %w", err)
		}
		if !maybeLocked.IsPresent() {
			return fmt.Errorf("installation %s: %w", installationID, core.ErrNotFound)
		}

		locked := maybeLocked.MustGet()
		if !locked.IsActive {
			return deactivatedError(locked)
		}

		// Another holder may have refreshed while this caller waited on the lock
		if locked.HasValidToken(s.tokenRefreshMargin) {
			log.Printf("🔑 Token for installation %s already refreshed by concurrent holder", installationID)
			token = locked.CachedToken
			return nil
		}

		issued, err := s.githubClient.CreateInstallationToken(txCtx, locked.GitHubInstallationID)
		if err != nil {
			return fmt.Errorf("failed to issue installation token: %w", err)
		}

		if err := s.installationsRepo.UpdateInstallationToken(txCtx, installationID, issued.Token, issued.ExpiresAt); err != nil {
			return fmt.Errorf("failed to persist refreshed token: %w", err)
		}

		log.Printf("🔑 Issued fresh token for installation %s, expires at %s",
			installationID, issued.ExpiresAt.Format(time.RFC3339))
		token = issued.Token
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Printf("📋 Completed successfully - got access token for installation: %s", installationID)
	return token, nil
}

// HandleInstallationCreated processes an installation.created delivery.
//
// Three cases:
//   - a row for this github_installation_id exists: update it in place and
//     reactivate it (covers duplicate deliveries and re-created installations)
//   - a deactivated installation exists for the same account: reinstall. A new
//     record is created inheriting the old record's tenant, tracked
//     repositories are repointed, and the old record transitions to Removed
//   - otherwise: a fresh install (tenant unset until onboarding)
func (s *InstallationsService) HandleInstallationCreated(
	ctx context.Context,
	event *models.InstallationEvent,
) (*models.Installation, error) {
	log.Printf("📋 Starting to handle installation.created for github installation: %d", event.GitHubInstallationID)

	var result *models.Installation
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		maybeExisting, err := s.installationsRepo.GetInstallationByGitHubID(txCtx, event.GitHubInstallationID)
		if err != nil {
			return fmt.Errorf("failed to look up installation: %w", err)
		}

		if maybeExisting.IsPresent() {
			existing := maybeExisting.MustGet()
			if existing.AccountType != event.AccountType {
				log.Printf("⚠️ Account type changed for installation %d: %s -> %s",
					event.GitHubInstallationID, existing.AccountType, event.AccountType)
				opsnotif.Warn(
					fmt.Sprintf("installation %d (%s)", event.GitHubInstallationID, event.AccountLogin),
					fmt.Sprintf("Account type changed from %s to %s", existing.AccountType, event.AccountType),
				)
			}

			updated := &models.Installation{
				ID:                   existing.ID,
				GitHubInstallationID: event.GitHubInstallationID,
				AccountType:          event.AccountType,
				AccountLogin:         event.AccountLogin,
				AccountID:            event.AccountID,
				IsActive:             true,
				Permissions:          event.Permissions,
			}
			if err := s.installationsRepo.UpsertInstallation(txCtx, updated); err != nil {
				return err
			}

			// re-created installation can issue tokens again
			if err := s.requeueFatalErrored(txCtx, existing.ID); err != nil {
				return err
			}

			result = updated
			return nil
		}

		installation := &models.Installation{
			ID:                   core.NewID("inst"),
			GitHubInstallationID: event.GitHubInstallationID,
			AccountType:          event.AccountType,
			AccountLogin:         event.AccountLogin,
			AccountID:            event.AccountID,
			IsActive:             true,
			Permissions:          event.Permissions,
		}

		maybePrior, err := s.installationsRepo.GetLatestInactiveByAccountID(txCtx, event.AccountID)
		if err != nil {
			return fmt.Errorf("failed to look up prior installation: %w", err)
		}
		if maybePrior.IsPresent() {
			installation.TenantID = maybePrior.MustGet().TenantID
		}

		if err := s.installationsRepo.UpsertInstallation(txCtx, installation); err != nil {
			return err
		}

		if maybePrior.IsPresent() {
			prior := maybePrior.MustGet()
			migrated, err := s.trackedReposRepo.MigrateToInstallation(txCtx, prior.ID, installation.ID)
			if err != nil {
				return fmt.Errorf("failed to migrate tracked repositories: %w", err)
			}
			if err := s.installationsRepo.MarkRemovedByID(txCtx, prior.ID); err != nil {
				return fmt.Errorf("failed to retire prior installation: %w", err)
			}
			log.Printf("🔄 Reinstall for account %s: migrated %d repositories from %s to %s",
				event.AccountLogin, migrated, prior.ID, installation.ID)
			opsnotif.Warn(
				fmt.Sprintf("installation %d (%s)", event.GitHubInstallationID, event.AccountLogin),
				fmt.Sprintf("Reinstall detected, migrated %d tracked repositories", migrated),
			)

			if err := s.requeueFatalErrored(txCtx, installation.ID); err != nil {
				return err
			}
		}

		result = installation
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Completed successfully - handled installation.created for github installation: %d",
		event.GitHubInstallationID)
	return result, nil
}

// HandleInstallationSuspended transitions the installation to Suspended.
// A delivery for an unknown installation is a no-op (idempotency under
// at-least-once delivery).
func (s *InstallationsService) HandleInstallationSuspended(ctx context.Context, githubInstallationID int64) error {
	log.Printf("📋 Starting to handle installation.suspend for github installation: %d", githubInstallationID)

	if err := s.installationsRepo.MarkSuspended(ctx, githubInstallationID); err != nil {
		return fmt.Errorf("failed to suspend installation: %w", err)
	}

	log.Printf("📋 Completed successfully - suspended github installation: %d", githubInstallationID)
	return nil
}

// HandleInstallationUnsuspended transitions the installation back to Active
// and puts its fatally-errored repositories back on the sync schedule.
func (s *InstallationsService) HandleInstallationUnsuspended(ctx context.Context, githubInstallationID int64) error {
	log.Printf("📋 Starting to handle installation.unsuspend for github installation: %d", githubInstallationID)

	maybeInst, err := s.installationsRepo.GetInstallationByGitHubID(ctx, githubInstallationID)
	if err != nil {
		return fmt.Errorf("failed to look up installation: %w", err)
	}
	if !maybeInst.IsPresent() {
		log.Printf("⚠️ installation.unsuspend for unknown github installation %d, ignoring", githubInstallationID)
		return nil
	}

	if err := s.installationsRepo.MarkActive(ctx, githubInstallationID); err != nil {
		return fmt.Errorf("failed to unsuspend installation: %w", err)
	}

	if err := s.requeueFatalErrored(ctx, maybeInst.MustGet().ID); err != nil {
		return err
	}

	log.Printf("📋 Completed successfully - unsuspended github installation: %d", githubInstallationID)
	return nil
}

// HandleInstallationDeleted transitions the installation to Removed.
func (s *InstallationsService) HandleInstallationDeleted(ctx context.Context, githubInstallationID int64) error {
	log.Printf("📋 Starting to handle installation.deleted for github installation: %d", githubInstallationID)

	maybeInst, err := s.installationsRepo.GetInstallationByGitHubID(ctx, githubInstallationID)
	if err != nil {
		return fmt.Errorf("failed to look up installation: %w", err)
	}
	if !maybeInst.IsPresent() {
		log.Printf("⚠️ installation.deleted for unknown github installation %d, ignoring", githubInstallationID)
		return nil
	}

	if err := s.installationsRepo.MarkRemovedByID(ctx, maybeInst.MustGet().ID); err != nil {
		return fmt.Errorf("failed to remove installation: %w", err)
	}

	log.Printf("📋 Completed successfully - removed github installation: %d", githubInstallationID)
	return nil
}

func (s *InstallationsService) GetInstallationByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.Installation], error) {
	log.Printf("📋 Starting to get installation by ID: %s", id)
	if !core.IsValidULID(id) {
		return mo.None[*models.Installation](), fmt.Errorf("installation ID must be a valid ULID")
	}

	installation, err := s.installationsRepo.GetInstallationByID(ctx, id)
	if err != nil {
		return mo.None[*models.Installation](), fmt.Errorf("failed to get installation by ID: %w", err)
	}

	log.Printf("📋 Completed successfully - looked up installation with ID: %s", id)
	return installation, nil
}

func (s *InstallationsService) GetInstallationByGitHubID(
	ctx context.Context,
	githubInstallationID int64,
) (mo.Option[*models.Installation], error) {
	log.Printf("📋 Starting to get installation by github ID: %d", githubInstallationID)

	installation, err := s.installationsRepo.GetInstallationByGitHubID(ctx, githubInstallationID)
	if err != nil {
		return mo.None[*models.Installation](), fmt.Errorf("failed to get installation by github ID: %w", err)
	}

	log.Printf("📋 Completed successfully - looked up installation with github ID: %d", githubInstallationID)
	return installation, nil
}

// AttachTenant links the installation to the tenant completing onboarding.
func (s *InstallationsService) AttachTenant(
	ctx context.Context,
	githubInstallationID int64,
	tenantID models.TenantID,
) error {
	log.Printf("📋 Starting to attach tenant %s to github installation: %d", tenantID, githubInstallationID)
	if !core.IsValidULID(string(tenantID)) {
		return fmt.Errorf("tenant ID must be a valid ULID")
	}

	if err := s.installationsRepo.AttachTenant(ctx, githubInstallationID, tenantID); err != nil {
		return fmt.Errorf("failed to attach tenant: %w", err)
	}

	log.Printf("📋 Completed successfully - attached tenant %s to github installation: %d",
		tenantID, githubInstallationID)
	return nil
}

// DeactivateInstallation marks the installation removed. Used as the side
// effect when an API call reports this installation's credential revoked.
func (s *InstallationsService) DeactivateInstallation(ctx context.Context, id string) error {
	log.Printf("📋 Starting to deactivate installation: %s", id)

	if err := s.installationsRepo.MarkRemovedByID(ctx, id); err != nil {
		return fmt.Errorf("failed to deactivate installation: %w", err)
	}

	log.Printf("📋 Completed successfully - deactivated installation: %s", id)
	return nil
}

// requeueFatalErrored puts repositories parked on a fatal sync error back on
// the schedule once their installation can issue tokens again.
func (s *InstallationsService) requeueFatalErrored(ctx context.Context, installationID string) error {
	requeued, err := s.trackedReposRepo.RequeueFatalErrors(ctx, installationID)
	if err != nil {
		return fmt.Errorf("failed to requeue repositories: %w", err)
	}
	if requeued > 0 {
		log.Printf("🔄 Requeued %d repositories for sync under installation %s", requeued, installationID)
	}
	return nil
}

func deactivatedError(installation *models.Installation) error {
	return &core.InstallationDeactivatedError{
		InstallationID: installation.GitHubInstallationID,
		Suspended:      installation.SuspendedAt != nil,
	}
}
