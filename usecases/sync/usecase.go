package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/go-github/v80/github"

	"gitpulse/clients"
	"gitpulse/core"
	"gitpulse/models"
	"gitpulse/services"
)

// DefaultFullSyncLookback bounds the historical window of a first sync.
const DefaultFullSyncLookback = 90 * 24 * time.Hour

// SyncUseCase is the top-level sync entry point invoked by the scheduler.
// One invocation syncs one repository end to end.
type SyncUseCase struct {
	githubClient         clients.GitHubClient
	installationsService services.InstallationsService
	credentialsService   services.OAuthCredentialsService
	reposService         services.TrackedRepositoriesService
	pullRequestsService  services.PullRequestsService
	executor             *RetryExecutor
	lookback             time.Duration
}

func NewSyncUseCase(
	githubClient clients.GitHubClient,
	installationsService services.InstallationsService,
	credentialsService services.OAuthCredentialsService,
	reposService services.TrackedRepositoriesService,
	pullRequestsService services.PullRequestsService,
	executor *RetryExecutor,
	lookback time.Duration,
) *SyncUseCase {
	if lookback <= 0 {
		lookback = DefaultFullSyncLookback
	}
	return &SyncUseCase{
		githubClient:         githubClient,
		installationsService: installationsService,
		credentialsService:   credentialsService,
		reposService:         reposService,
		pullRequestsService:  pullRequestsService,
		executor:             executor,
		lookback:             lookback,
	}
}

// SyncRepository syncs one repository: full (bounded lookback) when it never
// synced, incremental since last_sync_at otherwise. On success last_sync_at
// advances and last_sync_error clears; on failure the error message is
// persisted and rescheduling is left to the scheduler (transient) or the user
// (fatal).
func (u *SyncUseCase) SyncRepository(ctx context.Context, repositoryID string) (*models.SyncResult, error) {
	log.Printf("📋 Starting to sync repository: %s", repositoryID)

	maybeRepo, err := u.reposService.GetRepositoryByID(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	if !maybeRepo.IsPresent() {
		return nil, fmt.Errorf("repository %s: %w", repositoryID, core.ErrNotFound)
	}
	repo := maybeRepo.MustGet()

	syncType := models.SyncTypeIncremental
	var since time.Time
	if repo.LastSyncAt == nil {
		syncType = models.SyncTypeFull
		since = time.Now().Add(-u.lookback)
	} else {
		since = *repo.LastSyncAt
	}
	log.Printf("🔄 Running %s sync for %s since %s", syncType, repo.FullName, since.Format(time.RFC3339))

	if err := u.reposService.MarkSyncStarted(ctx, repo.ID); err != nil {
		return nil, fmt.Errorf("failed to mark sync started: %w", err)
	}

	result, err := u.runSync(ctx, repo, syncType, since)
	if err != nil {
		u.recordFailure(ctx, repo, err)
		return nil, err
	}

	finishedAt := time.Now()
	if err := u.reposService.MarkSyncComplete(ctx, repo.ID, finishedAt); err != nil {
		return nil, fmt.Errorf("failed to mark sync complete: %w", err)
	}
	result.FinishedAt = finishedAt

	log.Printf("📋 Completed successfully - synced %d pull requests across %d pages for %s",
		result.PullRequests, result.PagesFetched, repo.FullName)
	return result, nil
}

func (u *SyncUseCase) runSync(
	ctx context.Context,
	repo *models.TrackedRepository,
	syncType models.SyncType,
	since time.Time,
) (*models.SyncResult, error) {
	result := &models.SyncResult{
		RepositoryID: repo.ID,
		FullName:     repo.FullName,
		SyncType:     syncType,
		StartedAt:    time.Now(),
	}

	owner, name := repo.Owner(), repo.Name()
	if owner == "" || name == "" {
		return nil, fmt.Errorf("repository full name %q is not owner/name", repo.FullName)
	}

	operation := fmt.Sprintf("list_pull_requests:%s", repo.FullName)
	page := 1
	for {
		// Installation tokens are short-lived and a multi-page sync can outlive
		// one, so the credential is re-resolved before every page instead of
		// being held across the whole run. This is also the checkpoint where a
		// webhook-driven deactivation is observed mid-sync.
		credential, err := u.resolveCredential(ctx, repo)
		if err != nil {
			return nil, err
		}

		var prs []*github.PullRequest
		var nextPage int
		err = u.executor.Execute(ctx, operation, func(callCtx context.Context) error {
			var callErr error
			prs, nextPage, callErr = u.githubClient.ListPullRequests(callCtx, credential.Token, owner, name, page)
			return callErr
		})
		if err != nil {
			if core.IsAuthRevoked(err) {
				u.revokeCredentialSource(ctx, repo, credential, err)
			}
			return nil, err
		}

		// Pages arrive ordered by most recently updated, so the first item
		// older than the since boundary ends the walk.
		reachedBoundary := false
		for _, pr := range prs {
			if pr.GetUpdatedAt().Time.Before(since) {
				reachedBoundary = true
				break
			}
			if _, err := u.pullRequestsService.RecordPullRequest(ctx, repo.ID, pr); err != nil {
				return nil, fmt.Errorf("failed to record pull request: %w", err)
			}
			result.PullRequests++
		}
		result.PagesFetched++

		if reachedBoundary || nextPage == 0 {
			break
		}
		page = nextPage
	}

	return result, nil
}

// recordFailure persists the user-visible error string on the repository.
// Fatal errors park the repository off the schedule until user action resolves
// them; transient ones are picked up again by the scheduler.
func (u *SyncUseCase) recordFailure(ctx context.Context, repo *models.TrackedRepository, cause error) {
	fatal := core.IsFatalSyncError(cause)
	if err := u.reposService.MarkSyncError(ctx, repo.ID, cause.Error(), fatal); err != nil {
		log.Printf("❌ Failed to persist sync error for repository %s: %v", repo.ID, err)
	}

	if fatal {
		log.Printf("❌ Sync for %s failed permanently, user action required: %v", repo.FullName, cause)
	} else {
		log.Printf("⚠️ Sync for %s failed, scheduler will retry: %v", repo.FullName, cause)
	}
}

// revokeCredentialSource marks the credential that produced a 401 unusable so
// subsequent syncs fail fast with an actionable error instead of hammering the API.
func (u *SyncUseCase) revokeCredentialSource(
	ctx context.Context,
	repo *models.TrackedRepository,
	credential *models.ResolvedCredential,
	cause error,
) {
	switch credential.Source {
	case models.CredentialSourceInstallation:
		if repo.InstallationID != nil {
			if err := u.installationsService.DeactivateInstallation(ctx, *repo.InstallationID); err != nil {
				log.Printf("❌ Failed to deactivate installation %s: %v", *repo.InstallationID, err)
			}
		}
	case models.CredentialSourceOAuth:
		if repo.OAuthCredentialID != nil {
			if err := u.credentialsService.RevokeOAuthCredential(ctx, *repo.OAuthCredentialID, cause.Error()); err != nil {
				log.Printf("❌ Failed to revoke oauth credential %s: %v", *repo.OAuthCredentialID, err)
			}
		}
	}
}
