package repositories

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/samber/mo"

	"gitpulse/core"
	"gitpulse/db"
	"gitpulse/models"
)

type TrackedRepositoriesService struct {
	trackedReposRepo *db.PostgresTrackedRepositoriesRepository
}

func NewTrackedRepositoriesService(repo *db.PostgresTrackedRepositoriesRepository) *TrackedRepositoriesService {
	return &TrackedRepositoriesService{trackedReposRepo: repo}
}

func (s *TrackedRepositoriesService) CreateTrackedRepository(
	ctx context.Context,
	tenantID models.TenantID,
	fullName string,
	installationID, oauthCredentialID *string,
) (*models.TrackedRepository, error) {
	log.Printf("📋 Starting to create tracked repository %s for tenant: %s", fullName, tenantID)

	if !core.IsValidULID(string(tenantID)) {
		return nil, fmt.Errorf("tenant ID must be a valid ULID")
	}
	if !strings.Contains(fullName, "/") {
		return nil, fmt.Errorf("repository full name must be owner/name, got: %s", fullName)
	}
	if installationID == nil && oauthCredentialID == nil {
		return nil, fmt.Errorf("repository must reference an installation or an oauth credential")
	}

	repo := &models.TrackedRepository{
		ID:                core.NewID("repo"),
		FullName:          fullName,
		TenantID:          tenantID,
		InstallationID:    installationID,
		OAuthCredentialID: oauthCredentialID,
		SyncStatus:        models.SyncStatusPending,
	}

	if err := s.trackedReposRepo.CreateTrackedRepository(ctx, repo); err != nil {
		return nil, fmt.Errorf("failed to create tracked repository: %w", err)
	}

	log.Printf("📋 Completed successfully - created tracked repository with ID: %s", repo.ID)
	return repo, nil
}

func (s *TrackedRepositoriesService) GetRepositoryByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.TrackedRepository], error) {
	log.Printf("📋 Starting to get tracked repository by ID: %s", id)
	if !core.IsValidULID(id) {
		return mo.None[*models.TrackedRepository](), fmt.Errorf("repository ID must be a valid ULID")
	}

	repo, err := s.trackedReposRepo.GetRepositoryByID(ctx, id)
	if err != nil {
		return mo.None[*models.TrackedRepository](), fmt.Errorf("failed to get tracked repository: %w", err)
	}

	log.Printf("📋 Completed successfully - looked up tracked repository with ID: %s", id)
	return repo, nil
}

func (s *TrackedRepositoriesService) GetRepositoryByFullName(
	ctx context.Context,
	tenantID models.TenantID,
	fullName string,
) (mo.Option[*models.TrackedRepository], error) {
	log.Printf("📋 Starting to get tracked repository by full name: %s", fullName)

	repo, err := s.trackedReposRepo.GetRepositoryByFullName(ctx, tenantID, fullName)
	if err != nil {
		return mo.None[*models.TrackedRepository](), fmt.Errorf("failed to get tracked repository by full name: %w", err)
	}

	log.Printf("📋 Completed successfully - looked up tracked repository: %s", fullName)
	return repo, nil
}

// syncingReclaimAfter is how long a repository may sit in the syncing state
// before it is assumed abandoned by a crashed worker and handed out again.
const syncingReclaimAfter = 30 * time.Minute

// ListRepositoriesDueForSync returns repositories whose last successful sync
// is older than staleAfter. Rows mid-sync and rows parked on a fatal error
// are skipped; stale syncing rows are reclaimed.
func (s *TrackedRepositoriesService) ListRepositoriesDueForSync(
	ctx context.Context,
	staleAfter time.Duration,
) ([]*models.TrackedRepository, error) {
	log.Printf("📋 Starting to list repositories due for sync")

	cutoff := time.Now().Add(-staleAfter)
	reclaimBefore := time.Now().Add(-syncingReclaimAfter)
	repos, err := s.trackedReposRepo.ListRepositoriesDueForSync(ctx, cutoff, reclaimBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories due for sync: %w", err)
	}

	log.Printf("📋 Completed successfully - found %d repositories due for sync", len(repos))
	return repos, nil
}

func (s *TrackedRepositoriesService) MarkSyncStarted(ctx context.Context, id string) error {
	log.Printf("📋 Starting to mark sync started for repository: %s", id)

	if err := s.trackedReposRepo.UpdateSyncStatus(ctx, id, models.SyncStatusSyncing); err != nil {
		return fmt.Errorf("failed to mark sync started: %w", err)
	}

	log.Printf("📋 Completed successfully - marked sync started for repository: %s", id)
	return nil
}

func (s *TrackedRepositoriesService) MarkSyncComplete(ctx context.Context, id string, syncedAt time.Time) error {
	log.Printf("📋 Starting to mark sync complete for repository: %s", id)

	if err := s.trackedReposRepo.MarkSyncComplete(ctx, id, syncedAt); err != nil {
		return fmt.Errorf("failed to mark sync complete: %w", err)
	}

	log.Printf("📋 Completed successfully - marked sync complete for repository: %s", id)
	return nil
}

func (s *TrackedRepositoriesService) MarkSyncError(ctx context.Context, id string, errorMessage string, fatal bool) error {
	log.Printf("📋 Starting to mark sync error for repository: %s", id)
	if errorMessage == "" {
		return fmt.Errorf("error message cannot be empty")
	}

	if err := s.trackedReposRepo.MarkSyncError(ctx, id, errorMessage, fatal); err != nil {
		return fmt.Errorf("failed to mark sync error: %w", err)
	}

	log.Printf("📋 Completed successfully - marked sync error for repository: %s", id)
	return nil
}
