package pullrequests

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-github/v80/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitpulse/db"
	"gitpulse/testutils"
)

func setupService(t *testing.T) (*PullRequestsService, func(t *testing.T) string) {
	cfg, err := testutils.LoadTestConfig()
	require.NoError(t, err)

	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { dbConn.Close() })

	pullRequestsRepo := db.NewPostgresPullRequestsRepository(dbConn, cfg.DatabaseSchema)
	tenantsRepo := db.NewPostgresTenantsRepository(dbConn, cfg.DatabaseSchema)
	installationsRepo := db.NewPostgresInstallationsRepository(dbConn, cfg.DatabaseSchema)
	trackedReposRepo := db.NewPostgresTrackedRepositoriesRepository(dbConn, cfg.DatabaseSchema)

	newRepositoryID := func(t *testing.T) string {
		tenant := testutils.CreateTestTenant(t, tenantsRepo)
		installation := testutils.CreateTestInstallation(t, installationsRepo)
		t.Cleanup(testutils.CleanupTestTenant(t, dbConn, cfg.DatabaseSchema, tenant.ID))
		t.Cleanup(testutils.CleanupTestInstallation(t, dbConn, cfg.DatabaseSchema, installation.ID))
		repo := testutils.CreateTestTrackedRepository(t, trackedReposRepo, tenant.ID, &installation.ID)
		return repo.ID
	}

	return NewPullRequestsService(pullRequestsRepo), newRepositoryID
}

func TestPullRequestsService_RecordPullRequest_MapsFields(t *testing.T) {
	service, newRepositoryID := setupService(t)
	ctx := context.Background()
	repositoryID := newRepositoryID(t)

	createdAt := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	updatedAt := time.Now().Add(-1 * time.Hour).Truncate(time.Second)
	mergedAt := time.Now().Add(-2 * time.Hour).Truncate(time.Second)

	record, err := service.RecordPullRequest(ctx, repositoryID, &github.PullRequest{
		Number:    github.Ptr(42),
		Title:     github.Ptr("Add rate limiting"),
		State:     github.Ptr("closed"),
		User:      &github.User{Login: github.Ptr("octocat")},
		Additions: github.Ptr(120),
		Deletions: github.Ptr(15),
		CreatedAt: &github.Timestamp{Time: createdAt},
		UpdatedAt: &github.Timestamp{Time: updatedAt},
		MergedAt:  &github.Timestamp{Time: mergedAt},
	})

	require.NoError(t, err)
	assert.Equal(t, 42, record.GitHubPRNumber)
	assert.Equal(t, "Add rate limiting", record.Title)
	assert.Equal(t, "octocat", record.AuthorLogin)
	assert.Equal(t, "closed", record.State)
	assert.Equal(t, 120, record.Additions)
	assert.Equal(t, 15, record.Deletions)
	require.NotNil(t, record.MergedAt)
	assert.WithinDuration(t, mergedAt, *record.MergedAt, time.Second)
}

func TestPullRequestsService_RecordPullRequest_UpsertIsLastWriteWins(t *testing.T) {
	service, newRepositoryID := setupService(t)
	ctx := context.Background()
	repositoryID := newRepositoryID(t)

	pr := &github.PullRequest{
		Number:    github.Ptr(7),
		Title:     github.Ptr("WIP"),
		State:     github.Ptr("open"),
		UpdatedAt: &github.Timestamp{Time: time.Now().Add(-1 * time.Hour)},
	}
	_, err := service.RecordPullRequest(ctx, repositoryID, pr)
	require.NoError(t, err)

	// the same PR arrives again after being merged
	pr.Title = github.Ptr("Finished")
	pr.State = github.Ptr("closed")
	pr.UpdatedAt = &github.Timestamp{Time: time.Now()}
	updated, err := service.RecordPullRequest(ctx, repositoryID, pr)
	require.NoError(t, err)
	assert.Equal(t, "Finished", updated.Title)

	count, err := service.CountByRepositoryID(ctx, repositoryID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-recording the same PR number must not create a second row")
}

func TestPullRequestsService_RecordPullRequest_RejectsMissingNumber(t *testing.T) {
	service, _ := setupService(t)

	_, err := service.RecordPullRequest(context.Background(), "repo_x", &github.PullRequest{})
	assert.ErrorContains(t, err, "no number")
}
