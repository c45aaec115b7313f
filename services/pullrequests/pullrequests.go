package pullrequests

import (
	"context"
	"fmt"
	"log"

	"github.com/google/go-github/v80/github"

	"gitpulse/core"
	"gitpulse/db"
	"gitpulse/models"
)

type PullRequestsService struct {
	pullRequestsRepo *db.PostgresPullRequestsRepository
}

func NewPullRequestsService(repo *db.PostgresPullRequestsRepository) *PullRequestsService {
	return &PullRequestsService{pullRequestsRepo: repo}
}

// RecordPullRequest upserts one fetched pull request as a local record.
// Last write wins per (repository, PR number) - the downstream metrics layer
// requires no ordering guarantee.
func (s *PullRequestsService) RecordPullRequest(
	ctx context.Context,
	repositoryID string,
	pr *github.PullRequest,
) (*models.PullRequest, error) {
	if pr.GetNumber() == 0 {
		return nil, fmt.Errorf("pull request has no number")
	}

	record := &models.PullRequest{
		ID:              core.NewID("pr"),
		RepositoryID:    repositoryID,
		GitHubPRNumber:  pr.GetNumber(),
		Title:           pr.GetTitle(),
		AuthorLogin:     pr.GetUser().GetLogin(),
		State:           pr.GetState(),
		Additions:       pr.GetAdditions(),
		Deletions:       pr.GetDeletions(),
		GitHubCreatedAt: pr.GetCreatedAt().Time,
		GitHubUpdatedAt: pr.GetUpdatedAt().Time,
	}
	if mergedAt := pr.GetMergedAt(); !mergedAt.IsZero() {
		t := mergedAt.Time
		record.MergedAt = &t
	}

	if err := s.pullRequestsRepo.UpsertPullRequest(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record pull request: %w", err)
	}

	return record, nil
}

func (s *PullRequestsService) CountByRepositoryID(ctx context.Context, repositoryID string) (int, error) {
	log.Printf("📋 Starting to count pull requests for repository: %s", repositoryID)

	count, err := s.pullRequestsRepo.CountByRepositoryID(ctx, repositoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to count pull requests: %w", err)
	}

	log.Printf("📋 Completed successfully - repository %s has %d pull requests", repositoryID, count)
	return count, nil
}
