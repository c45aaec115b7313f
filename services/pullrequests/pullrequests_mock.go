package pullrequests

import (
	"context"

	"github.com/google/go-github/v80/github"
	"github.com/stretchr/testify/mock"

	"gitpulse/models"
)

// MockPullRequestsService is a mock implementation of the services.PullRequestsService interface
type MockPullRequestsService struct {
	mock.Mock
}

func (m *MockPullRequestsService) RecordPullRequest(
	ctx context.Context,
	repositoryID string,
	pr *github.PullRequest,
) (*models.PullRequest, error) {
	args := m.Called(ctx, repositoryID, pr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PullRequest), args.Error(1)
}

func (m *MockPullRequestsService) CountByRepositoryID(ctx context.Context, repositoryID string) (int, error) {
	args := m.Called(ctx, repositoryID)
	return args.Int(0), args.Error(1)
}
