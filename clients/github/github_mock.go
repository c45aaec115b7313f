package github

import (
	"context"

	gogithub "github.com/google/go-github/v80/github"
	"github.com/stretchr/testify/mock"

	"gitpulse/clients"
)

// MockGitHubClient is a mock implementation of the clients.GitHubClient interface
type MockGitHubClient struct {
	mock.Mock
}

func (m *MockGitHubClient) CreateInstallationToken(
	ctx context.Context,
	githubInstallationID int64,
) (*clients.InstallationToken, error) {
	args := m.Called(ctx, githubInstallationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.InstallationToken), args.Error(1)
}

func (m *MockGitHubClient) ListPullRequests(
	ctx context.Context,
	token, owner, repo string,
	page int,
) ([]*gogithub.PullRequest, int, error) {
	args := m.Called(ctx, token, owner, repo, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*gogithub.PullRequest), args.Int(1), args.Error(2)
}

func (m *MockGitHubClient) ExchangeCodeForAccessToken(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func (m *MockGitHubClient) GetAuthenticatedLogin(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}
