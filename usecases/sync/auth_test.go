package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	githubclient "gitpulse/clients/github"
	"gitpulse/core"
	"gitpulse/models"
	"gitpulse/services/credentials"
	"gitpulse/services/installations"
	"gitpulse/services/pullrequests"
	"gitpulse/services/repositories"
)

type useCaseMocks struct {
	githubClient        *githubclient.MockGitHubClient
	installations       *installations.MockInstallationsService
	credentials         *credentials.MockOAuthCredentialsService
	repos               *repositories.MockTrackedRepositoriesService
	pullRequests        *pullrequests.MockPullRequestsService
	sleptBetweenRetries []time.Duration
}

func newTestUseCase(t *testing.T) (*SyncUseCase, *useCaseMocks) {
	m := &useCaseMocks{
		githubClient:  new(githubclient.MockGitHubClient),
		installations: new(installations.MockInstallationsService),
		credentials:   new(credentials.MockOAuthCredentialsService),
		repos:         new(repositories.MockTrackedRepositoriesService),
		pullRequests:  new(pullrequests.MockPullRequestsService),
	}

	executor := NewRetryExecutor(3, 1*time.Second)
	executor.sleep = func(d time.Duration) {
		m.sleptBetweenRetries = append(m.sleptBetweenRetries, d)
	}

	useCase := NewSyncUseCase(
		m.githubClient,
		m.installations,
		m.credentials,
		m.repos,
		m.pullRequests,
		executor,
		DefaultFullSyncLookback,
	)

	t.Cleanup(func() {
		m.githubClient.AssertExpectations(t)
		m.installations.AssertExpectations(t)
		m.credentials.AssertExpectations(t)
		m.repos.AssertExpectations(t)
		m.pullRequests.AssertExpectations(t)
	})

	return useCase, m
}

func strPtr(s string) *string { return &s }

func testRepo(installationID, oauthCredentialID *string) *models.TrackedRepository {
	return &models.TrackedRepository{
		ID:                "repo_01G0EZ1XTM37C5X11SQTDNCTM1",
		FullName:          "acme/api",
		TenantID:          "t_01G0EZ1XTM37C5X11SQTDNCTM2",
		InstallationID:    installationID,
		OAuthCredentialID: oauthCredentialID,
		SyncStatus:        models.SyncStatusPending,
	}
}

func TestResolveCredential_PrefersInstallationToken(t *testing.T) {
	useCase, m := newTestUseCase(t)
	repo := testRepo(strPtr("inst_1"), strPtr("ghcred_1"))

	m.installations.On("GetAccessToken", mock.Anything, "inst_1").Return("ghs_token", nil)

	cred, err := useCase.resolveCredential(context.Background(), repo)

	require.NoError(t, err)
	assert.Equal(t, "ghs_token", cred.Token)
	assert.Equal(t, models.CredentialSourceInstallation, cred.Source)
	// the oauth credential must not even be read
	m.credentials.AssertNotCalled(t, "GetOAuthCredentialByID", mock.Anything, mock.Anything)
}

func TestResolveCredential_FallsBackOnlyOnDeactivation(t *testing.T) {
	useCase, m := newTestUseCase(t)
	repo := testRepo(strPtr("inst_1"), strPtr("ghcred_1"))

	m.installations.On("GetAccessToken", mock.Anything, "inst_1").
		Return("", &core.InstallationDeactivatedError{InstallationID: 42, Suspended: true})
	m.credentials.On("GetOAuthCredentialByID", mock.Anything, "ghcred_1").
		Return(mo.Some(&models.OAuthCredential{
			ID:          "ghcred_1",
			AccessToken: "gho_token",
		}), nil)

	cred, err := useCase.resolveCredential(context.Background(), repo)

	require.NoError(t, err)
	assert.Equal(t, "gho_token", cred.Token)
	assert.Equal(t, models.CredentialSourceOAuth, cred.Source)
}

func TestResolveCredential_PropagatesNonDeactivationErrors(t *testing.T) {
	useCase, m := newTestUseCase(t)
	repo := testRepo(strPtr("inst_1"), strPtr("ghcred_1"))

	dbErr := errors.New("connection refused")
	m.installations.On("GetAccessToken", mock.Anything, "inst_1").Return("", dbErr)

	cred, err := useCase.resolveCredential(context.Background(), repo)

	require.Error(t, err)
	assert.Nil(t, cred)
	assert.ErrorIs(t, err, dbErr)
	// a transient installation failure must never silently switch auth source
	m.credentials.AssertNotCalled(t, "GetOAuthCredentialByID", mock.Anything, mock.Anything)
}

func TestResolveCredential_SkipsRevokedOAuthCredential(t *testing.T) {
	useCase, m := newTestUseCase(t)
	repo := testRepo(strPtr("inst_1"), strPtr("ghcred_1"))

	m.installations.On("GetAccessToken", mock.Anything, "inst_1").
		Return("", &core.InstallationDeactivatedError{InstallationID: 42})
	m.credentials.On("GetOAuthCredentialByID", mock.Anything, "ghcred_1").
		Return(mo.Some(&models.OAuthCredential{
			ID:          "ghcred_1",
			AccessToken: "gho_token",
			IsRevoked:   true,
		}), nil)

	cred, err := useCase.resolveCredential(context.Background(), repo)

	require.Error(t, err)
	assert.Nil(t, cred)
	assert.True(t, core.IsNoUsableCredential(err))
	assert.Contains(t, err.Error(), "acme/api")
}

func TestResolveCredential_NoCredentialsConfigured(t *testing.T) {
	useCase, _ := newTestUseCase(t)
	repo := testRepo(nil, nil)

	cred, err := useCase.resolveCredential(context.Background(), repo)

	require.Error(t, err)
	assert.Nil(t, cred)
	assert.True(t, core.IsNoUsableCredential(err))
}

func TestResolveCredential_OAuthOnlyRepository(t *testing.T) {
	useCase, m := newTestUseCase(t)
	repo := testRepo(nil, strPtr("ghcred_1"))

	m.credentials.On("GetOAuthCredentialByID", mock.Anything, "ghcred_1").
		Return(mo.Some(&models.OAuthCredential{
			ID:          "ghcred_1",
			AccessToken: "gho_token",
		}), nil)

	cred, err := useCase.resolveCredential(context.Background(), repo)

	require.NoError(t, err)
	assert.Equal(t, models.CredentialSourceOAuth, cred.Source)
	m.installations.AssertNotCalled(t, "GetAccessToken", mock.Anything, mock.Anything)
}
