package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	githubclient "gitpulse/clients/github"
	"gitpulse/models"
	"gitpulse/services/credentials"
	"gitpulse/services/installations"
	"gitpulse/services/repositories"
	"gitpulse/services/tenants"
)

type onboardingMocks struct {
	githubClient  *githubclient.MockGitHubClient
	tenants       *tenants.MockTenantsService
	installations *installations.MockInstallationsService
	credentials   *credentials.MockOAuthCredentialsService
	repos         *repositories.MockTrackedRepositoriesService
}

func newOnboardingHandler() (*OnboardingHandler, *onboardingMocks) {
	m := &onboardingMocks{
		githubClient:  new(githubclient.MockGitHubClient),
		tenants:       new(tenants.MockTenantsService),
		installations: new(installations.MockInstallationsService),
		credentials:   new(credentials.MockOAuthCredentialsService),
		repos:         new(repositories.MockTrackedRepositoriesService),
	}
	handler := NewOnboardingHandler(m.githubClient, m.tenants, m.installations, m.credentials, m.repos)
	return handler, m
}

func postOnboarding(t *testing.T, handler *OnboardingHandler, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/onboarding/complete", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.CompleteOnboarding(rec, req)
	return rec
}

func TestCompleteOnboarding_CreatesTenantAndRepositories(t *testing.T) {
	handler, m := newOnboardingHandler()

	tenant := &models.Tenant{ID: "t_01G0EZ1XTM37C5X11SQTDNCTM2", Name: "Acme"}
	installation := &models.Installation{ID: "inst_01G0EZ1XTM37C5X11SQTDNCTM3", GitHubInstallationID: 123}

	m.tenants.On("CreateTenant", mock.Anything, "Acme").Return(tenant, nil)
	m.installations.On("GetInstallationByGitHubID", mock.Anything, int64(123)).
		Return(mo.Some(installation), nil)
	m.installations.On("AttachTenant", mock.Anything, int64(123), tenant.ID).Return(nil)

	m.repos.On("GetRepositoryByFullName", mock.Anything, tenant.ID, "acme/api").
		Return(mo.None[*models.TrackedRepository](), nil)
	m.repos.On("GetRepositoryByFullName", mock.Anything, tenant.ID, "acme/web").
		Return(mo.None[*models.TrackedRepository](), nil)
	m.repos.On("CreateTrackedRepository", mock.Anything, tenant.ID, "acme/api", &installation.ID, (*string)(nil)).
		Return(&models.TrackedRepository{ID: "repo_1", FullName: "acme/api"}, nil)
	m.repos.On("CreateTrackedRepository", mock.Anything, tenant.ID, "acme/web", &installation.ID, (*string)(nil)).
		Return(&models.TrackedRepository{ID: "repo_2", FullName: "acme/web"}, nil)

	rec := postOnboarding(t, handler, map[string]any{
		"tenant_name":            "Acme",
		"github_installation_id": 123,
		"repositories":           []string{"acme/api", "acme/web"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp completeOnboardingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, tenant.ID, resp.Tenant.ID)
	assert.Len(t, resp.Repositories, 2)
	assert.Nil(t, resp.OAuthCredentialID)
}

func TestCompleteOnboarding_StoresOAuthFallbackCredential(t *testing.T) {
	handler, m := newOnboardingHandler()

	tenant := &models.Tenant{ID: "t_01G0EZ1XTM37C5X11SQTDNCTM2", Name: "Acme"}
	installation := &models.Installation{ID: "inst_01G0EZ1XTM37C5X11SQTDNCTM3", GitHubInstallationID: 123}
	credential := &models.OAuthCredential{ID: "cred_1", GitHubLogin: "octocat"}

	m.tenants.On("GetTenantByID", mock.Anything, tenant.ID).Return(mo.Some(tenant), nil)
	m.installations.On("GetInstallationByGitHubID", mock.Anything, int64(123)).
		Return(mo.Some(installation), nil)
	m.installations.On("AttachTenant", mock.Anything, int64(123), tenant.ID).Return(nil)

	m.githubClient.On("ExchangeCodeForAccessToken", mock.Anything, "auth-code").Return("gho_token", nil)
	m.githubClient.On("GetAuthenticatedLogin", mock.Anything, "gho_token").Return("octocat", nil)
	m.credentials.On("CreateOAuthCredential", mock.Anything, tenant.ID, "octocat", "gho_token").
		Return(credential, nil)

	m.repos.On("GetRepositoryByFullName", mock.Anything, tenant.ID, "acme/api").
		Return(mo.None[*models.TrackedRepository](), nil)
	m.repos.On("CreateTrackedRepository", mock.Anything, tenant.ID, "acme/api", &installation.ID, &credential.ID).
		Return(&models.TrackedRepository{ID: "repo_1", FullName: "acme/api"}, nil)

	rec := postOnboarding(t, handler, map[string]any{
		"tenant_id":              string(tenant.ID),
		"github_installation_id": 123,
		"code":                   "auth-code",
		"repositories":           []string{"acme/api"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp completeOnboardingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.OAuthCredentialID)
	assert.Equal(t, "cred_1", *resp.OAuthCredentialID)
}

func TestCompleteOnboarding_InstallationNotYetDelivered(t *testing.T) {
	handler, m := newOnboardingHandler()

	tenant := &models.Tenant{ID: "t_01G0EZ1XTM37C5X11SQTDNCTM2", Name: "Acme"}
	m.tenants.On("CreateTenant", mock.Anything, "Acme").Return(tenant, nil)
	m.installations.On("GetInstallationByGitHubID", mock.Anything, int64(999)).
		Return(mo.None[*models.Installation](), nil)

	rec := postOnboarding(t, handler, map[string]any{
		"tenant_name":            "Acme",
		"github_installation_id": 999,
		"repositories":           []string{"acme/api"},
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	m.repos.AssertNotCalled(t, "CreateTrackedRepository",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteOnboarding_ReusesExistingRepository(t *testing.T) {
	handler, m := newOnboardingHandler()

	tenant := &models.Tenant{ID: "t_01G0EZ1XTM37C5X11SQTDNCTM2", Name: "Acme"}
	installation := &models.Installation{ID: "inst_01G0EZ1XTM37C5X11SQTDNCTM3", GitHubInstallationID: 123}
	existing := &models.TrackedRepository{ID: "repo_existing", FullName: "acme/api"}

	m.tenants.On("GetTenantByID", mock.Anything, tenant.ID).Return(mo.Some(tenant), nil)
	m.installations.On("GetInstallationByGitHubID", mock.Anything, int64(123)).
		Return(mo.Some(installation), nil)
	m.installations.On("AttachTenant", mock.Anything, int64(123), tenant.ID).Return(nil)
	m.repos.On("GetRepositoryByFullName", mock.Anything, tenant.ID, "acme/api").
		Return(mo.Some(existing), nil)

	rec := postOnboarding(t, handler, map[string]any{
		"tenant_id":              string(tenant.ID),
		"github_installation_id": 123,
		"repositories":           []string{"acme/api"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	m.repos.AssertNotCalled(t, "CreateTrackedRepository",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteOnboarding_ValidatesRequest(t *testing.T) {
	handler, _ := newOnboardingHandler()

	rec := postOnboarding(t, handler, map[string]any{
		"tenant_name":  "Acme",
		"repositories": []string{"acme/api"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postOnboarding(t, handler, map[string]any{
		"tenant_name":            "Acme",
		"github_installation_id": 123,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
