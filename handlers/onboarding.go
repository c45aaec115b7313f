package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"gitpulse/clients"
	"gitpulse/models"
	"gitpulse/services"
)

// OnboardingHandler completes the connect flow after the user installs the app
// and authorizes OAuth: it binds the installation to a tenant, stores the
// fallback OAuth credential and registers the selected repositories.
type OnboardingHandler struct {
	githubClient         clients.GitHubClient
	tenantsService       services.TenantsService
	installationsService services.InstallationsService
	credentialsService   services.OAuthCredentialsService
	reposService         services.TrackedRepositoriesService
}

func NewOnboardingHandler(
	githubClient clients.GitHubClient,
	tenantsService services.TenantsService,
	installationsService services.InstallationsService,
	credentialsService services.OAuthCredentialsService,
	reposService services.TrackedRepositoriesService,
) *OnboardingHandler {
	return &OnboardingHandler{
		githubClient:         githubClient,
		tenantsService:       tenantsService,
		installationsService: installationsService,
		credentialsService:   credentialsService,
		reposService:         reposService,
	}
}

func (h *OnboardingHandler) SetupEndpoints(router *mux.Router) {
	router.HandleFunc("/onboarding/complete", h.CompleteOnboarding).Methods("POST")
}

type completeOnboardingRequest struct {
	TenantID             string   `json:"tenant_id,omitempty"`
	TenantName           string   `json:"tenant_name,omitempty"`
	GitHubInstallationID int64    `json:"github_installation_id"`
	Code                 string   `json:"code,omitempty"`
	Repositories         []string `json:"repositories"`
}

type completeOnboardingResponse struct {
	Tenant            *models.Tenant              `json:"tenant"`
	Installation      *models.Installation        `json:"installation"`
	OAuthCredentialID *string                     `json:"oauth_credential_id,omitempty"`
	Repositories      []*models.TrackedRepository `json:"repositories"`
}

func (h *OnboardingHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req completeOnboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GitHubInstallationID <= 0 {
		writeJSONError(w, http.StatusBadRequest, "github_installation_id is required")
		return
	}
	if len(req.Repositories) == 0 {
		writeJSONError(w, http.StatusBadRequest, "at least one repository is required")
		return
	}

	log.Printf("📋 Starting to complete onboarding for github installation %d", req.GitHubInstallationID)

	tenant, err := h.resolveTenant(r, &req)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The installation row is created by the webhook delivery, which normally
	// lands before the user finishes the redirect. If it has not arrived yet
	// the client retries.
	maybeInstallation, err := h.installationsService.GetInstallationByGitHubID(ctx, req.GitHubInstallationID)
	if err != nil {
		log.Printf("❌ Failed to look up installation: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to look up installation")
		return
	}
	if !maybeInstallation.IsPresent() {
		writeJSONError(w, http.StatusNotFound, "installation not found yet, retry shortly")
		return
	}
	installation := maybeInstallation.MustGet()

	if err := h.installationsService.AttachTenant(ctx, req.GitHubInstallationID, tenant.ID); err != nil {
		log.Printf("❌ Failed to attach tenant to installation: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to attach tenant")
		return
	}

	var oauthCredentialID *string
	if req.Code != "" {
		credential, err := h.storeOAuthCredential(r, tenant.ID, req.Code)
		if err != nil {
			log.Printf("❌ Failed to store oauth credential: %v", err)
			writeJSONError(w, http.StatusBadGateway, "failed to exchange oauth code")
			return
		}
		oauthCredentialID = &credential.ID
	}

	repositories := make([]*models.TrackedRepository, 0, len(req.Repositories))
	for _, fullName := range req.Repositories {
		existing, err := h.reposService.GetRepositoryByFullName(ctx, tenant.ID, fullName)
		if err != nil {
			log.Printf("❌ Failed to look up repository %s: %v", fullName, err)
			writeJSONError(w, http.StatusInternalServerError, "failed to register repositories")
			return
		}
		if existing.IsPresent() {
			repositories = append(repositories, existing.MustGet())
			continue
		}

		repo, err := h.reposService.CreateTrackedRepository(
			ctx, tenant.ID, fullName, &installation.ID, oauthCredentialID)
		if err != nil {
			log.Printf("❌ Failed to register repository %s: %v", fullName, err)
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("failed to register repository %s", fullName))
			return
		}
		repositories = append(repositories, repo)
	}

	log.Printf("📋 Completed successfully - onboarded tenant %s with %d repositories", tenant.ID, len(repositories))
	writeJSON(w, http.StatusOK, completeOnboardingResponse{
		Tenant:            tenant,
		Installation:      installation,
		OAuthCredentialID: oauthCredentialID,
		Repositories:      repositories,
	})
}

func (h *OnboardingHandler) resolveTenant(r *http.Request, req *completeOnboardingRequest) (*models.Tenant, error) {
	ctx := r.Context()

	if req.TenantID != "" {
		maybeTenant, err := h.tenantsService.GetTenantByID(ctx, models.TenantID(req.TenantID))
		if err != nil {
			return nil, fmt.Errorf("failed to look up tenant: %w", err)
		}
		if !maybeTenant.IsPresent() {
			return nil, fmt.Errorf("tenant %s not found", req.TenantID)
		}
		return maybeTenant.MustGet(), nil
	}

	if req.TenantName == "" {
		return nil, fmt.Errorf("tenant_id or tenant_name is required")
	}
	tenant, err := h.tenantsService.CreateTenant(ctx, req.TenantName)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenant, nil
}

func (h *OnboardingHandler) storeOAuthCredential(
	r *http.Request,
	tenantID models.TenantID,
	code string,
) (*models.OAuthCredential, error) {
	ctx := r.Context()

	accessToken, err := h.githubClient.ExchangeCodeForAccessToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	login, err := h.githubClient.GetAuthenticatedLogin(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token owner: %w", err)
	}
	return h.credentialsService.CreateOAuthCredential(ctx, tenantID, login, accessToken)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
