package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/google/go-github/v80/github"
	"github.com/gorilla/mux"

	"gitpulse/models"
	"gitpulse/services"
)

// GitHubWebhooksHandler receives HMAC-signed webhook deliveries and feeds
// installation lifecycle events into the installations service. Deliveries are
// at-least-once; every dispatch target is idempotent.
type GitHubWebhooksHandler struct {
	webhookSecret        string
	installationsService services.InstallationsService
}

func NewGitHubWebhooksHandler(
	webhookSecret string,
	installationsService services.InstallationsService,
) *GitHubWebhooksHandler {
	return &GitHubWebhooksHandler{
		webhookSecret:        webhookSecret,
		installationsService: installationsService,
	}
}

func (h *GitHubWebhooksHandler) SetupEndpoints(router *mux.Router) {
	router.HandleFunc("/webhooks/github", h.HandleWebhook).Methods("POST")
}

func (h *GitHubWebhooksHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, []byte(h.webhookSecret))
	if err != nil {
		log.Printf("❌ Webhook signature validation failed: %v", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		log.Printf("❌ Webhook parsing failed: %v", err)
		http.Error(w, "failed to parse webhook", http.StatusBadRequest)
		return
	}

	switch ev := event.(type) {
	case *github.InstallationEvent:
		if err := h.handleInstallationEvent(r.Context(), ev); err != nil {
			log.Printf("❌ Failed to handle installation event: %v", err)
			http.Error(w, "failed to process event", http.StatusInternalServerError)
			return
		}
	default:
		log.Printf("📨 Ignoring webhook event type %T", event)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *GitHubWebhooksHandler) handleInstallationEvent(ctx context.Context, ev *github.InstallationEvent) error {
	installation := ev.GetInstallation()
	if installation == nil {
		return fmt.Errorf("installation event carries no installation")
	}
	githubInstallationID := installation.GetID()

	log.Printf("📨 Received installation.%s for github installation %d", ev.GetAction(), githubInstallationID)

	switch ev.GetAction() {
	case "created", "new_permissions_accepted":
		permissions, err := json.Marshal(installation.GetPermissions())
		if err != nil {
			return fmt.Errorf("failed to marshal permissions: %w", err)
		}
		account := installation.GetAccount()
		_, err = h.installationsService.HandleInstallationCreated(ctx, &models.InstallationEvent{
			GitHubInstallationID: githubInstallationID,
			AccountType:          models.AccountType(account.GetType()),
			AccountLogin:         account.GetLogin(),
			AccountID:            account.GetID(),
			Permissions:          permissions,
		})
		return err

	case "suspend":
		return h.installationsService.HandleInstallationSuspended(ctx, githubInstallationID)

	case "unsuspend":
		return h.installationsService.HandleInstallationUnsuspended(ctx, githubInstallationID)

	case "deleted":
		return h.installationsService.HandleInstallationDeleted(ctx, githubInstallationID)

	default:
		log.Printf("📨 Ignoring installation action %q", ev.GetAction())
		return nil
	}
}
