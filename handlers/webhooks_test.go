package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gitpulse/models"
	"gitpulse/services/installations"
)

const testWebhookSecret = "test-webhook-secret"

func signedWebhookRequest(t *testing.T, event string, payload []byte) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)

	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(payload)
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))

	return req
}

func installationPayload(action string, githubInstallationID int64) []byte {
	return fmt.Appendf(nil, `{
		"action": %q,
		"installation": {
			"id": %d,
			"account": {"login": "acme", "id": 7, "type": "Organization"},
			"permissions": {"pull_requests": "read", "metadata": "read"}
		}
	}`, action, githubInstallationID)
}

func TestHandleWebhook_InstallationCreated(t *testing.T) {
	installationsService := new(installations.MockInstallationsService)
	handler := NewGitHubWebhooksHandler(testWebhookSecret, installationsService)

	installationsService.On("HandleInstallationCreated", mock.Anything, mock.MatchedBy(func(ev *models.InstallationEvent) bool {
		return ev.GitHubInstallationID == 123 &&
			ev.AccountLogin == "acme" &&
			ev.AccountID == 7 &&
			ev.AccountType == models.AccountTypeOrganization &&
			len(ev.Permissions) > 0
	})).Return(&models.Installation{ID: "inst_x"}, nil)

	rec := httptest.NewRecorder()
	handler.HandleWebhook(rec, signedWebhookRequest(t, "installation", installationPayload("created", 123)))

	assert.Equal(t, http.StatusOK, rec.Code)
	installationsService.AssertExpectations(t)
}

func TestHandleWebhook_InstallationLifecycleActions(t *testing.T) {
	cases := []struct {
		action string
		method string
	}{
		{"suspend", "HandleInstallationSuspended"},
		{"unsuspend", "HandleInstallationUnsuspended"},
		{"deleted", "HandleInstallationDeleted"},
	}

	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			installationsService := new(installations.MockInstallationsService)
			handler := NewGitHubWebhooksHandler(testWebhookSecret, installationsService)

			installationsService.On(tc.method, mock.Anything, int64(456)).Return(nil)

			rec := httptest.NewRecorder()
			handler.HandleWebhook(rec, signedWebhookRequest(t, "installation", installationPayload(tc.action, 456)))

			assert.Equal(t, http.StatusOK, rec.Code)
			installationsService.AssertExpectations(t)
		})
	}
}

func TestHandleWebhook_RejectsInvalidSignature(t *testing.T) {
	installationsService := new(installations.MockInstallationsService)
	handler := NewGitHubWebhooksHandler(testWebhookSecret, installationsService)

	payload := installationPayload("created", 123)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "installation")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	rec := httptest.NewRecorder()
	handler.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	installationsService.AssertNotCalled(t, "HandleInstallationCreated", mock.Anything, mock.Anything)
}

func TestHandleWebhook_IgnoresUnrelatedEvents(t *testing.T) {
	installationsService := new(installations.MockInstallationsService)
	handler := NewGitHubWebhooksHandler(testWebhookSecret, installationsService)

	rec := httptest.NewRecorder()
	handler.HandleWebhook(rec, signedWebhookRequest(t, "push", []byte(`{"ref": "refs/heads/main"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	installationsService.AssertNotCalled(t, "HandleInstallationCreated", mock.Anything, mock.Anything)
}

func TestHandleWebhook_IgnoresUnknownInstallationAction(t *testing.T) {
	installationsService := new(installations.MockInstallationsService)
	handler := NewGitHubWebhooksHandler(testWebhookSecret, installationsService)

	rec := httptest.NewRecorder()
	handler.HandleWebhook(rec, signedWebhookRequest(t, "installation", installationPayload("renamed", 789)))

	assert.Equal(t, http.StatusOK, rec.Code)
	installationsService.AssertExpectations(t)
}

func TestHandleWebhook_ServiceFailureReturns500(t *testing.T) {
	installationsService := new(installations.MockInstallationsService)
	handler := NewGitHubWebhooksHandler(testWebhookSecret, installationsService)

	installationsService.On("HandleInstallationDeleted", mock.Anything, int64(456)).
		Return(assert.AnError)

	rec := httptest.NewRecorder()
	handler.HandleWebhook(rec, signedWebhookRequest(t, "installation", installationPayload("deleted", 456)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
