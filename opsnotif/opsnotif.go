package opsnotif

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

var (
	instance *OpsNotifier
	once     sync.Once
)

// OpsNotifier posts operator-visibility warnings (account-type changes,
// reinstall migrations) to a Slack-compatible webhook. Delivery is best-effort
// and asynchronous - a warning must never block or fail the calling path.
type OpsNotifier struct {
	webhookURL  string
	environment string
	appName     string
	httpClient  *http.Client
}

// Init initializes the global ops notifier instance
func Init(webhookURL, environment string) {
	once.Do(func() {
		instance = &OpsNotifier{
			webhookURL:  webhookURL,
			environment: environment,
			appName:     "gitpulse",
			httpClient:  &http.Client{Timeout: 10 * time.Second},
		}
	})
}

// Warn sends a warning-level operator notification
func Warn(subject, message string) {
	if instance == nil {
		log.Printf("⚠️ Ops notifier not initialized, skipping notification: %s", message)
		return
	}

	instance.send(subject, message)
}

func (n *OpsNotifier) send(subject, message string) {
	if n.webhookURL == "" {
		return // Ops notifications disabled
	}

	go n.sendWebhookNotification(subject, message)
}

func (n *OpsNotifier) sendWebhookNotification(subject, message string) {
	payload := map[string]any{
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": fmt.Sprintf("⚠️ *%s* (%s)\n*Subject:* %s\n%s", n.appName, n.environment, subject, message),
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️ Failed to marshal ops notification: %v", err)
		return
	}

	resp, err := n.httpClient.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("⚠️ Failed to send ops notification: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("⚠️ Ops notification webhook returned status %d", resp.StatusCode)
	}
}
