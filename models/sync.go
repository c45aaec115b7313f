package models

import (
	"time"
)

type CredentialSource string

const (
	CredentialSourceInstallation CredentialSource = "installation"
	CredentialSourceOAuth        CredentialSource = "oauth"
)

// ResolvedCredential is the outcome of the credential fallback chain for one
// API call batch. The token must not be held across call batches - installation
// tokens are short-lived and re-resolved per page.
type ResolvedCredential struct {
	Token  string
	Source CredentialSource
}

type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
)

// SyncResult summarizes one completed sync run for a repository.
type SyncResult struct {
	RepositoryID string    `json:"repository_id"`
	FullName     string    `json:"full_name"`
	SyncType     SyncType  `json:"sync_type"`
	PagesFetched int       `json:"pages_fetched"`
	PullRequests int       `json:"pull_requests"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}
