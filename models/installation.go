package models

import (
	"encoding/json"
	"time"
)

type AccountType string

const (
	AccountTypeOrganization AccountType = "Organization"
	AccountTypeUser         AccountType = "User"
)

type InstallationStatus string

const (
	InstallationStatusActive    InstallationStatus = "active"
	InstallationStatusSuspended InstallationStatus = "suspended"
	InstallationStatusRemoved   InstallationStatus = "removed"
)

// Installation is one GitHub App installation for one account (org or user).
// It is the preferred credential source for syncing that account's repositories.
type Installation struct {
	ID                   string          `db:"id"                     json:"id"`
	GitHubInstallationID int64           `db:"github_installation_id" json:"github_installation_id"`
	AccountType          AccountType     `db:"account_type"           json:"account_type"`
	AccountLogin         string          `db:"account_login"          json:"account_login"`
	AccountID            int64           `db:"account_id"             json:"account_id"`
	IsActive             bool            `db:"is_active"              json:"is_active"`
	SuspendedAt          *time.Time      `db:"suspended_at"           json:"suspended_at,omitempty"`
	Permissions          json.RawMessage `db:"permissions"            json:"permissions,omitempty"`
	CachedToken          string          `db:"cached_token"           json:"-"`
	TokenExpiresAt       *time.Time      `db:"token_expires_at"       json:"token_expires_at,omitempty"`
	TenantID             *TenantID       `db:"tenant_id"              json:"tenant_id,omitempty"`
	CreatedAt            time.Time       `db:"created_at"             json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"             json:"updated_at"`
}

// Status derives the lifecycle state from is_active/suspended_at.
func (i *Installation) Status() InstallationStatus {
	if i.IsActive {
		return InstallationStatusActive
	}
	if i.SuspendedAt != nil {
		return InstallationStatusSuspended
	}
	return InstallationStatusRemoved
}

// HasValidToken reports whether the cached token can be reused. An unexpired
// token is necessary but not sufficient - the installation must also be active.
func (i *Installation) HasValidToken(safetyMargin time.Duration) bool {
	if !i.IsActive {
		return false
	}
	if i.CachedToken == "" || i.TokenExpiresAt == nil {
		return false
	}
	return time.Now().Add(safetyMargin).Before(*i.TokenExpiresAt)
}

// InstallationEvent carries the installation fields of an inbound webhook
// delivery after signature verification and parsing.
type InstallationEvent struct {
	GitHubInstallationID int64
	AccountType          AccountType
	AccountLogin         string
	AccountID            int64
	Permissions          json.RawMessage
}
