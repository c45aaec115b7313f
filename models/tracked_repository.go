package models

import (
	"time"
)

type SyncStatus string

const (
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusSyncing  SyncStatus = "syncing"
	SyncStatusComplete SyncStatus = "complete"
	SyncStatusError    SyncStatus = "error"
	// SyncStatusErrorFatal marks a sync failure that user action must resolve
	// (revoked credentials, deactivated installation). The scheduler leaves
	// these repositories alone until a lifecycle event requeues them.
	SyncStatusErrorFatal SyncStatus = "error_fatal"
)

// TrackedRepository is one repository a tenant has chosen to sync.
// InstallationID is the preferred auth source, OAuthCredentialID the fallback.
type TrackedRepository struct {
	ID                string     `db:"id"                  json:"id"`
	FullName          string     `db:"full_name"           json:"full_name"`
	TenantID          TenantID   `db:"tenant_id"           json:"tenant_id"`
	InstallationID    *string    `db:"installation_id"     json:"installation_id,omitempty"`
	OAuthCredentialID *string    `db:"oauth_credential_id" json:"oauth_credential_id,omitempty"`
	SyncStatus        SyncStatus `db:"sync_status"         json:"sync_status"`
	LastSyncAt        *time.Time `db:"last_sync_at"        json:"last_sync_at,omitempty"`
	LastSyncError     *string    `db:"last_sync_error"     json:"last_sync_error,omitempty"`
	CreatedAt         time.Time  `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"          json:"updated_at"`
}

// Owner returns the "owner" half of full_name, or "" if malformed.
func (r *TrackedRepository) Owner() string {
	owner, _ := splitFullName(r.FullName)
	return owner
}

// Name returns the repository half of full_name, or "" if malformed.
func (r *TrackedRepository) Name() string {
	_, name := splitFullName(r.FullName)
	return name
}

func splitFullName(fullName string) (string, string) {
	for i := 0; i < len(fullName); i++ {
		if fullName[i] == '/' {
			return fullName[:i], fullName[i+1:]
		}
	}
	return "", ""
}
