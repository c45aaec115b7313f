package models

import (
	"time"
)

// OAuthCredential is a long-lived delegated-auth token used only when no
// active installation is usable. Once revoked it stays revoked - a new OAuth
// grant creates a new record.
type OAuthCredential struct {
	ID               string     `db:"id"                json:"id"`
	TenantID         TenantID   `db:"tenant_id"         json:"tenant_id"`
	GitHubLogin      string     `db:"github_login"      json:"github_login"`
	AccessToken      string     `db:"access_token"      json:"-"`
	IsRevoked        bool       `db:"is_revoked"        json:"is_revoked"`
	RevokedAt        *time.Time `db:"revoked_at"        json:"revoked_at,omitempty"`
	RevocationReason *string    `db:"revocation_reason" json:"revocation_reason,omitempty"`
	CreatedAt        time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"        json:"updated_at"`
}
