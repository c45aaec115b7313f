package models

import (
	"time"
)

type TenantID string

// Tenant is the internal customer/team entity that owns tracked repositories
// and (eventually) a GitHub App installation.
type Tenant struct {
	ID        TenantID  `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
