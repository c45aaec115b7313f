package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is a sentinel error for "not found" cases
var ErrNotFound = errors.New("not found")

// IsNotFoundError checks if an error is a "not found" error
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// InstallationDeactivatedError indicates the GitHub App installation can no longer
// issue access tokens. Suspended distinguishes "suspended by GitHub/org admin"
// from "fully removed" - the remediation differs for the user.
type InstallationDeactivatedError struct {
	InstallationID int64
	Suspended      bool
}

func (e *InstallationDeactivatedError) Error() string {
	if e.Suspended {
		return fmt.Sprintf(
			"installation %d is suspended - contact your organization admin to unsuspend the GitHub App",
			e.InstallationID,
		)
	}
	return fmt.Sprintf(
		"installation %d has been removed - reinstall the GitHub App to resume syncing",
		e.InstallationID,
	)
}

// NoUsableCredentialError indicates neither installation auth nor an OAuth
// fallback credential is usable for a repository. Surfaced verbatim to the user.
type NoUsableCredentialError struct {
	RepoFullName string
}

func (e *NoUsableCredentialError) Error() string {
	return fmt.Sprintf(
		"no usable credential for repository %s - reconnect it via integration settings",
		e.RepoFullName,
	)
}

// RateLimitedError indicates the external API returned an explicit rate-limit
// response. Never retried inline - callers reschedule out of band.
type RateLimitedError struct {
	Operation string
	ResetAt   time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("operation %s was rate limited, limit resets at %s", e.Operation, e.ResetAt.Format(time.RFC3339))
}

// TimeoutExhaustedError indicates a transient failure persisted through the
// full retry budget.
type TimeoutExhaustedError struct {
	Operation string
	Attempts  int
	Cause     error
}

func (e *TimeoutExhaustedError) Error() string {
	return fmt.Sprintf(
		"operation %s failed after %d attempts due to a temporary condition, will retry automatically: %v",
		e.Operation, e.Attempts, e.Cause,
	)
}

func (e *TimeoutExhaustedError) Unwrap() error {
	return e.Cause
}

// AuthRevokedError indicates the credential used for an API call is no longer
// valid (401-equivalent). Never retried - detection triggers revocation.
type AuthRevokedError struct {
	Operation string
	Cause     error
}

func (e *AuthRevokedError) Error() string {
	return fmt.Sprintf("operation %s failed because the credential was revoked: %v", e.Operation, e.Cause)
}

func (e *AuthRevokedError) Unwrap() error {
	return e.Cause
}

// APIError wraps any external API failure that fits no other category.
type APIError struct {
	Operation string
	Cause     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("operation %s failed: %v", e.Operation, e.Cause)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsInstallationDeactivated reports whether err carries an InstallationDeactivatedError
func IsInstallationDeactivated(err error) bool {
	var target *InstallationDeactivatedError
	return errors.As(err, &target)
}

// IsNoUsableCredential reports whether err carries a NoUsableCredentialError
func IsNoUsableCredential(err error) bool {
	var target *NoUsableCredentialError
	return errors.As(err, &target)
}

// IsRateLimited reports whether err carries a RateLimitedError
func IsRateLimited(err error) bool {
	var target *RateLimitedError
	return errors.As(err, &target)
}

// IsAuthRevoked reports whether err carries an AuthRevokedError
func IsAuthRevoked(err error) bool {
	var target *AuthRevokedError
	return errors.As(err, &target)
}

// IsFatalSyncError reports whether err should terminate a sync run without
// any scheduler-level retry (user action is required to make progress).
func IsFatalSyncError(err error) bool {
	return IsInstallationDeactivated(err) || IsNoUsableCredential(err) || IsAuthRevoked(err)
}
