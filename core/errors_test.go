package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInstallationDeactivatedError_Messages(t *testing.T) {
	suspended := &InstallationDeactivatedError{InstallationID: 42, Suspended: true}
	assert.Contains(t, suspended.Error(), "suspended")
	assert.Contains(t, suspended.Error(), "contact your organization admin")

	removed := &InstallationDeactivatedError{InstallationID: 42, Suspended: false}
	assert.Contains(t, removed.Error(), "removed")
	assert.Contains(t, removed.Error(), "reinstall the GitHub App")
}

func TestErrorHelpers_MatchWrappedErrors(t *testing.T) {
	deactivated := fmt.Errorf("failed to get token: %w", &InstallationDeactivatedError{InstallationID: 1})
	assert.True(t, IsInstallationDeactivated(deactivated))
	assert.False(t, IsAuthRevoked(deactivated))

	noCred := fmt.Errorf("sync failed: %w", &NoUsableCredentialError{RepoFullName: "acme/api"})
	assert.True(t, IsNoUsableCredential(noCred))
	assert.Contains(t, noCred.Error(), "acme/api")

	rateLimited := fmt.Errorf("wrapped: %w", &RateLimitedError{Operation: "list", ResetAt: time.Now()})
	assert.True(t, IsRateLimited(rateLimited))

	revoked := fmt.Errorf("wrapped: %w", &AuthRevokedError{Operation: "list", Cause: errors.New("401")})
	assert.True(t, IsAuthRevoked(revoked))
}

func TestIsFatalSyncError(t *testing.T) {
	assert.True(t, IsFatalSyncError(&InstallationDeactivatedError{InstallationID: 1}))
	assert.True(t, IsFatalSyncError(&NoUsableCredentialError{RepoFullName: "acme/api"}))
	assert.True(t, IsFatalSyncError(&AuthRevokedError{Operation: "list"}))

	assert.False(t, IsFatalSyncError(&RateLimitedError{Operation: "list", ResetAt: time.Now()}))
	assert.False(t, IsFatalSyncError(&TimeoutExhaustedError{Operation: "list", Attempts: 4}))
	assert.False(t, IsFatalSyncError(errors.New("plain error")))
}

func TestTimeoutExhaustedError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := &TimeoutExhaustedError{Operation: "list", Attempts: 4, Cause: cause}

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Contains(t, err.Error(), "will retry automatically")
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, IsNotFoundError(fmt.Errorf("installation x: %w", ErrNotFound)))
	assert.False(t, IsNotFoundError(errors.New("something else")))
	assert.False(t, IsNotFoundError(nil))
}
