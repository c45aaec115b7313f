package clients

import (
	"context"
	"time"

	"github.com/google/go-github/v80/github"
)

// InstallationToken is a short-lived installation access token issued by
// exchanging a signed app assertion.
type InstallationToken struct {
	Token     string
	ExpiresAt time.Time
}

// GitHubClient is the boundary to the GitHub API. Implementations return the
// provider's typed errors (rate limit, error response) unwrapped enough for
// errors.As-based classification by callers.
type GitHubClient interface {
	// CreateInstallationToken exchanges the app-level JWT assertion for a
	// short-lived installation access token.
	CreateInstallationToken(ctx context.Context, githubInstallationID int64) (*InstallationToken, error)

	// ListPullRequests fetches one page of pull requests ordered by most
	// recently updated. Returns the page items and the next page number
	// (0 when this was the last page).
	ListPullRequests(ctx context.Context, token, owner, repo string, page int) ([]*github.PullRequest, int, error)

	// ExchangeCodeForAccessToken exchanges an OAuth authorization code for a
	// long-lived user access token (the fallback credential).
	ExchangeCodeForAccessToken(ctx context.Context, code string) (string, error)

	// GetAuthenticatedLogin returns the login of the user a token belongs to.
	GetAuthenticatedLogin(ctx context.Context, token string) (string, error)
}
