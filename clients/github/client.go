package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"gitpulse/clients"
)

const pullRequestsPerPage = 100

// GitHubAPIClient implements the clients.GitHubClient interface on top of
// go-github, authenticating per call with either the app assertion (token
// issuance) or a caller-supplied access token (data fetches).
type GitHubAPIClient struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	baseURL      string
	signer       *appAssertionSigner
}

// OAuth token response
type oauthTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// NewGitHubAPIClient creates a new GitHub client. baseURL overrides the public
// API endpoint (empty means api.github.com); requestTimeout bounds every call.
func NewGitHubAPIClient(
	clientID, clientSecret, appID string,
	privateKeyPEM []byte,
	baseURL string,
	requestTimeout time.Duration,
) (clients.GitHubClient, error) {
	signer, err := newAppAssertionSigner(appID, privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to create app assertion signer: %w", err)
	}

	return &GitHubAPIClient{
		httpClient:   &http.Client{Timeout: requestTimeout},
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		signer:       signer,
	}, nil
}

// apiClient builds a go-github client authenticated with the given bearer token.
func (c *GitHubAPIClient) apiClient(ctx context.Context, token string) (*gogithub.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = c.httpClient.Timeout

	client := gogithub.NewClient(httpClient)
	if c.baseURL != "" {
		base := c.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		parsed, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid API base URL: %w", err)
		}
		client.BaseURL = parsed
	}
	return client, nil
}

// CreateInstallationToken exchanges the signed app assertion for a short-lived
// installation access token.
func (c *GitHubAPIClient) CreateInstallationToken(
	ctx context.Context,
	githubInstallationID int64,
) (*clients.InstallationToken, error) {
	assertion, err := c.signer.getAssertion()
	if err != nil {
		return nil, fmt.Errorf("failed to get app assertion: %w", err)
	}

	client, err := c.apiClient(ctx, assertion)
	if err != nil {
		return nil, err
	}

	issued, _, err := client.Apps.CreateInstallationToken(ctx, githubInstallationID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation token: %w", err)
	}

	return &clients.InstallationToken{
		Token:     issued.GetToken(),
		ExpiresAt: issued.GetExpiresAt().Time,
	}, nil
}

// ListPullRequests fetches one page of pull requests ordered by most recently
// updated. The caller pages with the returned next page number (0 = done).
func (c *GitHubAPIClient) ListPullRequests(
	ctx context.Context,
	token, owner, repo string,
	page int,
) ([]*gogithub.PullRequest, int, error) {
	client, err := c.apiClient(ctx, token)
	if err != nil {
		return nil, 0, err
	}

	opts := &gogithub.PullRequestListOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gogithub.ListOptions{
			Page:    page,
			PerPage: pullRequestsPerPage,
		},
	}

	prs, resp, err := client.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pull requests for %s/%s: %w", owner, repo, err)
	}

	return prs, resp.NextPage, nil
}

// ExchangeCodeForAccessToken exchanges an OAuth authorization code for a user
// access token. This endpoint lives on github.com (not the API host) and has no
// go-github binding, so it is called directly.
func (c *GitHubAPIClient) ExchangeCodeForAccessToken(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
	}

	req, err := http.NewRequestWithContext(
		ctx,
		"POST",
		"https://github.com/login/oauth/access_token",
		bytes.NewBufferString(data.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("GitHub API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var tokenResp oauthTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("no access token in response")
	}

	return tokenResp.AccessToken, nil
}

// GetAuthenticatedLogin returns the login the token authenticates as.
func (c *GitHubAPIClient) GetAuthenticatedLogin(ctx context.Context, token string) (string, error) {
	client, err := c.apiClient(ctx, token)
	if err != nil {
		return "", err
	}

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to get authenticated user: %w", err)
	}

	return user.GetLogin(), nil
}
