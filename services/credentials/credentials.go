package credentials

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"gitpulse/core"
	"gitpulse/db"
	"gitpulse/models"
)

type OAuthCredentialsService struct {
	credentialsRepo *db.PostgresOAuthCredentialsRepository
}

func NewOAuthCredentialsService(repo *db.PostgresOAuthCredentialsRepository) *OAuthCredentialsService {
	return &OAuthCredentialsService{credentialsRepo: repo}
}

func (s *OAuthCredentialsService) CreateOAuthCredential(
	ctx context.Context,
	tenantID models.TenantID,
	githubLogin, accessToken string,
) (*models.OAuthCredential, error) {
	log.Printf("📋 Starting to create oauth credential for tenant: %s", tenantID)

	if !core.IsValidULID(string(tenantID)) {
		return nil, fmt.Errorf("tenant ID must be a valid ULID")
	}
	if accessToken == "" {
		return nil, fmt.Errorf("access token cannot be empty")
	}

	credential := &models.OAuthCredential{
		ID:          core.NewID("cred"),
		TenantID:    tenantID,
		GitHubLogin: githubLogin,
		AccessToken: accessToken,
	}

	if err := s.credentialsRepo.CreateOAuthCredential(ctx, credential); err != nil {
		return nil, fmt.Errorf("failed to create oauth credential: %w", err)
	}

	log.Printf("📋 Completed successfully - created oauth credential with ID: %s", credential.ID)
	return credential, nil
}

func (s *OAuthCredentialsService) GetOAuthCredentialByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.OAuthCredential], error) {
	log.Printf("📋 Starting to get oauth credential by ID: %s", id)
	if !core.IsValidULID(id) {
		return mo.None[*models.OAuthCredential](), fmt.Errorf("credential ID must be a valid ULID")
	}

	credential, err := s.credentialsRepo.GetOAuthCredentialByID(ctx, id)
	if err != nil {
		return mo.None[*models.OAuthCredential](), fmt.Errorf("failed to get oauth credential: %w", err)
	}

	log.Printf("📋 Completed successfully - looked up oauth credential with ID: %s", id)
	return credential, nil
}

// RevokeOAuthCredential permanently revokes the credential. Revocation is
// one-way - reconnecting creates a new credential record.
func (s *OAuthCredentialsService) RevokeOAuthCredential(ctx context.Context, id string, reason string) error {
	log.Printf("📋 Starting to revoke oauth credential: %s", id)
	if !core.IsValidULID(id) {
		return fmt.Errorf("credential ID must be a valid ULID")
	}

	if err := s.credentialsRepo.RevokeOAuthCredential(ctx, id, reason); err != nil {
		return fmt.Errorf("failed to revoke oauth credential: %w", err)
	}

	log.Printf("📋 Completed successfully - revoked oauth credential: %s", id)
	return nil
}
