package credentials

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"gitpulse/models"
)

// MockOAuthCredentialsService is a mock implementation of the services.OAuthCredentialsService interface
type MockOAuthCredentialsService struct {
	mock.Mock
}

func (m *MockOAuthCredentialsService) CreateOAuthCredential(
	ctx context.Context,
	tenantID models.TenantID,
	githubLogin, accessToken string,
) (*models.OAuthCredential, error) {
	args := m.Called(ctx, tenantID, githubLogin, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OAuthCredential), args.Error(1)
}

func (m *MockOAuthCredentialsService) GetOAuthCredentialByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.OAuthCredential], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.OAuthCredential]), args.Error(1)
}

func (m *MockOAuthCredentialsService) RevokeOAuthCredential(ctx context.Context, id string, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}
