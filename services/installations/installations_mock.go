package installations

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"gitpulse/models"
)

// MockInstallationsService is a mock implementation of the services.InstallationsService interface
type MockInstallationsService struct {
	mock.Mock
}

func (m *MockInstallationsService) HandleInstallationCreated(
	ctx context.Context,
	event *models.InstallationEvent,
) (*models.Installation, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Installation), args.Error(1)
}

func (m *MockInstallationsService) HandleInstallationSuspended(ctx context.Context, githubInstallationID int64) error {
	args := m.Called(ctx, githubInstallationID)
	return args.Error(0)
}

func (m *MockInstallationsService) HandleInstallationUnsuspended(ctx context.Context, githubInstallationID int64) error {
	args := m.Called(ctx, githubInstallationID)
	return args.Error(0)
}

func (m *MockInstallationsService) HandleInstallationDeleted(ctx context.Context, githubInstallationID int64) error {
	args := m.Called(ctx, githubInstallationID)
	return args.Error(0)
}

func (m *MockInstallationsService) GetAccessToken(ctx context.Context, installationID string) (string, error) {
	args := m.Called(ctx, installationID)
	return args.String(0), args.Error(1)
}

func (m *MockInstallationsService) GetInstallationByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.Installation], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.Installation]), args.Error(1)
}

func (m *MockInstallationsService) GetInstallationByGitHubID(
	ctx context.Context,
	githubInstallationID int64,
) (mo.Option[*models.Installation], error) {
	args := m.Called(ctx, githubInstallationID)
	return args.Get(0).(mo.Option[*models.Installation]), args.Error(1)
}

func (m *MockInstallationsService) AttachTenant(
	ctx context.Context,
	githubInstallationID int64,
	tenantID models.TenantID,
) error {
	args := m.Called(ctx, githubInstallationID, tenantID)
	return args.Error(0)
}

func (m *MockInstallationsService) DeactivateInstallation(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
