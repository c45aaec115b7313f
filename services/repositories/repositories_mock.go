package repositories

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"gitpulse/models"
)

// MockTrackedRepositoriesService is a mock implementation of the services.TrackedRepositoriesService interface
type MockTrackedRepositoriesService struct {
	mock.Mock
}

func (m *MockTrackedRepositoriesService) CreateTrackedRepository(
	ctx context.Context,
	tenantID models.TenantID,
	fullName string,
	installationID, oauthCredentialID *string,
) (*models.TrackedRepository, error) {
	args := m.Called(ctx, tenantID, fullName, installationID, oauthCredentialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrackedRepository), args.Error(1)
}

func (m *MockTrackedRepositoriesService) GetRepositoryByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.TrackedRepository], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.TrackedRepository]), args.Error(1)
}

func (m *MockTrackedRepositoriesService) GetRepositoryByFullName(
	ctx context.Context,
	tenantID models.TenantID,
	fullName string,
) (mo.Option[*models.TrackedRepository], error) {
	args := m.Called(ctx, tenantID, fullName)
	return args.Get(0).(mo.Option[*models.TrackedRepository]), args.Error(1)
}

func (m *MockTrackedRepositoriesService) ListRepositoriesDueForSync(
	ctx context.Context,
	staleAfter time.Duration,
) ([]*models.TrackedRepository, error) {
	args := m.Called(ctx, staleAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TrackedRepository), args.Error(1)
}

func (m *MockTrackedRepositoriesService) MarkSyncStarted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTrackedRepositoriesService) MarkSyncComplete(ctx context.Context, id string, syncedAt time.Time) error {
	args := m.Called(ctx, id, syncedAt)
	return args.Error(0)
}

func (m *MockTrackedRepositoriesService) MarkSyncError(ctx context.Context, id string, errorMessage string, fatal bool) error {
	args := m.Called(ctx, id, errorMessage, fatal)
	return args.Error(0)
}
