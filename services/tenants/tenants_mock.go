package tenants

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"gitpulse/models"
)

// MockTenantsService is a mock implementation of the services.TenantsService interface
type MockTenantsService struct {
	mock.Mock
}

func (m *MockTenantsService) CreateTenant(ctx context.Context, name string) (*models.Tenant, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantsService) GetTenantByID(
	ctx context.Context,
	id models.TenantID,
) (mo.Option[*models.Tenant], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.Tenant]), args.Error(1)
}
