package tenants

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"gitpulse/core"
	"gitpulse/db"
	"gitpulse/models"
)

type TenantsService struct {
	tenantsRepo *db.PostgresTenantsRepository
}

func NewTenantsService(repo *db.PostgresTenantsRepository) *TenantsService {
	return &TenantsService{tenantsRepo: repo}
}

func (s *TenantsService) CreateTenant(ctx context.Context, name string) (*models.Tenant, error) {
	log.Printf("📋 Starting to create tenant: %s", name)
	if name == "" {
		return nil, fmt.Errorf("tenant name cannot be empty")
	}

	tenant := &models.Tenant{
		ID:   models.TenantID(core.NewID("t")),
		Name: name,
	}

	if err := s.tenantsRepo.CreateTenant(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	log.Printf("📋 Completed successfully - created tenant with ID: %s", tenant.ID)
	return tenant, nil
}

func (s *TenantsService) GetTenantByID(
	ctx context.Context,
	id models.TenantID,
) (mo.Option[*models.Tenant], error) {
	log.Printf("📋 Starting to get tenant by ID: %s", id)
	if !core.IsValidULID(string(id)) {
		return mo.None[*models.Tenant](), fmt.Errorf("tenant ID must be a valid ULID")
	}

	tenant, err := s.tenantsRepo.GetTenantByID(ctx, id)
	if err != nil {
		return mo.None[*models.Tenant](), fmt.Errorf("failed to get tenant by ID: %w", err)
	}

	log.Printf("📋 Completed successfully - looked up tenant with ID: %s", id)
	return tenant, nil
}
