package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/tenant"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
)

type TenantCreatedEvent struct {
	Result tenant.Tenant
}

type TenantService struct {
	repo      tenant.Repository
	publisher eventbus.EventBus
}

func NewTenantService(repo tenant.Repository, publisher eventbus.EventBus) *TenantService {
	return &TenantService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *TenantService) GetAll(ctx context.Context) ([]*tenant.Tenant, error) {
	return s.repo.GetAll(ctx)
}

func (s *TenantService) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TenantService) GetByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	return s.repo.GetByDomain(ctx, domain)
}

func (s *TenantService) Create(ctx context.Context, data *tenant.Tenant) (*tenant.Tenant, error) {
	created, err := s.repo.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(TenantCreatedEvent{Result: *created})
	return created, nil
}

func (s *TenantService) Update(ctx context.Context, data *tenant.Tenant) error {
	return s.repo.Update(ctx, data)
}
