package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/group"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
)

type GroupCreatedEvent struct {
	Result group.Group
}

type GroupService struct {
	repo      group.Repository
	publisher eventbus.EventBus
}

func NewGroupService(repo group.Repository, publisher eventbus.EventBus) *GroupService {
	return &GroupService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *GroupService) GetAll(ctx context.Context) ([]group.Group, error) {
	return s.repo.GetAll(ctx)
}

func (s *GroupService) GetByID(ctx context.Context, id uuid.UUID) (group.Group, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *GroupService) Create(ctx context.Context, data group.Group) (group.Group, error) {
	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (group.Group, error) {
		return s.repo.Create(txCtx, data)
	})
	if err != nil {
		return group.Group{}, err
	}
	s.publisher.Publish(GroupCreatedEvent{Result: created})
	return created, nil
}

func (s *GroupService) Update(ctx context.Context, data group.Group) error {
	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.repo.Update(txCtx, data)
	})
}

func (s *GroupService) Delete(ctx context.Context, id uuid.UUID) error {
	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, id)
	})
}
