package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/aggregates/user"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
)

type UserCreatedEvent struct {
	Result user.User
}

type UserUpdatedEvent struct {
	Result user.User
}

type UserService struct {
	repo      user.Repository
	publisher eventbus.EventBus
}

func NewUserService(repo user.Repository, publisher eventbus.EventBus) *UserService {
	return &UserService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *UserService) GetPaginated(ctx context.Context, params *user.FindParams) ([]user.User, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) Create(ctx context.Context, dto *user.CreateDTO) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}

	entity := user.New(tenantID, dto.Email, dto.DisplayName, dto.IsAdmin)
	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (user.User, error) {
		return s.repo.Create(txCtx, entity)
	})
	if err != nil {
		return user.User{}, err
	}
	s.publisher.Publish(UserCreatedEvent{Result: created})
	return created, nil
}

func (s *UserService) Update(ctx context.Context, data user.User) error {
	err := composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.repo.Update(txCtx, data)
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(UserUpdatedEvent{Result: data})
	return nil
}
