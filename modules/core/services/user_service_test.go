package services_test

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/aggregates/user"
	"github.com/opsdesk-io/opsdesk/modules/core/services"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
)

// noopTx satisfies pgx.Tx for services whose repositories never touch the
// database connection in tests.
type noopTx struct {
	pgx.Tx
}

type userRepoStub struct {
	users map[uuid.UUID]user.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[uuid.UUID]user.User)}
}

func (r *userRepoStub) GetPaginated(ctx context.Context, params *user.FindParams) ([]user.User, int64, error) {
	out := make([]user.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (r *userRepoStub) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	return r.users[id], nil
}

func (r *userRepoStub) GetByEmail(ctx context.Context, email string) (user.User, error) {
	for _, u := range r.users {
		if u.Email() == email {
			return u, nil
		}
	}
	return user.User{}, nil
}

func (r *userRepoStub) Create(ctx context.Context, data user.User) (user.User, error) {
	created := user.Hydrate(
		data.TenantID(), uuid.New(), data.Email(), data.DisplayName(),
		data.IsActive(), data.IsAdmin(), data.CreatedAt(), data.UpdatedAt(),
	)
	r.users[created.ID()] = created
	return created, nil
}

func (r *userRepoStub) Update(ctx context.Context, data user.User) error {
	r.users[data.ID()] = data
	return nil
}

func newTestPublisher() eventbus.EventBus {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return eventbus.NewEventPublisher(log)
}

func TestUserService_Create(t *testing.T) {
	tenantID := uuid.New()
	ctx := composables.WithTenantID(context.Background(), tenantID)
	ctx = composables.WithTx(ctx, noopTx{})

	publisher := newTestPublisher()
	var published []services.UserCreatedEvent
	publisher.Subscribe(func(event services.UserCreatedEvent) {
		published = append(published, event)
	})

	svc := services.NewUserService(newUserRepoStub(), publisher)

	dto := &user.CreateDTO{Email: "  Alice@Example.COM ", DisplayName: "Alice"}
	dto.Normalize()
	errs, ok := dto.Ok()
	require.True(t, ok, "unexpected validation errors: %v", errs)

	created, err := svc.Create(ctx, dto)
	require.NoError(t, err)

	assert.Equal(t, tenantID, created.TenantID())
	assert.Equal(t, "alice@example.com", created.Email())
	assert.True(t, created.IsActive())
	require.Len(t, published, 1)
	assert.Equal(t, created.ID(), published[0].Result.ID())
}

func TestUserService_Create_MissingTenant(t *testing.T) {
	svc := services.NewUserService(newUserRepoStub(), newTestPublisher())

	_, err := svc.Create(context.Background(), &user.CreateDTO{
		Email:       "bob@example.com",
		DisplayName: "Bob",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, composables.ErrNoTenant)
}
