package group

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Group is a named set of users, used as an escalation notify target.
type Group struct {
	tenantID  uuid.UUID
	id        uuid.UUID
	name      string
	memberIDs []uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

func New(tenantID uuid.UUID, name string, memberIDs []uuid.UUID) Group {
	return Group{
		tenantID:  tenantID,
		name:      strings.TrimSpace(name),
		memberIDs: memberIDs,
	}
}

func Hydrate(
	tenantID uuid.UUID,
	id uuid.UUID,
	name string,
	memberIDs []uuid.UUID,
	createdAt time.Time,
	updatedAt time.Time,
) Group {
	return Group{
		tenantID:  tenantID,
		id:        id,
		name:      strings.TrimSpace(name),
		memberIDs: memberIDs,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (g Group) TenantID() uuid.UUID    { return g.tenantID }
func (g Group) ID() uuid.UUID          { return g.id }
func (g Group) Name() string           { return g.name }
func (g Group) MemberIDs() []uuid.UUID { return g.memberIDs }
func (g Group) CreatedAt() time.Time   { return g.createdAt }
func (g Group) UpdatedAt() time.Time   { return g.updatedAt }

type Repository interface {
	GetAll(ctx context.Context) ([]Group, error)
	GetByID(ctx context.Context, id uuid.UUID) (Group, error)
	Create(ctx context.Context, g Group) (Group, error)
	Update(ctx context.Context, g Group) error
	Delete(ctx context.Context, id uuid.UUID) error
}
