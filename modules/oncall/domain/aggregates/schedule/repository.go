package schedule

import (
	"context"

	"github.com/google/uuid"
)

type FindParams struct {
	Q          string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type Repository interface {
	GetPaginated(ctx context.Context, params *FindParams) ([]*Schedule, int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	GetByApplicationID(ctx context.Context, applicationID uuid.UUID) ([]*Schedule, error)
	Create(ctx context.Context, data *Schedule) (*Schedule, error)
	Update(ctx context.Context, data *Schedule) error
	ReplaceMembers(ctx context.Context, scheduleID uuid.UUID, members []MemberInput) error
	LinkApplication(ctx context.Context, scheduleID, applicationID uuid.UUID) error
	UnlinkApplication(ctx context.Context, scheduleID, applicationID uuid.UUID) error
}

// MemberInput is one desired rotation slot; ReplaceMembers swaps the full
// member set atomically.
type MemberInput struct {
	UserID   uuid.UUID
	Position int
	IsActive bool
}
