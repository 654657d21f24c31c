package override

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Override is a manually pinned on-call assignment. It outranks shift and
// rotation coverage during its half-open [start, end) window. When
// several overrides overlap the same instant the most recently created
// one wins.
type Override struct {
	tenantID       uuid.UUID
	id             uuid.UUID
	scheduleID     uuid.UUID
	userID         uuid.UUID
	originalUserID uuid.UUID
	startTime      time.Time
	endTime        time.Time
	reason         string
	createdAt      time.Time
}

func New(
	tenantID uuid.UUID,
	scheduleID uuid.UUID,
	userID uuid.UUID,
	originalUserID uuid.UUID,
	startTime time.Time,
	endTime time.Time,
	reason string,
) Override {
	return Override{
		tenantID:       tenantID,
		scheduleID:     scheduleID,
		userID:         userID,
		originalUserID: originalUserID,
		startTime:      startTime,
		endTime:        endTime,
		reason:         reason,
	}
}

func Hydrate(
	tenantID uuid.UUID,
	id uuid.UUID,
	scheduleID uuid.UUID,
	userID uuid.UUID,
	originalUserID uuid.UUID,
	startTime time.Time,
	endTime time.Time,
	reason string,
	createdAt time.Time,
) Override {
	return Override{
		tenantID:       tenantID,
		id:             id,
		scheduleID:     scheduleID,
		userID:         userID,
		originalUserID: originalUserID,
		startTime:      startTime,
		endTime:        endTime,
		reason:         reason,
		createdAt:      createdAt,
	}
}

func (o Override) TenantID() uuid.UUID       { return o.tenantID }
func (o Override) ID() uuid.UUID             { return o.id }
func (o Override) ScheduleID() uuid.UUID     { return o.scheduleID }
func (o Override) UserID() uuid.UUID         { return o.userID }
func (o Override) OriginalUserID() uuid.UUID { return o.originalUserID }
func (o Override) StartTime() time.Time      { return o.startTime }
func (o Override) EndTime() time.Time        { return o.endTime }
func (o Override) Reason() string            { return o.reason }
func (o Override) CreatedAt() time.Time      { return o.createdAt }

func (o Override) Contains(at time.Time) bool {
	return !at.Before(o.startTime) && at.Before(o.endTime)
}

type Repository interface {
	GetBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]Override, error)
	// GetActiveAt returns overrides containing at, most recently created
	// first.
	GetActiveAt(ctx context.Context, scheduleID uuid.UUID, at time.Time) ([]Override, error)
	GetInRange(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]Override, error)
	Create(ctx context.Context, data Override) (Override, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
