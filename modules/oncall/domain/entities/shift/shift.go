package shift

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypePrimary   Type = "primary"
	TypeSecondary Type = "secondary"
)

// Shift is manually scheduled coverage outside the computed rotation,
// used for layered primary/secondary setups. Lower layer outranks higher;
// within a layer primary outranks secondary.
type Shift struct {
	tenantID   uuid.UUID
	id         uuid.UUID
	scheduleID uuid.UUID
	userID     uuid.UUID
	startTime  time.Time
	endTime    time.Time
	shiftType  Type
	layer      int
	createdAt  time.Time
}

func New(
	tenantID uuid.UUID,
	scheduleID uuid.UUID,
	userID uuid.UUID,
	startTime time.Time,
	endTime time.Time,
	shiftType Type,
	layer int,
) Shift {
	return Shift{
		tenantID:   tenantID,
		scheduleID: scheduleID,
		userID:     userID,
		startTime:  startTime,
		endTime:    endTime,
		shiftType:  shiftType,
		layer:      layer,
	}
}

func Hydrate(
	tenantID uuid.UUID,
	id uuid.UUID,
	scheduleID uuid.UUID,
	userID uuid.UUID,
	startTime time.Time,
	endTime time.Time,
	shiftType Type,
	layer int,
	createdAt time.Time,
) Shift {
	return Shift{
		tenantID:   tenantID,
		id:         id,
		scheduleID: scheduleID,
		userID:     userID,
		startTime:  startTime,
		endTime:    endTime,
		shiftType:  shiftType,
		layer:      layer,
		createdAt:  createdAt,
	}
}

func (s Shift) TenantID() uuid.UUID   { return s.tenantID }
func (s Shift) ID() uuid.UUID         { return s.id }
func (s Shift) ScheduleID() uuid.UUID { return s.scheduleID }
func (s Shift) UserID() uuid.UUID     { return s.userID }
func (s Shift) StartTime() time.Time  { return s.startTime }
func (s Shift) EndTime() time.Time    { return s.endTime }
func (s Shift) ShiftType() Type       { return s.shiftType }
func (s Shift) Layer() int            { return s.layer }
func (s Shift) CreatedAt() time.Time  { return s.createdAt }

func (s Shift) Contains(at time.Time) bool {
	return !at.Before(s.startTime) && at.Before(s.endTime)
}

type Repository interface {
	GetBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]Shift, error)
	// GetActiveAt returns shifts containing at, ordered by layer
	// ascending then primary before secondary.
	GetActiveAt(ctx context.Context, scheduleID uuid.UUID, at time.Time) ([]Shift, error)
	Create(ctx context.Context, data Shift) (Shift, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
