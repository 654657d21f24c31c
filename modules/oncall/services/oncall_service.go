package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/schedule"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/override"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/shift"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/rotation"
)

// AssignmentSource names the layer that produced an on-call assignment.
type AssignmentSource string

const (
	SourceOverride AssignmentSource = "override"
	SourceShift    AssignmentSource = "shift"
	SourceRotation AssignmentSource = "rotation"
)

type Assignment struct {
	ScheduleID uuid.UUID
	UserID     uuid.UUID
	Source     AssignmentSource
}

// OnCallService answers "who is on call" by layering manual exceptions
// over the computed rotation: a containing override wins, then the best
// containing shift, then the rotation engine.
type OnCallService struct {
	schedules schedule.Repository
	overrides override.Repository
	shifts    shift.Repository
}

func NewOnCallService(
	schedules schedule.Repository,
	overrides override.Repository,
	shifts shift.Repository,
) *OnCallService {
	return &OnCallService{
		schedules: schedules,
		overrides: overrides,
		shifts:    shifts,
	}
}

func (s *OnCallService) WhoIsOnCall(ctx context.Context, scheduleID uuid.UUID, at time.Time) (Assignment, error) {
	sched, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return Assignment{}, err
	}
	return s.resolve(ctx, sched, at)
}

// WhoIsOnCallForApp resolves every schedule linked to the application.
// An application covered by primary and secondary schedules yields one
// assignment per schedule.
func (s *OnCallService) WhoIsOnCallForApp(ctx context.Context, applicationID uuid.UUID, at time.Time) ([]Assignment, error) {
	scheds, err := s.schedules.GetByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	assignments := make([]Assignment, 0, len(scheds))
	for _, sched := range scheds {
		a, err := s.resolve(ctx, sched, at)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, nil
}

func (s *OnCallService) resolve(ctx context.Context, sched *schedule.Schedule, at time.Time) (Assignment, error) {
	// Overrides come back most recently created first, so the head of
	// the list settles overlaps.
	active, err := s.overrides.GetActiveAt(ctx, sched.ID(), at)
	if err != nil {
		return Assignment{}, err
	}
	if len(active) > 0 {
		return Assignment{ScheduleID: sched.ID(), UserID: active[0].UserID(), Source: SourceOverride}, nil
	}

	// Shifts come back lowest layer first, primary before secondary.
	shifts, err := s.shifts.GetActiveAt(ctx, sched.ID(), at)
	if err != nil {
		return Assignment{}, err
	}
	if len(shifts) > 0 {
		return Assignment{ScheduleID: sched.ID(), UserID: shifts[0].UserID(), Source: SourceShift}, nil
	}

	current, err := rotation.CurrentMember(sched.RotationSettings(), sched.Members(), at)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{ScheduleID: sched.ID(), UserID: current.UserID, Source: SourceRotation}, nil
}
