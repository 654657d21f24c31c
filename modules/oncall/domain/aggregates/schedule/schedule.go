package schedule

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/rotation"
)

// Schedule is a named rotation. It owns its rotation members; overrides
// and shifts reference it but live as separate entities.
type Schedule struct {
	tenantID           uuid.UUID
	id                 uuid.UUID
	name               string
	timezone           string
	rotationKind       rotation.Kind
	rotationLengthDays int
	handoffTime        string
	handoffWeekday     time.Weekday
	epoch              time.Time
	isActive           bool
	createdAt          time.Time
	updatedAt          time.Time

	members []rotation.Member
}

type Option func(*Schedule)

func WithMembers(members []rotation.Member) Option {
	return func(s *Schedule) { s.members = members }
}

func WithEpoch(epoch time.Time) Option {
	return func(s *Schedule) { s.epoch = epoch }
}

func New(
	tenantID uuid.UUID,
	name string,
	timezone string,
	kind rotation.Kind,
	lengthDays int,
	handoffTime string,
	handoffWeekday time.Weekday,
	opts ...Option,
) *Schedule {
	s := &Schedule{
		tenantID:           tenantID,
		name:               strings.TrimSpace(name),
		timezone:           timezone,
		rotationKind:       kind,
		rotationLengthDays: lengthDays,
		handoffTime:        handoffTime,
		handoffWeekday:     handoffWeekday,
		isActive:           true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func Hydrate(
	tenantID uuid.UUID,
	id uuid.UUID,
	name string,
	timezone string,
	kind rotation.Kind,
	lengthDays int,
	handoffTime string,
	handoffWeekday time.Weekday,
	epoch time.Time,
	isActive bool,
	createdAt time.Time,
	updatedAt time.Time,
	members []rotation.Member,
) *Schedule {
	return &Schedule{
		tenantID:           tenantID,
		id:                 id,
		name:               name,
		timezone:           timezone,
		rotationKind:       kind,
		rotationLengthDays: lengthDays,
		handoffTime:        handoffTime,
		handoffWeekday:     handoffWeekday,
		epoch:              epoch,
		isActive:           isActive,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
		members:            members,
	}
}

func (s *Schedule) TenantID() uuid.UUID          { return s.tenantID }
func (s *Schedule) ID() uuid.UUID                { return s.id }
func (s *Schedule) Name() string                 { return s.name }
func (s *Schedule) Timezone() string             { return s.timezone }
func (s *Schedule) RotationKind() rotation.Kind  { return s.rotationKind }
func (s *Schedule) RotationLengthDays() int      { return s.rotationLengthDays }
func (s *Schedule) HandoffTime() string          { return s.handoffTime }
func (s *Schedule) HandoffWeekday() time.Weekday { return s.handoffWeekday }
func (s *Schedule) Epoch() time.Time             { return s.epoch }
func (s *Schedule) IsActive() bool               { return s.isActive }
func (s *Schedule) CreatedAt() time.Time         { return s.createdAt }
func (s *Schedule) UpdatedAt() time.Time         { return s.updatedAt }
func (s *Schedule) Members() []rotation.Member   { return s.members }

// RotationSettings projects the schedule into the cadence the rotation
// calculator consumes.
func (s *Schedule) RotationSettings() rotation.Settings {
	return rotation.Settings{
		Timezone:       s.timezone,
		Kind:           s.rotationKind,
		LengthDays:     s.rotationLengthDays,
		HandoffTime:    s.handoffTime,
		HandoffWeekday: s.handoffWeekday,
		Epoch:          s.epoch,
	}
}

// ActiveMember reports whether userID is an active rotation member.
func (s *Schedule) ActiveMember(userID uuid.UUID) bool {
	for _, m := range rotation.ActiveByPosition(s.members) {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (s *Schedule) Rename(name string) {
	s.name = strings.TrimSpace(name)
}

// Deactivate soft-deletes the schedule. Swap and override history keeps
// referencing it, so schedules are never hard-deleted.
func (s *Schedule) Deactivate() {
	s.isActive = false
}

func (s *Schedule) SetMembers(members []rotation.Member) {
	s.members = members
}
