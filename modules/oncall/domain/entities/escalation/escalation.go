package escalation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotifyType string

const (
	NotifySchedule NotifyType = "schedule"
	NotifyUser     NotifyType = "user"
	NotifyGroup    NotifyType = "group"
)

// Step is one rung of an escalation ladder. Delay is relative to the
// previous step; step 1 always fires immediately.
type Step struct {
	StepNumber   int
	DelayMinutes int
	NotifyType   NotifyType
	TargetID     uuid.UUID
	Channels     []string
}

// Policy is an ordered escalation ladder, optionally repeated while an
// incident stays unacknowledged.
type Policy struct {
	tenantID           uuid.UUID
	id                 uuid.UUID
	name               string
	repeatCount        int
	repeatDelayMinutes int
	steps              []Step
	createdAt          time.Time
	updatedAt          time.Time
}

func New(tenantID uuid.UUID, name string, repeatCount, repeatDelayMinutes int, steps []Step) *Policy {
	return &Policy{
		tenantID:           tenantID,
		name:               name,
		repeatCount:        repeatCount,
		repeatDelayMinutes: repeatDelayMinutes,
		steps:              steps,
	}
}

func Hydrate(
	tenantID uuid.UUID,
	id uuid.UUID,
	name string,
	repeatCount int,
	repeatDelayMinutes int,
	steps []Step,
	createdAt time.Time,
	updatedAt time.Time,
) *Policy {
	return &Policy{
		tenantID:           tenantID,
		id:                 id,
		name:               name,
		repeatCount:        repeatCount,
		repeatDelayMinutes: repeatDelayMinutes,
		steps:              steps,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

func (p *Policy) TenantID() uuid.UUID     { return p.tenantID }
func (p *Policy) ID() uuid.UUID           { return p.id }
func (p *Policy) Name() string            { return p.name }
func (p *Policy) RepeatCount() int        { return p.repeatCount }
func (p *Policy) RepeatDelayMinutes() int { return p.repeatDelayMinutes }
func (p *Policy) Steps() []Step           { return p.steps }
func (p *Policy) CreatedAt() time.Time    { return p.createdAt }
func (p *Policy) UpdatedAt() time.Time    { return p.updatedAt }

type Repository interface {
	GetAll(ctx context.Context) ([]*Policy, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Policy, error)
	Create(ctx context.Context, data *Policy) (*Policy, error)
	Update(ctx context.Context, data *Policy) error
	Delete(ctx context.Context, id uuid.UUID) error
}
