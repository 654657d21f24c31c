package incident

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type Status string

const (
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusAcknowledged, StatusResolved:
		return true
	}
	return false
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

var (
	ErrAlreadyAcknowledged = serrors.InvalidState("INCIDENT_ALREADY_ACKNOWLEDGED", "incident is already acknowledged")
	ErrAlreadyResolved     = serrors.InvalidState("INCIDENT_ALREADY_RESOLVED", "incident is already resolved")
)

// Incident is a single tracked outage or degradation. Resolution is
// terminal; acknowledgement stops any pending escalation.
type Incident struct {
	tenantID       uuid.UUID
	id             uuid.UUID
	number         string
	title          string
	description    string
	status         Status
	severity       Severity
	policyID       uuid.UUID
	acknowledgedBy uuid.UUID
	acknowledgedAt time.Time
	resolvedBy     uuid.UUID
	resolvedAt     time.Time
	createdAt      time.Time
	updatedAt      time.Time
}

type Option func(i *Incident)

func WithNumber(number string) Option {
	return func(i *Incident) {
		i.number = number
	}
}

func WithPolicy(policyID uuid.UUID) Option {
	return func(i *Incident) {
		i.policyID = policyID
	}
}

func New(tenantID uuid.UUID, title, description string, severity Severity, opts ...Option) *Incident {
	i := &Incident{
		tenantID:    tenantID,
		title:       title,
		description: description,
		status:      StatusOpen,
		severity:    severity,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Incident) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(i)
	}
}

func Hydrate(
	tenantID uuid.UUID,
	id uuid.UUID,
	number string,
	title string,
	description string,
	status Status,
	severity Severity,
	policyID uuid.UUID,
	acknowledgedBy uuid.UUID,
	acknowledgedAt time.Time,
	resolvedBy uuid.UUID,
	resolvedAt time.Time,
	createdAt time.Time,
	updatedAt time.Time,
) *Incident {
	return &Incident{
		tenantID:       tenantID,
		id:             id,
		number:         number,
		title:          title,
		description:    description,
		status:         status,
		severity:       severity,
		policyID:       policyID,
		acknowledgedBy: acknowledgedBy,
		acknowledgedAt: acknowledgedAt,
		resolvedBy:     resolvedBy,
		resolvedAt:     resolvedAt,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (i *Incident) TenantID() uuid.UUID       { return i.tenantID }
func (i *Incident) ID() uuid.UUID             { return i.id }
func (i *Incident) Number() string            { return i.number }
func (i *Incident) Title() string             { return i.title }
func (i *Incident) Description() string       { return i.description }
func (i *Incident) Status() Status            { return i.status }
func (i *Incident) Severity() Severity        { return i.severity }
func (i *Incident) PolicyID() uuid.UUID       { return i.policyID }
func (i *Incident) AcknowledgedBy() uuid.UUID { return i.acknowledgedBy }
func (i *Incident) AcknowledgedAt() time.Time { return i.acknowledgedAt }
func (i *Incident) ResolvedBy() uuid.UUID     { return i.resolvedBy }
func (i *Incident) ResolvedAt() time.Time     { return i.resolvedAt }
func (i *Incident) CreatedAt() time.Time      { return i.createdAt }
func (i *Incident) UpdatedAt() time.Time      { return i.updatedAt }

func (i *Incident) Acknowledge(by uuid.UUID, at time.Time) error {
	switch i.status {
	case StatusAcknowledged:
		return ErrAlreadyAcknowledged
	case StatusResolved:
		return ErrAlreadyResolved
	}
	i.status = StatusAcknowledged
	i.acknowledgedBy = by
	i.acknowledgedAt = at
	return nil
}

// Resolve is allowed from both open and acknowledged; an unacknowledged
// incident resolved directly records the resolver as acknowledger too.
func (i *Incident) Resolve(by uuid.UUID, at time.Time) error {
	if i.status == StatusResolved {
		return ErrAlreadyResolved
	}
	if i.status == StatusOpen {
		i.acknowledgedBy = by
		i.acknowledgedAt = at
	}
	i.status = StatusResolved
	i.resolvedBy = by
	i.resolvedAt = at
	return nil
}

func (i *Incident) Retitle(title string) {
	i.title = title
}

func (i *Incident) SetDescription(description string) {
	i.description = description
}

func (i *Incident) SetSeverity(severity Severity) {
	i.severity = severity
}
