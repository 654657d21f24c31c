package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/sequence"
	"github.com/opsdesk-io/opsdesk/modules/incident/domain/aggregates/incident"
	oncallservices "github.com/opsdesk-io/opsdesk/modules/oncall/services"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

var (
	ErrNoEscalationPolicy = serrors.Validation("INCIDENT_NO_POLICY", "incident has no escalation policy")
)

type IncidentCreatedEvent struct {
	Result incident.Incident
}

type IncidentAcknowledgedEvent struct {
	Result incident.Incident
}

type IncidentResolvedEvent struct {
	Result incident.Incident
}

type IncidentService struct {
	repo       incident.Repository
	sequences  sequence.Repository
	escalation *oncallservices.EscalationService
	clock      clockwork.Clock
	publisher  eventbus.EventBus
}

func NewIncidentService(
	repo incident.Repository,
	sequences sequence.Repository,
	escalation *oncallservices.EscalationService,
	clock clockwork.Clock,
	publisher eventbus.EventBus,
) *IncidentService {
	return &IncidentService{
		repo:       repo,
		sequences:  sequences,
		escalation: escalation,
		clock:      clock,
		publisher:  publisher,
	}
}

func (s *IncidentService) GetPaginated(ctx context.Context, params *incident.FindParams) ([]*incident.Incident, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

func (s *IncidentService) GetByID(ctx context.Context, id uuid.UUID) (*incident.Incident, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *IncidentService) Create(ctx context.Context, dto *incident.CreateDTO) (*incident.Incident, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*incident.Incident, error) {
		entity := dto.ToEntity(tenantID)

		seq, err := s.sequences.Next(txCtx, sequence.ScopeIncident)
		if err != nil {
			return nil, err
		}
		entity.Apply(incident.WithNumber(sequence.Format(sequence.ScopeIncident, seq)))

		return s.repo.Create(txCtx, entity)
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(IncidentCreatedEvent{Result: *created})
	return created, nil
}

func (s *IncidentService) Update(ctx context.Context, id uuid.UUID, dto *incident.UpdateDTO) (*incident.Incident, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (*incident.Incident, error) {
		entity, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if dto.Title != nil {
			entity.Retitle(*dto.Title)
		}
		if dto.Description != nil {
			entity.SetDescription(*dto.Description)
		}
		if dto.Severity != nil {
			entity.SetSeverity(incident.Severity(*dto.Severity))
		}
		return s.repo.Update(txCtx, entity)
	})
}

func (s *IncidentService) Acknowledge(ctx context.Context, id uuid.UUID) (*incident.Incident, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*incident.Incident, error) {
		entity, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if err := entity.Acknowledge(actorID, s.clock.Now()); err != nil {
			return nil, err
		}
		return s.repo.Update(txCtx, entity)
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(IncidentAcknowledgedEvent{Result: *updated})
	return updated, nil
}

func (s *IncidentService) Resolve(ctx context.Context, id uuid.UUID) (*incident.Incident, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*incident.Incident, error) {
		entity, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if err := entity.Resolve(actorID, s.clock.Now()); err != nil {
			return nil, err
		}
		return s.repo.Update(txCtx, entity)
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(IncidentResolvedEvent{Result: *updated})
	return updated, nil
}

// EscalationPreview evaluates the incident's policy from startAt without
// dispatching anything. Zero startAt means "from now".
func (s *IncidentService) EscalationPreview(ctx context.Context, id uuid.UUID, startAt time.Time) ([]oncallservices.Action, error) {
	entity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity.PolicyID() == uuid.Nil {
		return nil, ErrNoEscalationPolicy
	}
	if startAt.IsZero() {
		startAt = s.clock.Now()
	}
	return s.escalation.BuildPlan(ctx, entity.PolicyID(), startAt)
}
