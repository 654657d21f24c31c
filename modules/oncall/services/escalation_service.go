package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/group"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/escalation"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

// Action is one planned notification: who to reach, over which channels,
// and when. The evaluator only computes the plan; delivery belongs to a
// Dispatcher.
type Action struct {
	FireAt     time.Time
	Cycle      int
	StepNumber int
	NotifyType escalation.NotifyType
	TargetID   uuid.UUID
	UserIDs    []uuid.UUID
	Channels   []string
}

type Dispatcher interface {
	Dispatch(ctx context.Context, action Action) error
}

type EscalationTriggeredEvent struct {
	Action Action
}

// LogDispatcher is the default delivery collaborator: it records the
// action and republishes it on the event bus for notification adapters.
type LogDispatcher struct {
	logger    *logrus.Logger
	publisher eventbus.EventBus
}

func NewLogDispatcher(logger *logrus.Logger, publisher eventbus.EventBus) *LogDispatcher {
	return &LogDispatcher{logger: logger, publisher: publisher}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, action Action) error {
	d.logger.WithFields(logrus.Fields{
		"fire_at":     action.FireAt,
		"cycle":       action.Cycle,
		"step":        action.StepNumber,
		"notify_type": action.NotifyType,
		"targets":     len(action.UserIDs),
	}).Info("escalation step planned")
	d.publisher.Publish(EscalationTriggeredEvent{Action: action})
	return nil
}

type EscalationService struct {
	repo     escalation.Repository
	resolver *OnCallService
	groups   group.Repository
}

func NewEscalationService(
	repo escalation.Repository,
	resolver *OnCallService,
	groups group.Repository,
) *EscalationService {
	return &EscalationService{
		repo:     repo,
		resolver: resolver,
		groups:   groups,
	}
}

func (s *EscalationService) GetAll(ctx context.Context) ([]*escalation.Policy, error) {
	return s.repo.GetAll(ctx)
}

func (s *EscalationService) GetByID(ctx context.Context, id uuid.UUID) (*escalation.Policy, error) {
	return s.repo.GetByID(ctx, id)
}

// ErrFirstStepDelayed rejects policies whose first step would not fire
// immediately. The first escalation step always fires at the trigger instant.
var ErrFirstStepDelayed = serrors.Validation(
	"ESCALATION_FIRST_STEP_DELAYED",
	"the first escalation step must have a delay of zero",
)

func validateSteps(steps []escalation.Step) error {
	first := -1
	for i, step := range steps {
		if first < 0 || step.StepNumber < steps[first].StepNumber {
			first = i
		}
	}
	if first >= 0 && steps[first].DelayMinutes != 0 {
		return ErrFirstStepDelayed
	}
	return nil
}

func (s *EscalationService) Create(ctx context.Context, data *escalation.Policy) (*escalation.Policy, error) {
	if err := validateSteps(data.Steps()); err != nil {
		return nil, err
	}
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (*escalation.Policy, error) {
		return s.repo.Create(txCtx, data)
	})
}

func (s *EscalationService) Update(ctx context.Context, data *escalation.Policy) error {
	if err := validateSteps(data.Steps()); err != nil {
		return err
	}
	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.repo.Update(txCtx, data)
	})
}

func (s *EscalationService) Delete(ctx context.Context, id uuid.UUID) error {
	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, id)
	})
}

// BuildPlan evaluates a policy into the ordered notification actions for
// an incident escalating from startAt. Step delays accumulate within a
// cycle; the whole sequence then repeats repeatCount further times, each
// cycle starting repeatDelayMinutes after the previous cycle's last step.
// Schedule targets resolve to whoever is on call at the step's fire time.
func (s *EscalationService) BuildPlan(ctx context.Context, policyID uuid.UUID, startAt time.Time) ([]Action, error) {
	policy, err := s.repo.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}

	cycles := 1 + policy.RepeatCount()
	actions := make([]Action, 0, cycles*len(policy.Steps()))
	cycleStart := startAt
	for cycle := 1; cycle <= cycles; cycle++ {
		fireAt := cycleStart
		for _, step := range policy.Steps() {
			fireAt = fireAt.Add(time.Duration(step.DelayMinutes) * time.Minute)
			userIDs, err := s.resolveTarget(ctx, step, fireAt)
			if err != nil {
				return nil, err
			}
			actions = append(actions, Action{
				FireAt:     fireAt,
				Cycle:      cycle,
				StepNumber: step.StepNumber,
				NotifyType: step.NotifyType,
				TargetID:   step.TargetID,
				UserIDs:    userIDs,
				Channels:   step.Channels,
			})
		}
		cycleStart = fireAt.Add(time.Duration(policy.RepeatDelayMinutes()) * time.Minute)
	}
	return actions, nil
}

// Run builds the plan and hands every action to the dispatcher.
func (s *EscalationService) Run(ctx context.Context, policyID uuid.UUID, startAt time.Time, dispatcher Dispatcher) error {
	actions, err := s.BuildPlan(ctx, policyID, startAt)
	if err != nil {
		return err
	}
	for _, action := range actions {
		if err := dispatcher.Dispatch(ctx, action); err != nil {
			return err
		}
	}
	return nil
}

func (s *EscalationService) resolveTarget(ctx context.Context, step escalation.Step, at time.Time) ([]uuid.UUID, error) {
	switch step.NotifyType {
	case escalation.NotifySchedule:
		assignment, err := s.resolver.WhoIsOnCall(ctx, step.TargetID, at)
		if err != nil {
			return nil, err
		}
		return []uuid.UUID{assignment.UserID}, nil
	case escalation.NotifyGroup:
		g, err := s.groups.GetByID(ctx, step.TargetID)
		if err != nil {
			return nil, err
		}
		return g.MemberIDs(), nil
	default:
		return []uuid.UUID{step.TargetID}, nil
	}
}
