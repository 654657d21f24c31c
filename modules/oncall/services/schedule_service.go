package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/schedule"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/override"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/shift"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

// ErrDuplicatePosition rejects rotation member sets where two active members
// share a position. Rotation order is keyed by position.
var ErrDuplicatePosition = serrors.Validation(
	"SCHEDULE_DUPLICATE_POSITION",
	"active rotation members must have distinct positions",
)

func duplicateActivePosition(slots []schedule.MemberInput) bool {
	seen := make(map[int]struct{}, len(slots))
	for _, m := range slots {
		if !m.IsActive {
			continue
		}
		if _, ok := seen[m.Position]; ok {
			return true
		}
		seen[m.Position] = struct{}{}
	}
	return false
}

type ScheduleCreatedEvent struct {
	Result schedule.Schedule
}

type ScheduleUpdatedEvent struct {
	Result schedule.Schedule
}

type OverrideCreatedEvent struct {
	Result override.Override
}

type ScheduleService struct {
	repo      schedule.Repository
	overrides override.Repository
	shifts    shift.Repository
	publisher eventbus.EventBus
}

func NewScheduleService(
	repo schedule.Repository,
	overrides override.Repository,
	shifts shift.Repository,
	publisher eventbus.EventBus,
) *ScheduleService {
	return &ScheduleService{
		repo:      repo,
		overrides: overrides,
		shifts:    shifts,
		publisher: publisher,
	}
}

func (s *ScheduleService) GetPaginated(ctx context.Context, params *schedule.FindParams) ([]*schedule.Schedule, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

func (s *ScheduleService) GetByID(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ScheduleService) Create(ctx context.Context, dto *schedule.CreateDTO) (*schedule.Schedule, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	slots := make([]schedule.MemberInput, 0, len(dto.Members))
	for _, m := range dto.Members {
		slots = append(slots, schedule.MemberInput{UserID: m.UserID, Position: m.Position, IsActive: m.IsActive})
	}
	if duplicateActivePosition(slots) {
		return nil, ErrDuplicatePosition
	}

	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*schedule.Schedule, error) {
		return s.repo.Create(txCtx, dto.ToEntity(tenantID))
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ScheduleCreatedEvent{Result: *created})
	return created, nil
}

func (s *ScheduleService) Update(ctx context.Context, id uuid.UUID, dto *schedule.UpdateDTO) (*schedule.Schedule, error) {
	updated, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*schedule.Schedule, error) {
		entity, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if dto.Name != nil {
			entity.Rename(*dto.Name)
		}
		if dto.IsActive != nil && !*dto.IsActive {
			entity.Deactivate()
		}
		if err := s.repo.Update(txCtx, entity); err != nil {
			return nil, err
		}
		return entity, nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ScheduleUpdatedEvent{Result: *updated})
	return updated, nil
}

// ReplaceMembers swaps the full rotation member set. Past on-call
// assignments are not recomputed.
func (s *ScheduleService) ReplaceMembers(ctx context.Context, scheduleID uuid.UUID, members []schedule.MemberInput) error {
	if duplicateActivePosition(members) {
		return ErrDuplicatePosition
	}
	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetByID(txCtx, scheduleID); err != nil {
			return err
		}
		return s.repo.ReplaceMembers(txCtx, scheduleID, members)
	})
}

func (s *ScheduleService) CreateOverride(ctx context.Context, data override.Override) (override.Override, error) {
	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (override.Override, error) {
		if _, err := s.repo.GetByID(txCtx, data.ScheduleID()); err != nil {
			return override.Override{}, err
		}
		return s.overrides.Create(txCtx, data)
	})
	if err != nil {
		return override.Override{}, err
	}
	s.publisher.Publish(OverrideCreatedEvent{Result: created})
	return created, nil
}

func (s *ScheduleService) DeleteOverride(ctx context.Context, id uuid.UUID) error {
	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.overrides.Delete(txCtx, id)
	})
}

func (s *ScheduleService) CreateShift(ctx context.Context, data shift.Shift) (shift.Shift, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (shift.Shift, error) {
		if _, err := s.repo.GetByID(txCtx, data.ScheduleID()); err != nil {
			return shift.Shift{}, err
		}
		return s.shifts.Create(txCtx, data)
	})
}

func (s *ScheduleService) DeleteShift(ctx context.Context, id uuid.UUID) error {
	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.shifts.Delete(txCtx, id)
	})
}

func (s *ScheduleService) LinkApplication(ctx context.Context, scheduleID, applicationID uuid.UUID) error {
	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetByID(txCtx, scheduleID); err != nil {
			return err
		}
		return s.repo.LinkApplication(txCtx, scheduleID, applicationID)
	})
}

func (s *ScheduleService) UnlinkApplication(ctx context.Context, scheduleID, applicationID uuid.UUID) error {
	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.repo.UnlinkApplication(txCtx, scheduleID, applicationID)
	})
}
