package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/aggregates/user"
	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/sequence"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/schedule"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/swap"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/override"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type SwapCreatedEvent struct {
	Result swap.Request
}

type SwapAcceptedEvent struct {
	Result swap.Request
}

type SwapRejectedEvent struct {
	Result swap.Request
}

type SwapCancelledEvent struct {
	Result swap.Request
}

var (
	ErrSwapWindowInverted  = serrors.Validation("SWAP_WINDOW_INVERTED", "original_end must be after original_start")
	ErrSwapWindowPast      = serrors.Validation("SWAP_WINDOW_PAST", "the shift being swapped must be in the future")
	ErrSwapExpiryPast      = serrors.Validation("SWAP_EXPIRY_PAST", "expires_at must be in the future")
	ErrSwapSelfOffer       = serrors.Validation("SWAP_SELF_OFFER", "cannot offer a swap to yourself")
	ErrSwapNotMember       = serrors.Validation("SWAP_NOT_MEMBER", "requester is not an active rotation member")
	ErrSwapTargetNotMember = serrors.Validation("SWAP_TARGET_NOT_MEMBER", "offered user is not an active rotation member")
	ErrSwapNoAccepter      = serrors.Validation("SWAP_NO_ACCEPTER", "an open swap needs an explicit accepter to approve")
	ErrSwapNotRequester    = serrors.Forbidden("SWAP_NOT_REQUESTER", "only the requester may modify this swap request")
	ErrSwapSelfAccept      = serrors.Forbidden("SWAP_SELF_ACCEPT", "cannot accept your own swap request")
	ErrSwapNotOffered      = serrors.Forbidden("SWAP_NOT_OFFERED", "this swap request is offered to someone else")
	ErrSwapNoRejectTarget  = serrors.Forbidden("SWAP_NO_REJECT_TARGET", "an open swap request has no one entitled to reject it")
	ErrSwapAccepterOutside = serrors.Forbidden("SWAP_ACCEPTER_OUTSIDE", "only active rotation members may accept an open swap")
	ErrSwapNotAdmin        = serrors.Forbidden("SWAP_NOT_ADMIN", "admin privileges are required to approve a swap")
	ErrSwapExpired         = serrors.InvalidState("SWAP_EXPIRED", "swap request has expired")
)

// SwapService runs the shift-swap workflow. Every transition is guarded
// by a conditional status write inside a tenant transaction, so two
// concurrent responses to the same request cannot both win.
type SwapService struct {
	repo      swap.Repository
	schedules schedule.Repository
	overrides override.Repository
	users     user.Repository
	sequences sequence.Repository
	clock     clockwork.Clock
	publisher eventbus.EventBus
}

func NewSwapService(
	repo swap.Repository,
	schedules schedule.Repository,
	overrides override.Repository,
	users user.Repository,
	sequences sequence.Repository,
	clock clockwork.Clock,
	publisher eventbus.EventBus,
) *SwapService {
	return &SwapService{
		repo:      repo,
		schedules: schedules,
		overrides: overrides,
		users:     users,
		sequences: sequences,
		clock:     clock,
		publisher: publisher,
	}
}

func (s *SwapService) GetPaginated(ctx context.Context, params *swap.FindParams) ([]*swap.Request, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

func (s *SwapService) GetByID(ctx context.Context, id uuid.UUID) (*swap.Request, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *SwapService) Create(ctx context.Context, dto *swap.CreateDTO) (*swap.Request, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !dto.OriginalEnd.After(dto.OriginalStart) {
		return nil, ErrSwapWindowInverted
	}
	if !dto.OriginalStart.After(now) {
		return nil, ErrSwapWindowPast
	}
	if dto.ExpiresAt != nil && !dto.ExpiresAt.After(now) {
		return nil, ErrSwapExpiryPast
	}
	if dto.OfferedToUserID != nil && *dto.OfferedToUserID == actorID {
		return nil, ErrSwapSelfOffer
	}

	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*swap.Request, error) {
		sched, err := s.schedules.GetByID(txCtx, dto.ScheduleID)
		if err != nil {
			return nil, err
		}
		if !sched.ActiveMember(actorID) {
			return nil, ErrSwapNotMember
		}

		entity := swap.New(tenantID, dto.ScheduleID, actorID, dto.OriginalStart, dto.OriginalEnd, dto.Reason)
		if dto.OfferedToUserID != nil {
			if !sched.ActiveMember(*dto.OfferedToUserID) {
				return nil, ErrSwapTargetNotMember
			}
			entity.Apply(swap.WithOfferedTo(*dto.OfferedToUserID))
		}
		if dto.OriginalShiftID != nil {
			entity.Apply(swap.WithOriginalShiftID(*dto.OriginalShiftID))
		}
		if dto.ExpiresAt != nil {
			entity.Apply(swap.WithExpiresAt(*dto.ExpiresAt))
		}

		seq, err := s.sequences.Next(txCtx, sequence.ScopeSwap)
		if err != nil {
			return nil, err
		}
		entity.Apply(swap.WithNumber(sequence.Format(sequence.ScopeSwap, seq)))

		return s.repo.Create(txCtx, entity)
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(SwapCreatedEvent{Result: *created})
	return created, nil
}

func (s *SwapService) Update(ctx context.Context, id uuid.UUID, dto *swap.UpdateDTO) (*swap.Request, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}

	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (*swap.Request, error) {
		entity, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if entity.RequesterID() != actorID {
			return nil, ErrSwapNotRequester
		}

		offeredTo := entity.OfferedToUserID()
		if dto.OfferedToUserID != nil {
			offeredTo = *dto.OfferedToUserID
			if offeredTo == actorID {
				return nil, ErrSwapSelfOffer
			}
			if offeredTo != uuid.Nil {
				sched, err := s.schedules.GetByID(txCtx, entity.ScheduleID())
				if err != nil {
					return nil, err
				}
				if !sched.ActiveMember(offeredTo) {
					return nil, ErrSwapTargetNotMember
				}
			}
		}
		reason := entity.Reason()
		if dto.Reason != nil {
			reason = *dto.Reason
		}
		expiresAt := entity.ExpiresAt()
		if dto.ExpiresAt != nil {
			if !dto.ExpiresAt.After(s.clock.Now()) {
				return nil, ErrSwapExpiryPast
			}
			expiresAt = *dto.ExpiresAt
		}

		if err := entity.AmendOffer(offeredTo, reason, expiresAt); err != nil {
			return nil, err
		}
		ok, err := s.repo.UpdatePending(txCtx, entity)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, swap.ErrNotPending
		}
		return entity, nil
	})
}

func (s *SwapService) Cancel(ctx context.Context, id uuid.UUID) (*swap.Request, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}

	cancelled, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*swap.Request, error) {
		entity, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if entity.RequesterID() != actorID {
			return nil, ErrSwapNotRequester
		}
		if err := entity.Cancel(); err != nil {
			return nil, err
		}
		return s.transition(txCtx, entity, swap.StatusPending)
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(SwapCancelledEvent{Result: *cancelled})
	return cancelled, nil
}

func (s *SwapService) Accept(ctx context.Context, id uuid.UUID, dto *swap.RespondDTO) (*swap.Request, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}

	accepted, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*swap.Request, error) {
		entity, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if entity.RequesterID() == actorID {
			return nil, ErrSwapSelfAccept
		}
		if entity.Status() == swap.StatusPending && entity.StaleAt(s.clock.Now()) {
			// A stale request is expired on first touch rather than
			// silently accepted past its window.
			if err := entity.Expire(); err != nil {
				return nil, err
			}
			if _, err := s.repo.UpdateStatus(txCtx, entity, swap.StatusPending); err != nil {
				return nil, err
			}
			return nil, ErrSwapExpired
		}
		if entity.Directed() {
			if entity.OfferedToUserID() != actorID {
				return nil, ErrSwapNotOffered
			}
		} else {
			sched, err := s.schedules.GetByID(txCtx, entity.ScheduleID())
			if err != nil {
				return nil, err
			}
			if !sched.ActiveMember(actorID) {
				return nil, ErrSwapAccepterOutside
			}
		}

		if err := entity.Accept(actorID, dto.Message, s.clock.Now()); err != nil {
			return nil, err
		}
		return s.acceptInTx(txCtx, entity)
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(SwapAcceptedEvent{Result: *accepted})
	return accepted, nil
}

func (s *SwapService) Reject(ctx context.Context, id uuid.UUID, dto *swap.RespondDTO) (*swap.Request, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}

	rejected, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*swap.Request, error) {
		entity, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if !entity.Directed() {
			return nil, ErrSwapNoRejectTarget
		}
		if entity.OfferedToUserID() != actorID {
			return nil, ErrSwapNotOffered
		}
		if err := entity.Reject(dto.Message, s.clock.Now()); err != nil {
			return nil, err
		}
		return s.transition(txCtx, entity, swap.StatusPending)
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(SwapRejectedEvent{Result: *rejected})
	return rejected, nil
}

// Approve lets an admin settle a pending swap on behalf of the accepter.
// An open swap needs an explicit accepter; a directed one defaults to its
// target.
func (s *SwapService) Approve(ctx context.Context, id uuid.UUID, dto *swap.ApproveDTO) (*swap.Request, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}

	approved, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*swap.Request, error) {
		actor, err := s.users.GetByID(txCtx, actorID)
		if err != nil {
			return nil, err
		}
		if !actor.IsAdmin() {
			return nil, ErrSwapNotAdmin
		}

		entity, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}

		accepterID := entity.OfferedToUserID()
		if dto.AccepterID != nil {
			accepterID = *dto.AccepterID
		}
		if accepterID == uuid.Nil {
			return nil, ErrSwapNoAccepter
		}
		if accepterID == entity.RequesterID() {
			return nil, ErrSwapSelfOffer
		}

		if err := entity.Approve(accepterID, actorID, s.clock.Now()); err != nil {
			return nil, err
		}
		return s.acceptInTx(txCtx, entity)
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(SwapAcceptedEvent{Result: *approved})
	return approved, nil
}

// ExpireStale and CompleteElapsed are the sweep entrypoints. Both are
// conditional updates keyed on current status and safe to re-run. Each
// pass touches at most limit rows so a backlog cannot pin one tenant's
// transaction open.
func (s *SwapService) ExpireStale(ctx context.Context, limit int) (int64, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (int64, error) {
		return s.repo.ExpireStale(txCtx, s.clock.Now(), limit)
	})
}

func (s *SwapService) CompleteElapsed(ctx context.Context, limit int) (int64, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (int64, error) {
		return s.repo.CompleteElapsed(txCtx, s.clock.Now(), limit)
	})
}

// acceptInTx persists an acceptance and creates the covering override in
// the same transaction, so a swap is never accepted without its override.
func (s *SwapService) acceptInTx(ctx context.Context, entity *swap.Request) (*swap.Request, error) {
	updated, err := s.transition(ctx, entity, swap.StatusPending)
	if err != nil {
		return nil, err
	}

	ov := override.New(
		entity.TenantID(),
		entity.ScheduleID(),
		entity.AccepterID(),
		entity.RequesterID(),
		entity.OriginalStart(),
		entity.OriginalEnd(),
		"shift swap "+entity.Number(),
	)
	if _, err := s.overrides.Create(ctx, ov); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SwapService) transition(ctx context.Context, entity *swap.Request, expected swap.Status) (*swap.Request, error) {
	ok, err := s.repo.UpdateStatus(ctx, entity, expected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, swap.ErrNotPending
	}
	return entity, nil
}
