package services_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/aggregates/user"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/swap"
	"github.com/opsdesk-io/opsdesk/modules/oncall/services"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type swapFixture struct {
	tenantID  uuid.UUID
	requester uuid.UUID
	target    uuid.UUID
	outsider  uuid.UUID
	admin     uuid.UUID

	scheduleID uuid.UUID
	clock      *clockwork.FakeClock
	schedules  *scheduleRepoStub
	overrides  *overrideRepoStub
	swaps      *swapRepoStub
	oncall     *services.OnCallService
	svc        *services.SwapService
}

func newSwapFixture(t *testing.T) *swapFixture {
	t.Helper()
	f := &swapFixture{
		tenantID:  uuid.New(),
		requester: uuid.New(),
		target:    uuid.New(),
		outsider:  uuid.New(),
		admin:     uuid.New(),
		clock:     clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)),
		schedules: newScheduleRepoStub(),
		overrides: newOverrideRepoStub(),
		swaps:     newSwapRepoStub(),
	}

	sched := seedSchedule(t, f.schedules, f.tenantID, f.requester, f.target)
	f.scheduleID = sched.ID()

	users := newUserRepoStub()
	users.put(user.Hydrate(f.tenantID, f.requester, "req@example.com", "Req", true, false, time.Now(), time.Now()))
	users.put(user.Hydrate(f.tenantID, f.target, "target@example.com", "Target", true, false, time.Now(), time.Now()))
	users.put(user.Hydrate(f.tenantID, f.outsider, "out@example.com", "Out", true, false, time.Now(), time.Now()))
	users.put(user.Hydrate(f.tenantID, f.admin, "admin@example.com", "Admin", true, true, time.Now(), time.Now()))

	shifts := newShiftRepoStub()
	f.oncall = services.NewOnCallService(f.schedules, f.overrides, shifts)
	f.svc = services.NewSwapService(
		f.swaps, f.schedules, f.overrides, users, newSequenceRepoStub(),
		f.clock, newTestPublisher(),
	)
	return f
}

func (f *swapFixture) window() (time.Time, time.Time) {
	start := f.clock.Now().Add(18 * time.Hour)
	return start, start.Add(24 * time.Hour)
}

func (f *swapFixture) createDirected(t *testing.T) *swap.Request {
	t.Helper()
	start, end := f.window()
	created, err := f.svc.Create(testContext(f.tenantID, f.requester), &swap.CreateDTO{
		ScheduleID:      f.scheduleID,
		OriginalStart:   start,
		OriginalEnd:     end,
		OfferedToUserID: &f.target,
		Reason:          "family trip",
	})
	require.NoError(t, err)
	return created
}

func (f *swapFixture) createOpen(t *testing.T) *swap.Request {
	t.Helper()
	start, end := f.window()
	created, err := f.svc.Create(testContext(f.tenantID, f.requester), &swap.CreateDTO{
		ScheduleID:    f.scheduleID,
		OriginalStart: start,
		OriginalEnd:   end,
		Reason:        "open offer",
	})
	require.NoError(t, err)
	return created
}

func TestSwapCreate_AssignsNumberAndPending(t *testing.T) {
	f := newSwapFixture(t)

	created := f.createDirected(t)
	assert.Equal(t, swap.StatusPending, created.Status())
	assert.Equal(t, "SWAP-000001", created.Number())
	assert.Equal(t, f.requester, created.RequesterID())

	second := f.createOpen(t)
	assert.Equal(t, "SWAP-000002", second.Number())
}

func TestSwapCreate_Validation(t *testing.T) {
	f := newSwapFixture(t)
	start, end := f.window()

	tests := []struct {
		name string
		dto  swap.CreateDTO
		want error
	}{
		{
			name: "inverted window",
			dto: swap.CreateDTO{
				ScheduleID:    f.scheduleID,
				OriginalStart: end,
				OriginalEnd:   start,
			},
			want: services.ErrSwapWindowInverted,
		},
		{
			name: "zero-length window",
			dto: swap.CreateDTO{
				ScheduleID:    f.scheduleID,
				OriginalStart: start,
				OriginalEnd:   start,
			},
			want: services.ErrSwapWindowInverted,
		},
		{
			name: "window in the past",
			dto: swap.CreateDTO{
				ScheduleID:    f.scheduleID,
				OriginalStart: f.clock.Now().Add(-time.Hour),
				OriginalEnd:   end,
			},
			want: services.ErrSwapWindowPast,
		},
		{
			name: "directed to self",
			dto: swap.CreateDTO{
				ScheduleID:      f.scheduleID,
				OriginalStart:   start,
				OriginalEnd:     end,
				OfferedToUserID: &f.requester,
			},
			want: services.ErrSwapSelfOffer,
		},
		{
			name: "directed outside rotation",
			dto: swap.CreateDTO{
				ScheduleID:      f.scheduleID,
				OriginalStart:   start,
				OriginalEnd:     end,
				OfferedToUserID: &f.outsider,
			},
			want: services.ErrSwapTargetNotMember,
		},
		{
			name: "already expired",
			dto: swap.CreateDTO{
				ScheduleID:    f.scheduleID,
				OriginalStart: start,
				OriginalEnd:   end,
				ExpiresAt:     timePtr(f.clock.Now().Add(-time.Second)),
			},
			want: services.ErrSwapExpiryPast,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(testContext(f.tenantID, f.requester), &tt.dto)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("requester outside rotation", func(t *testing.T) {
		_, err := f.svc.Create(testContext(f.tenantID, f.outsider), &swap.CreateDTO{
			ScheduleID:    f.scheduleID,
			OriginalStart: start,
			OriginalEnd:   end,
		})
		assert.ErrorIs(t, err, services.ErrSwapNotMember)
	})
}

func TestSwapAccept_DirectedCreatesOverride(t *testing.T) {
	f := newSwapFixture(t)
	created := f.createDirected(t)

	accepted, err := f.svc.Accept(testContext(f.tenantID, f.target), created.ID(), &swap.RespondDTO{Message: "got it"})
	require.NoError(t, err)
	assert.Equal(t, swap.StatusAccepted, accepted.Status())
	assert.Equal(t, f.target, accepted.AccepterID())
	assert.Equal(t, created.OriginalStart(), accepted.ReplacementStart())

	// The accepter now shows as on call for the swapped window.
	mid := created.OriginalStart().Add(time.Hour)
	got, err := f.oncall.WhoIsOnCall(testContext(f.tenantID, uuid.Nil), f.scheduleID, mid)
	require.NoError(t, err)
	assert.Equal(t, f.target, got.UserID)
	assert.Equal(t, services.SourceOverride, got.Source)

	active, err := f.overrides.GetActiveAt(testContext(f.tenantID, uuid.Nil), f.scheduleID, mid)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, f.requester, active[0].OriginalUserID())
}

func TestSwapAccept_Standing(t *testing.T) {
	f := newSwapFixture(t)

	t.Run("requester cannot accept own request", func(t *testing.T) {
		created := f.createOpen(t)
		_, err := f.svc.Accept(testContext(f.tenantID, f.requester), created.ID(), &swap.RespondDTO{})
		assert.ErrorIs(t, err, services.ErrSwapSelfAccept)
	})

	t.Run("directed swap only acceptable by target", func(t *testing.T) {
		created := f.createDirected(t)
		_, err := f.svc.Accept(testContext(f.tenantID, f.outsider), created.ID(), &swap.RespondDTO{})
		assert.ErrorIs(t, err, services.ErrSwapNotOffered)
	})

	t.Run("open swap requires rotation membership", func(t *testing.T) {
		created := f.createOpen(t)
		_, err := f.svc.Accept(testContext(f.tenantID, f.outsider), created.ID(), &swap.RespondDTO{})
		assert.ErrorIs(t, err, services.ErrSwapAccepterOutside)
	})
}

func TestSwapAccept_TerminalStatesStayTerminal(t *testing.T) {
	f := newSwapFixture(t)
	created := f.createDirected(t)

	_, err := f.svc.Accept(testContext(f.tenantID, f.target), created.ID(), &swap.RespondDTO{})
	require.NoError(t, err)

	// A second accept must fail, and the stored request must stay accepted.
	_, err = f.svc.Accept(testContext(f.tenantID, f.target), created.ID(), &swap.RespondDTO{})
	require.Error(t, err)
	assert.Equal(t, serrors.KindInvalidState, serrors.KindOf(err))

	stored, err := f.swaps.GetByID(testContext(f.tenantID, uuid.Nil), created.ID())
	require.NoError(t, err)
	assert.Equal(t, swap.StatusAccepted, stored.Status())

	// Neither cancel nor reject can resurrect it.
	_, err = f.svc.Cancel(testContext(f.tenantID, f.requester), created.ID())
	assert.Equal(t, serrors.KindInvalidState, serrors.KindOf(err))
	_, err = f.svc.Reject(testContext(f.tenantID, f.target), created.ID(), &swap.RespondDTO{})
	assert.Equal(t, serrors.KindInvalidState, serrors.KindOf(err))
}

func TestSwapAccept_StaleRequestExpires(t *testing.T) {
	f := newSwapFixture(t)
	start, end := f.window()
	created, err := f.svc.Create(testContext(f.tenantID, f.requester), &swap.CreateDTO{
		ScheduleID:    f.scheduleID,
		OriginalStart: start,
		OriginalEnd:   end,
		ExpiresAt:     timePtr(f.clock.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	_, err = f.svc.Accept(testContext(f.tenantID, f.target), created.ID(), &swap.RespondDTO{})
	assert.ErrorIs(t, err, services.ErrSwapExpired)

	stored, err := f.swaps.GetByID(testContext(f.tenantID, uuid.Nil), created.ID())
	require.NoError(t, err)
	assert.Equal(t, swap.StatusExpired, stored.Status())
}

func TestSwapReject(t *testing.T) {
	f := newSwapFixture(t)

	t.Run("target rejects a directed swap", func(t *testing.T) {
		created := f.createDirected(t)
		rejected, err := f.svc.Reject(testContext(f.tenantID, f.target), created.ID(), &swap.RespondDTO{Message: "busy"})
		require.NoError(t, err)
		assert.Equal(t, swap.StatusRejected, rejected.Status())
		assert.Equal(t, "busy", rejected.ResponseMessage())
	})

	t.Run("non-target cannot reject", func(t *testing.T) {
		created := f.createDirected(t)
		_, err := f.svc.Reject(testContext(f.tenantID, f.outsider), created.ID(), &swap.RespondDTO{})
		assert.ErrorIs(t, err, services.ErrSwapNotOffered)
	})

	t.Run("open swap has no reject target", func(t *testing.T) {
		created := f.createOpen(t)
		_, err := f.svc.Reject(testContext(f.tenantID, f.target), created.ID(), &swap.RespondDTO{})
		assert.ErrorIs(t, err, services.ErrSwapNoRejectTarget)
	})
}

func TestSwapCancel(t *testing.T) {
	f := newSwapFixture(t)
	created := f.createOpen(t)

	_, err := f.svc.Cancel(testContext(f.tenantID, f.target), created.ID())
	assert.ErrorIs(t, err, services.ErrSwapNotRequester)

	cancelled, err := f.svc.Cancel(testContext(f.tenantID, f.requester), created.ID())
	require.NoError(t, err)
	assert.Equal(t, swap.StatusCancelled, cancelled.Status())
}

func TestSwapUpdate(t *testing.T) {
	f := newSwapFixture(t)
	created := f.createOpen(t)

	_, err := f.svc.Update(testContext(f.tenantID, f.target), created.ID(), &swap.UpdateDTO{})
	assert.ErrorIs(t, err, services.ErrSwapNotRequester)

	updated, err := f.svc.Update(testContext(f.tenantID, f.requester), created.ID(), &swap.UpdateDTO{
		OfferedToUserID: &f.target,
		Reason:          strPtr("redirected"),
	})
	require.NoError(t, err)
	assert.Equal(t, f.target, updated.OfferedToUserID())
	assert.Equal(t, "redirected", updated.Reason())

	_, err = f.svc.Update(testContext(f.tenantID, f.requester), created.ID(), &swap.UpdateDTO{
		OfferedToUserID: &f.outsider,
	})
	assert.ErrorIs(t, err, services.ErrSwapTargetNotMember)
}

func TestSwapApprove(t *testing.T) {
	f := newSwapFixture(t)

	t.Run("requires admin", func(t *testing.T) {
		created := f.createDirected(t)
		_, err := f.svc.Approve(testContext(f.tenantID, f.target), created.ID(), &swap.ApproveDTO{})
		assert.ErrorIs(t, err, services.ErrSwapNotAdmin)
	})

	t.Run("directed swap defaults to its target", func(t *testing.T) {
		created := f.createDirected(t)
		approved, err := f.svc.Approve(testContext(f.tenantID, f.admin), created.ID(), &swap.ApproveDTO{})
		require.NoError(t, err)
		assert.Equal(t, swap.StatusAccepted, approved.Status())
		assert.Equal(t, f.target, approved.AccepterID())
		assert.Equal(t, f.admin, approved.ApprovedBy())
	})

	t.Run("open swap needs an explicit accepter", func(t *testing.T) {
		created := f.createOpen(t)
		_, err := f.svc.Approve(testContext(f.tenantID, f.admin), created.ID(), &swap.ApproveDTO{})
		assert.ErrorIs(t, err, services.ErrSwapNoAccepter)

		approved, err := f.svc.Approve(testContext(f.tenantID, f.admin), created.ID(), &swap.ApproveDTO{
			AccepterID: &f.target,
		})
		require.NoError(t, err)
		assert.Equal(t, f.target, approved.AccepterID())
	})
}

func TestSwapSweeps_Idempotent(t *testing.T) {
	f := newSwapFixture(t)
	ctx := testContext(f.tenantID, uuid.Nil)

	expiring := f.createOpen(t)
	accepted := f.createDirected(t)
	_, err := f.svc.Accept(testContext(f.tenantID, f.target), accepted.ID(), &swap.RespondDTO{})
	require.NoError(t, err)

	// Jump past the original window: the pending one expires, the
	// accepted one completes.
	f.clock.Advance(100 * time.Hour)

	expired, err := f.svc.ExpireStale(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	completed, err := f.svc.CompleteElapsed(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), completed)

	// Re-running finds nothing left to touch.
	expired, err = f.svc.ExpireStale(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, expired)
	completed, err = f.svc.CompleteElapsed(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, completed)

	stored, err := f.swaps.GetByID(ctx, expiring.ID())
	require.NoError(t, err)
	assert.Equal(t, swap.StatusExpired, stored.Status())
	stored, err = f.swaps.GetByID(ctx, accepted.ID())
	require.NoError(t, err)
	assert.Equal(t, swap.StatusCompleted, stored.Status())
}

func TestSwapSweeps_HonorBatchLimit(t *testing.T) {
	f := newSwapFixture(t)
	ctx := testContext(f.tenantID, uuid.Nil)

	for i := 0; i < 3; i++ {
		f.createOpen(t)
	}
	f.clock.Advance(100 * time.Hour)

	// Each pass touches at most the batch limit; repeated passes drain
	// the backlog.
	expired, err := f.svc.ExpireStale(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), expired)

	expired, err = f.svc.ExpireStale(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	expired, err = f.svc.ExpireStale(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func timePtr(t time.Time) *time.Time { return &t }
func strPtr(s string) *string        { return &s }
