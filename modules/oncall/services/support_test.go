package services_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/aggregates/user"
	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/sequence"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/schedule"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/swap"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/override"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/shift"
	"github.com/opsdesk-io/opsdesk/pkg/composables"
	"github.com/opsdesk-io/opsdesk/pkg/eventbus"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

// noopTx satisfies the transaction interface for stub-backed services.
type noopTx struct {
	pgx.Tx
}

func testContext(tenantID, actorID uuid.UUID) context.Context {
	ctx := composables.WithTenantID(context.Background(), tenantID)
	if actorID != uuid.Nil {
		ctx = composables.WithActorID(ctx, actorID)
	}
	return composables.WithTx(ctx, noopTx{})
}

func newTestPublisher() eventbus.EventBus {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return eventbus.NewEventPublisher(log)
}

// --- schedule repository -------------------------------------------------

type scheduleRepoStub struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*schedule.Schedule
	appLinks  map[uuid.UUID][]uuid.UUID // applicationID -> scheduleIDs
}

func newScheduleRepoStub() *scheduleRepoStub {
	return &scheduleRepoStub{
		schedules: make(map[uuid.UUID]*schedule.Schedule),
		appLinks:  make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *scheduleRepoStub) put(s *schedule.Schedule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[s.ID()] = s
}

func (r *scheduleRepoStub) GetPaginated(ctx context.Context, params *schedule.FindParams) ([]*schedule.Schedule, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*schedule.Schedule, 0, len(r.schedules))
	for _, s := range r.schedules {
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

func (r *scheduleRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, serrors.NotFound("SCHEDULE_NOT_FOUND", "schedule not found")
	}
	return s, nil
}

func (r *scheduleRepoStub) GetByApplicationID(ctx context.Context, applicationID uuid.UUID) ([]*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*schedule.Schedule, 0)
	for _, id := range r.appLinks[applicationID] {
		if s, ok := r.schedules[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *scheduleRepoStub) Create(ctx context.Context, data *schedule.Schedule) (*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := schedule.Hydrate(
		data.TenantID(), uuid.New(), data.Name(), data.Timezone(),
		data.RotationKind(), data.RotationLengthDays(), data.HandoffTime(),
		data.HandoffWeekday(), data.Epoch(), data.IsActive(),
		time.Now(), time.Now(), data.Members(),
	)
	r.schedules[created.ID()] = created
	return created, nil
}

func (r *scheduleRepoStub) Update(ctx context.Context, data *schedule.Schedule) error {
	r.put(data)
	return nil
}

func (r *scheduleRepoStub) ReplaceMembers(ctx context.Context, scheduleID uuid.UUID, members []schedule.MemberInput) error {
	return nil
}

func (r *scheduleRepoStub) LinkApplication(ctx context.Context, scheduleID, applicationID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appLinks[applicationID] = append(r.appLinks[applicationID], scheduleID)
	return nil
}

func (r *scheduleRepoStub) UnlinkApplication(ctx context.Context, scheduleID, applicationID uuid.UUID) error {
	return nil
}

// --- override repository -------------------------------------------------

type overrideRepoStub struct {
	mu        sync.Mutex
	overrides []override.Override
	seq       int
}

func newOverrideRepoStub() *overrideRepoStub {
	return &overrideRepoStub{}
}

func (r *overrideRepoStub) GetBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]override.Override, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]override.Override, 0)
	for _, o := range r.overrides {
		if o.ScheduleID() == scheduleID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *overrideRepoStub) GetActiveAt(ctx context.Context, scheduleID uuid.UUID, at time.Time) ([]override.Override, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]override.Override, 0)
	for _, o := range r.overrides {
		if o.ScheduleID() == scheduleID && o.Contains(at) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, nil
}

func (r *overrideRepoStub) GetInRange(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]override.Override, error) {
	return r.GetBySchedule(ctx, scheduleID)
}

func (r *overrideRepoStub) Create(ctx context.Context, data override.Override) (override.Override, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	created := override.Hydrate(
		data.TenantID(), uuid.New(), data.ScheduleID(), data.UserID(),
		data.OriginalUserID(), data.StartTime(), data.EndTime(), data.Reason(),
		time.Unix(int64(r.seq), 0),
	)
	r.overrides = append(r.overrides, created)
	return created, nil
}

func (r *overrideRepoStub) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.overrides[:0]
	for _, o := range r.overrides {
		if o.ID() != id {
			out = append(out, o)
		}
	}
	r.overrides = out
	return nil
}

// --- shift repository ----------------------------------------------------

type shiftRepoStub struct {
	mu     sync.Mutex
	shifts []shift.Shift
}

func newShiftRepoStub() *shiftRepoStub {
	return &shiftRepoStub{}
}

func (r *shiftRepoStub) GetBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]shift.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shift.Shift, 0)
	for _, s := range r.shifts {
		if s.ScheduleID() == scheduleID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *shiftRepoStub) GetActiveAt(ctx context.Context, scheduleID uuid.UUID, at time.Time) ([]shift.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shift.Shift, 0)
	for _, s := range r.shifts {
		if s.ScheduleID() == scheduleID && s.Contains(at) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Layer() != out[j].Layer() {
			return out[i].Layer() < out[j].Layer()
		}
		return out[i].ShiftType() == shift.TypePrimary && out[j].ShiftType() != shift.TypePrimary
	})
	return out, nil
}

func (r *shiftRepoStub) Create(ctx context.Context, data shift.Shift) (shift.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := shift.Hydrate(
		data.TenantID(), uuid.New(), data.ScheduleID(), data.UserID(),
		data.StartTime(), data.EndTime(), data.ShiftType(), data.Layer(),
		time.Now(),
	)
	r.shifts = append(r.shifts, created)
	return created, nil
}

func (r *shiftRepoStub) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

// --- swap repository -----------------------------------------------------

type swapRepoStub struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*swap.Request
}

func newSwapRepoStub() *swapRepoStub {
	return &swapRepoStub{requests: make(map[uuid.UUID]*swap.Request)}
}

func (r *swapRepoStub) GetPaginated(ctx context.Context, params *swap.FindParams) ([]*swap.Request, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*swap.Request, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req)
	}
	return out, int64(len(out)), nil
}

func (r *swapRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*swap.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, serrors.NotFound("SWAP_NOT_FOUND", "swap request not found")
	}
	clone := *req
	return &clone, nil
}

func (r *swapRepoStub) Create(ctx context.Context, data *swap.Request) (*swap.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := swap.Hydrate(
		data.TenantID(), uuid.New(), data.Number(), data.ScheduleID(),
		data.RequesterID(), data.OriginalShiftID(), data.OriginalStart(),
		data.OriginalEnd(), data.OfferedToUserID(), data.Reason(),
		data.ExpiresAt(), data.Status(), data.AccepterID(),
		data.ReplacementStart(), data.ReplacementEnd(), data.ResponseMessage(),
		data.RespondedAt(), data.ApprovedBy(), time.Now(), time.Now(),
	)
	r.requests[created.ID()] = created
	return created, nil
}

func (r *swapRepoStub) UpdateStatus(ctx context.Context, data *swap.Request, expected swap.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[data.ID()]
	if !ok || stored.Status() != expected {
		return false, nil
	}
	clone := *data
	r.requests[data.ID()] = &clone
	return true, nil
}

func (r *swapRepoStub) UpdatePending(ctx context.Context, data *swap.Request) (bool, error) {
	return r.UpdateStatus(ctx, data, swap.StatusPending)
}

func (r *swapRepoStub) ExpireStale(ctx context.Context, now time.Time, limit int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, req := range r.requests {
		if n >= int64(limit) {
			break
		}
		if req.Status() == swap.StatusPending && req.StaleAt(now) {
			if err := req.Expire(); err == nil {
				n++
			}
		}
	}
	return n, nil
}

func (r *swapRepoStub) CompleteElapsed(ctx context.Context, now time.Time, limit int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, req := range r.requests {
		if n >= int64(limit) {
			break
		}
		if req.Status() == swap.StatusAccepted && now.After(req.OriginalEnd()) {
			if err := req.Complete(); err == nil {
				n++
			}
		}
	}
	return n, nil
}

// --- user repository -----------------------------------------------------

type userRepoStub struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[uuid.UUID]user.User)}
}

func (r *userRepoStub) put(u user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID()] = u
}

func (r *userRepoStub) GetPaginated(ctx context.Context, params *user.FindParams) ([]user.User, int64, error) {
	return nil, 0, nil
}

func (r *userRepoStub) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.User{}, serrors.NotFound("USER_NOT_FOUND", "user not found")
	}
	return u, nil
}

func (r *userRepoStub) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return user.User{}, nil
}

func (r *userRepoStub) Create(ctx context.Context, data user.User) (user.User, error) {
	r.put(data)
	return data, nil
}

func (r *userRepoStub) Update(ctx context.Context, data user.User) error {
	r.put(data)
	return nil
}

// --- sequence repository -------------------------------------------------

type sequenceRepoStub struct {
	mu     sync.Mutex
	values map[sequence.Scope]int64
}

func newSequenceRepoStub() *sequenceRepoStub {
	return &sequenceRepoStub{values: make(map[sequence.Scope]int64)}
}

func (r *sequenceRepoStub) Next(ctx context.Context, scope sequence.Scope) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[scope]++
	return r.values[scope], nil
}
