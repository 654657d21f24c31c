package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk-io/opsdesk/modules/core/domain/entities/group"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/escalation"
	"github.com/opsdesk-io/opsdesk/modules/oncall/services"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type escalationRepoStub struct {
	mu       sync.Mutex
	policies map[uuid.UUID]*escalation.Policy
}

func newEscalationRepoStub() *escalationRepoStub {
	return &escalationRepoStub{policies: make(map[uuid.UUID]*escalation.Policy)}
}

func (r *escalationRepoStub) put(p *escalation.Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.ID()] = p
}

func (r *escalationRepoStub) GetAll(ctx context.Context) ([]*escalation.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*escalation.Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	return out, nil
}

func (r *escalationRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*escalation.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[id]
	if !ok {
		return nil, serrors.NotFound("ESCALATION_POLICY_NOT_FOUND", "escalation policy not found")
	}
	return p, nil
}

func (r *escalationRepoStub) Create(ctx context.Context, data *escalation.Policy) (*escalation.Policy, error) {
	created := escalation.Hydrate(
		data.TenantID(), uuid.New(), data.Name(), data.RepeatCount(),
		data.RepeatDelayMinutes(), data.Steps(), time.Now(), time.Now(),
	)
	r.put(created)
	return created, nil
}

func (r *escalationRepoStub) Update(ctx context.Context, data *escalation.Policy) error {
	r.put(data)
	return nil
}

func (r *escalationRepoStub) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.policies, id)
	return nil
}

type groupRepoStub struct {
	groups map[uuid.UUID]group.Group
}

func newGroupRepoStub() *groupRepoStub {
	return &groupRepoStub{groups: make(map[uuid.UUID]group.Group)}
}

func (r *groupRepoStub) GetAll(ctx context.Context) ([]group.Group, error) { return nil, nil }

func (r *groupRepoStub) GetByID(ctx context.Context, id uuid.UUID) (group.Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return group.Group{}, serrors.NotFound("GROUP_NOT_FOUND", "group not found")
	}
	return g, nil
}

func (r *groupRepoStub) Create(ctx context.Context, data group.Group) (group.Group, error) {
	r.groups[data.ID()] = data
	return data, nil
}

func (r *groupRepoStub) Update(ctx context.Context, data group.Group) error { return nil }
func (r *groupRepoStub) Delete(ctx context.Context, id uuid.UUID) error     { return nil }

func TestBuildPlan_CumulativeDelaysAndTargets(t *testing.T) {
	tenantID := uuid.New()
	u1, directUser := uuid.New(), uuid.New()
	g1, g2 := uuid.New(), uuid.New()

	schedules := newScheduleRepoStub()
	sched := seedSchedule(t, schedules, tenantID, u1)
	resolver := services.NewOnCallService(schedules, newOverrideRepoStub(), newShiftRepoStub())

	groups := newGroupRepoStub()
	groupID := uuid.New()
	groups.groups[groupID] = group.Hydrate(tenantID, groupID, "sre", []uuid.UUID{g1, g2}, time.Now(), time.Now())

	policies := newEscalationRepoStub()
	svc := services.NewEscalationService(policies, resolver, groups)

	ctx := testContext(tenantID, uuid.Nil)
	policy, err := svc.Create(ctx, escalation.New(tenantID, "sev1", 0, 0, []escalation.Step{
		{StepNumber: 1, DelayMinutes: 0, NotifyType: escalation.NotifySchedule, TargetID: sched.ID(), Channels: []string{"push"}},
		{StepNumber: 2, DelayMinutes: 5, NotifyType: escalation.NotifyUser, TargetID: directUser, Channels: []string{"sms"}},
		{StepNumber: 3, DelayMinutes: 10, NotifyType: escalation.NotifyGroup, TargetID: groupID, Channels: []string{"email"}},
	}))
	require.NoError(t, err)

	startAt := sched.Epoch().Add(time.Hour)
	actions, err := svc.BuildPlan(ctx, policy.ID(), startAt)
	require.NoError(t, err)
	require.Len(t, actions, 3)

	// Step 1 fires immediately and resolves the schedule's on-call user.
	assert.Equal(t, startAt, actions[0].FireAt)
	assert.Equal(t, []uuid.UUID{u1}, actions[0].UserIDs)

	// Delays accumulate: 0, +5, +15.
	assert.Equal(t, startAt.Add(5*time.Minute), actions[1].FireAt)
	assert.Equal(t, []uuid.UUID{directUser}, actions[1].UserIDs)

	assert.Equal(t, startAt.Add(15*time.Minute), actions[2].FireAt)
	assert.ElementsMatch(t, []uuid.UUID{g1, g2}, actions[2].UserIDs)
}

func TestBuildPlan_RepeatsCycles(t *testing.T) {
	tenantID := uuid.New()
	target := uuid.New()

	policies := newEscalationRepoStub()
	svc := services.NewEscalationService(policies, services.NewOnCallService(newScheduleRepoStub(), newOverrideRepoStub(), newShiftRepoStub()), newGroupRepoStub())

	ctx := testContext(tenantID, uuid.Nil)
	policy, err := svc.Create(ctx, escalation.New(tenantID, "sev2", 2, 30, []escalation.Step{
		{StepNumber: 1, DelayMinutes: 0, NotifyType: escalation.NotifyUser, TargetID: target},
		{StepNumber: 2, DelayMinutes: 10, NotifyType: escalation.NotifyUser, TargetID: target},
	}))
	require.NoError(t, err)

	startAt := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	actions, err := svc.BuildPlan(ctx, policy.ID(), startAt)
	require.NoError(t, err)
	require.Len(t, actions, 6)

	// Cycle 1: 08:00, 08:10. Cycle 2 starts 30m after the last step.
	assert.Equal(t, 1, actions[0].Cycle)
	assert.Equal(t, startAt, actions[0].FireAt)
	assert.Equal(t, startAt.Add(10*time.Minute), actions[1].FireAt)

	assert.Equal(t, 2, actions[2].Cycle)
	assert.Equal(t, startAt.Add(40*time.Minute), actions[2].FireAt)
	assert.Equal(t, startAt.Add(50*time.Minute), actions[3].FireAt)

	assert.Equal(t, 3, actions[4].Cycle)
	assert.Equal(t, startAt.Add(80*time.Minute), actions[4].FireAt)

	// Fire times never move backwards.
	for i := 1; i < len(actions); i++ {
		assert.False(t, actions[i].FireAt.Before(actions[i-1].FireAt))
	}
}

type captureDispatcher struct {
	actions []services.Action
}

func (d *captureDispatcher) Dispatch(ctx context.Context, action services.Action) error {
	d.actions = append(d.actions, action)
	return nil
}

func TestRun_HandsEveryActionToDispatcher(t *testing.T) {
	tenantID := uuid.New()
	target := uuid.New()

	policies := newEscalationRepoStub()
	svc := services.NewEscalationService(policies, services.NewOnCallService(newScheduleRepoStub(), newOverrideRepoStub(), newShiftRepoStub()), newGroupRepoStub())

	ctx := testContext(tenantID, uuid.Nil)
	policy, err := svc.Create(ctx, escalation.New(tenantID, "sev3", 0, 0, []escalation.Step{
		{StepNumber: 1, DelayMinutes: 0, NotifyType: escalation.NotifyUser, TargetID: target},
	}))
	require.NoError(t, err)

	dispatcher := &captureDispatcher{}
	require.NoError(t, svc.Run(ctx, policy.ID(), time.Now(), dispatcher))
	require.Len(t, dispatcher.actions, 1)
	assert.Equal(t, []uuid.UUID{target}, dispatcher.actions[0].UserIDs)
}

func TestPolicyCreate_RejectsDelayedFirstStep(t *testing.T) {
	tenantID := uuid.New()
	target := uuid.New()

	policies := newEscalationRepoStub()
	svc := services.NewEscalationService(policies, services.NewOnCallService(newScheduleRepoStub(), newOverrideRepoStub(), newShiftRepoStub()), newGroupRepoStub())

	ctx := testContext(tenantID, uuid.Nil)
	_, err := svc.Create(ctx, escalation.New(tenantID, "sev1", 0, 0, []escalation.Step{
		{StepNumber: 1, DelayMinutes: 5, NotifyType: escalation.NotifyUser, TargetID: target},
		{StepNumber: 2, DelayMinutes: 10, NotifyType: escalation.NotifyUser, TargetID: target},
	}))
	require.ErrorIs(t, err, services.ErrFirstStepDelayed)
	assert.Equal(t, serrors.KindValidation, serrors.KindOf(err))
	all, err := policies.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// The lowest-numbered step is the first one even when steps arrive unordered.
	_, err = svc.Create(ctx, escalation.New(tenantID, "sev1", 0, 0, []escalation.Step{
		{StepNumber: 2, DelayMinutes: 10, NotifyType: escalation.NotifyUser, TargetID: target},
		{StepNumber: 1, DelayMinutes: 3, NotifyType: escalation.NotifyUser, TargetID: target},
	}))
	require.ErrorIs(t, err, services.ErrFirstStepDelayed)
}

func TestPolicyUpdate_RejectsDelayedFirstStep(t *testing.T) {
	tenantID := uuid.New()
	target := uuid.New()

	policies := newEscalationRepoStub()
	svc := services.NewEscalationService(policies, services.NewOnCallService(newScheduleRepoStub(), newOverrideRepoStub(), newShiftRepoStub()), newGroupRepoStub())

	ctx := testContext(tenantID, uuid.Nil)
	policy, err := svc.Create(ctx, escalation.New(tenantID, "sev2", 0, 0, []escalation.Step{
		{StepNumber: 1, DelayMinutes: 0, NotifyType: escalation.NotifyUser, TargetID: target},
	}))
	require.NoError(t, err)

	bad := escalation.Hydrate(tenantID, policy.ID(), "sev2", 0, 0, []escalation.Step{
		{StepNumber: 1, DelayMinutes: 15, NotifyType: escalation.NotifyUser, TargetID: target},
	}, policy.CreatedAt(), policy.UpdatedAt())
	require.ErrorIs(t, svc.Update(ctx, bad), services.ErrFirstStepDelayed)
}
