package services_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/schedule"
	"github.com/opsdesk-io/opsdesk/modules/oncall/services"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

func newScheduleService(repo *scheduleRepoStub) *services.ScheduleService {
	return services.NewScheduleService(repo, newOverrideRepoStub(), newShiftRepoStub(), newTestPublisher())
}

func TestScheduleCreate_RejectsDuplicateActivePositions(t *testing.T) {
	repo := newScheduleRepoStub()
	svc := newScheduleService(repo)
	ctx := testContext(uuid.New(), uuid.Nil)

	dto := &schedule.CreateDTO{
		Name:         "primary",
		Timezone:     "UTC",
		RotationType: "daily",
		HandoffTime:  "09:00",
		Epoch:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Members: []schedule.MemberDTO{
			{UserID: uuid.New(), Position: 1, IsActive: true},
			{UserID: uuid.New(), Position: 1, IsActive: true},
		},
	}
	_, err := svc.Create(ctx, dto)
	require.ErrorIs(t, err, services.ErrDuplicatePosition)
	assert.Equal(t, serrors.KindValidation, serrors.KindOf(err))

	// An inactive member may park on a taken position.
	dto.Members[1].IsActive = false
	created, err := svc.Create(ctx, dto)
	require.NoError(t, err)
	assert.Len(t, created.Members(), 2)
}

func TestReplaceMembers_RejectsDuplicateActivePositions(t *testing.T) {
	repo := newScheduleRepoStub()
	svc := newScheduleService(repo)
	tenantID := uuid.New()
	sched := seedSchedule(t, repo, tenantID, uuid.New(), uuid.New())
	ctx := testContext(tenantID, uuid.Nil)

	err := svc.ReplaceMembers(ctx, sched.ID(), []schedule.MemberInput{
		{UserID: uuid.New(), Position: 2, IsActive: true},
		{UserID: uuid.New(), Position: 2, IsActive: true},
	})
	require.ErrorIs(t, err, services.ErrDuplicatePosition)

	err = svc.ReplaceMembers(ctx, sched.ID(), []schedule.MemberInput{
		{UserID: uuid.New(), Position: 1, IsActive: true},
		{UserID: uuid.New(), Position: 2, IsActive: true},
		{UserID: uuid.New(), Position: 2, IsActive: false},
	})
	require.NoError(t, err)
}
