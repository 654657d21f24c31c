package rotation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/rotation"
)

func TestCurrentMember_DailyRotation(t *testing.T) {
	loc := newYork(t)
	u1, u2 := uuid.New(), uuid.New()
	members := []rotation.Member{
		{UserID: u2, Position: 2, IsActive: true},
		{UserID: u1, Position: 1, IsActive: true},
	}
	settings := rotation.Settings{
		Timezone:    "America/New_York",
		Kind:        rotation.KindDaily,
		HandoffTime: "09:00",
		Epoch:       time.Date(2026, 3, 2, 9, 0, 0, 0, loc),
	}

	// During the epoch period the first member by position is on duty.
	current, err := rotation.CurrentMember(settings, members, settings.Epoch.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, u1, current.UserID)

	// At the handoff instant duty passes to the second member.
	handoff, err := rotation.NextHandoff(settings, settings.Epoch)
	require.NoError(t, err)
	current, err = rotation.CurrentMember(settings, members, handoff)
	require.NoError(t, err)
	assert.Equal(t, u2, current.UserID)

	// One more period wraps back around.
	current, err = rotation.CurrentMember(settings, members, handoff.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, u1, current.UserID)
}

func TestCurrentMember_CountsBoundariesAcrossDST(t *testing.T) {
	loc := newYork(t)
	u1, u2 := uuid.New(), uuid.New()
	members := []rotation.Member{
		{UserID: u1, Position: 1, IsActive: true},
		{UserID: u2, Position: 2, IsActive: true},
	}
	// Epoch two days before the spring-forward transition. The March 8th
	// period is 23 hours long in UTC; boundary counting keeps assignments
	// aligned with local days regardless.
	settings := rotation.Settings{
		Timezone:    "America/New_York",
		Kind:        rotation.KindDaily,
		HandoffTime: "09:00",
		Epoch:       time.Date(2026, 3, 6, 9, 0, 0, 0, loc),
	}

	days := []struct {
		day  int
		want uuid.UUID
	}{
		{6, u1}, {7, u2}, {8, u1}, {9, u2}, {10, u1},
	}
	for _, d := range days {
		at := time.Date(2026, 3, d.day, 12, 0, 0, 0, loc)
		current, err := rotation.CurrentMember(settings, members, at)
		require.NoError(t, err)
		assert.Equal(t, d.want, current.UserID, "day %d", d.day)
	}
}

func TestCurrentMember_IgnoresInactiveMembers(t *testing.T) {
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	members := []rotation.Member{
		{UserID: u1, Position: 1, IsActive: true},
		{UserID: u2, Position: 2, IsActive: false},
		{UserID: u3, Position: 3, IsActive: true},
	}
	settings := rotation.Settings{
		Timezone:    "UTC",
		Kind:        rotation.KindDaily,
		HandoffTime: "00:00",
		Epoch:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	// Two active members alternate; the inactive one never appears.
	seen := map[uuid.UUID]bool{}
	for day := 1; day <= 4; day++ {
		at := time.Date(2026, 1, day, 12, 0, 0, 0, time.UTC)
		current, err := rotation.CurrentMember(settings, members, at)
		require.NoError(t, err)
		seen[current.UserID] = true
	}
	assert.True(t, seen[u1])
	assert.True(t, seen[u3])
	assert.False(t, seen[u2])
}

func TestCurrentMember_EmptyRotation(t *testing.T) {
	settings := rotation.Settings{
		Timezone:    "UTC",
		Kind:        rotation.KindDaily,
		HandoffTime: "09:00",
		Epoch:       time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}

	_, err := rotation.CurrentMember(settings, nil, time.Now())
	assert.ErrorIs(t, err, rotation.ErrEmptyRotation)

	inactive := []rotation.Member{{UserID: uuid.New(), Position: 1, IsActive: false}}
	_, err = rotation.CurrentMember(settings, inactive, time.Now())
	assert.ErrorIs(t, err, rotation.ErrEmptyRotation)
}

func TestNextMember_CyclesExactlyOnce(t *testing.T) {
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	members := []rotation.Member{
		{UserID: u1, Position: 1, IsActive: true},
		{UserID: u2, Position: 2, IsActive: true},
		{UserID: u3, Position: 3, IsActive: true},
	}

	for _, start := range members {
		current := start
		returns := 0
		for i := 0; i < len(members); i++ {
			next, err := rotation.NextMember(current, members)
			require.NoError(t, err)
			if next.UserID == start.UserID {
				returns++
			}
			current = next
		}
		assert.Equal(t, 1, returns, "starting from position %d", start.Position)
		assert.Equal(t, start.UserID, current.UserID)
	}
}

func TestNextMember_UnknownCurrentFallsToFirst(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	members := []rotation.Member{
		{UserID: u1, Position: 1, IsActive: true},
		{UserID: u2, Position: 2, IsActive: true},
	}

	next, err := rotation.NextMember(rotation.Member{UserID: uuid.New()}, members)
	require.NoError(t, err)
	assert.Equal(t, u1, next.UserID)
}

func TestCurrentMember_FarPastEpoch(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	members := []rotation.Member{
		{UserID: u1, Position: 1, IsActive: true},
		{UserID: u2, Position: 2, IsActive: true},
	}
	settings := rotation.Settings{
		Timezone:    "UTC",
		Kind:        rotation.KindDaily,
		HandoffTime: "09:00",
		Epoch:       time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	// Tens of thousands of boundaries separate epoch and at; the count
	// must stay exact so consecutive days still alternate.
	day := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	current, err := rotation.CurrentMember(settings, members, day)
	require.NoError(t, err)
	next, err := rotation.CurrentMember(settings, members, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.NotEqual(t, current.UserID, next.UserID)

	// In UTC every period is exactly 24h, so the boundary count is the
	// number of 09:00 instants at or before the query.
	first := time.Date(1970, 1, 1, 9, 0, 0, 0, time.UTC)
	boundaries := int(day.Sub(first)/(24*time.Hour)) + 1
	expected := members[boundaries%2]
	assert.Equal(t, expected.UserID, current.UserID)
}

func TestCurrentMember_FarPastEpochAcrossDST(t *testing.T) {
	loc := newYork(t)
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	members := []rotation.Member{
		{UserID: u1, Position: 1, IsActive: true},
		{UserID: u2, Position: 2, IsActive: true},
		{UserID: u3, Position: 3, IsActive: true},
	}
	settings := rotation.Settings{
		Timezone:    "America/New_York",
		Kind:        rotation.KindDaily,
		HandoffTime: "09:00",
		Epoch:       time.Date(1970, 1, 1, 9, 0, 0, 0, loc),
	}

	// Decades of accumulated DST shifts must not desynchronize the count:
	// each local day still advances duty by exactly one member, including
	// across the March 8th spring-forward transition.
	seen := make([]uuid.UUID, 0, 6)
	for day := 6; day <= 11; day++ {
		at := time.Date(2026, 3, day, 12, 0, 0, 0, loc)
		current, err := rotation.CurrentMember(settings, members, at)
		require.NoError(t, err)
		seen = append(seen, current.UserID)
	}
	for i := 1; i < len(seen); i++ {
		assert.NotEqual(t, seen[i-1], seen[i], "duty must change every local day")
	}
	next, err := rotation.NextMember(rotation.Member{UserID: seen[0]}, members)
	require.NoError(t, err)
	assert.Equal(t, next.UserID, seen[1], "daily advancement must follow rotation order")
}
