package rotation

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

// Member is one slot in the round-robin order. Position is unique among
// active members of a schedule.
type Member struct {
	UserID   uuid.UUID
	Position int
	IsActive bool
}

var ErrEmptyRotation = serrors.NewError(
	"ONCALL_EMPTY_ROTATION",
	"rotation has no active members",
	serrors.KindEmptyRotation,
)

// maxWalk bounds the residual boundary walk after the whole-period jump.
// The jump lands within a couple of periods of at, so hitting this cap
// means the settings are inconsistent, not that the epoch is old.
const maxWalk = 10000

var ErrEpochUnresolvable = serrors.Validation(
	"ONCALL_EPOCH_UNRESOLVABLE",
	"schedule epoch cannot be resolved against the requested instant",
)

// CurrentMember returns the member on duty at the given instant.
//
// Duty is assigned by counting completed handoff boundaries between the
// schedule epoch and at, using NextHandoff for each boundary rather than
// dividing elapsed time by a nominal period. Periods that straddle DST
// transitions are not uniform in UTC, so only boundary enumeration stays
// correct. Membership edits apply from now on; past assignments are not
// reconstructed.
func CurrentMember(s Settings, members []Member, at time.Time) (Member, error) {
	active := ActiveByPosition(members)
	if len(active) == 0 {
		return Member{}, ErrEmptyRotation
	}
	boundaries, err := handoffBoundaries(s, at)
	if err != nil {
		return Member{}, err
	}
	return active[boundaries%len(active)], nil
}

// handoffBoundaries counts completed handoff boundaries in (epoch, at].
//
// Epochs may lie decades in the past, so the count cannot enumerate every
// boundary. Real periods deviate from the nominal period length only by
// DST offset changes, bounded by a couple of hours regardless of span, so
// the bulk of the distance is jumped in whole periods and only the last
// few boundaries are walked exactly.
func handoffBoundaries(s Settings, at time.Time) (int, error) {
	first, err := NextHandoff(s, s.Epoch)
	if err != nil {
		return 0, err
	}
	if first.After(at) {
		return 0, nil
	}

	loc, _ := time.LoadLocation(s.Timezone)
	hour, minute, _ := parseHandoffTime(s.HandoffTime)
	period := s.Kind.periodDays(s.LengthDays)

	boundaries := 1
	cursor := first
	nominal := time.Duration(period) * 24 * time.Hour
	if skip := int(at.Sub(cursor)/nominal) - 2; skip > 0 {
		jumped := addDays(cursor, skip*period, hour, minute, loc)
		if !jumped.After(at) {
			cursor = jumped
			boundaries += skip
		}
	}
	for walked := 0; walked < maxWalk; walked++ {
		next, err := NextHandoff(s, cursor)
		if err != nil {
			return 0, err
		}
		if next.After(at) {
			return boundaries, nil
		}
		boundaries++
		cursor = next
	}
	return 0, ErrEpochUnresolvable
}

// NextMember is strict round-robin among active members. When current is
// not in the active order (deactivated since), duty falls to the first
// member.
func NextMember(current Member, members []Member) (Member, error) {
	active := ActiveByPosition(members)
	if len(active) == 0 {
		return Member{}, ErrEmptyRotation
	}
	for i, m := range active {
		if m.UserID == current.UserID {
			return active[(i+1)%len(active)], nil
		}
	}
	return active[0], nil
}

// ActiveByPosition filters to active members ordered by position ascending.
func ActiveByPosition(members []Member) []Member {
	active := make([]Member, 0, len(members))
	for _, m := range members {
		if m.IsActive {
			active = append(active, m)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Position < active[j].Position })
	return active
}
