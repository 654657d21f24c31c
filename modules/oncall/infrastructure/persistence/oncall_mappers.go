package persistence

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/schedule"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/aggregates/swap"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/escalation"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/override"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/entities/shift"
	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/rotation"
	"github.com/opsdesk-io/opsdesk/modules/oncall/infrastructure/persistence/models"
)

func derefUUID(v *uuid.UUID) uuid.UUID {
	if v == nil {
		return uuid.Nil
	}
	return *v
}

func uuidPtr(v uuid.UUID) *uuid.UUID {
	if v == uuid.Nil {
		return nil
	}
	return &v
}

func derefTime(v *time.Time) time.Time {
	if v == nil {
		return time.Time{}
	}
	return *v
}

func timePtr(v time.Time) *time.Time {
	if v.IsZero() {
		return nil
	}
	return &v
}

func toDomainSchedule(row models.Schedule, memberRows []models.RotationMember) *schedule.Schedule {
	members := make([]rotation.Member, 0, len(memberRows))
	for _, m := range memberRows {
		members = append(members, rotation.Member{
			UserID:   m.UserID,
			Position: m.Position,
			IsActive: m.IsActive,
		})
	}
	return schedule.Hydrate(
		row.TenantID,
		row.ID,
		row.Name,
		row.Timezone,
		rotation.Kind(row.RotationType),
		row.RotationLengthDays,
		row.HandoffTime,
		time.Weekday(row.HandoffWeekday),
		row.Epoch,
		row.IsActive,
		row.CreatedAt,
		row.UpdatedAt,
		members,
	)
}

func toDomainShift(row models.Shift) shift.Shift {
	return shift.Hydrate(
		row.TenantID,
		row.ID,
		row.ScheduleID,
		row.UserID,
		row.StartTime,
		row.EndTime,
		shift.Type(row.ShiftType),
		row.Layer,
		row.CreatedAt,
	)
}

func toDomainOverride(row models.Override) override.Override {
	return override.Hydrate(
		row.TenantID,
		row.ID,
		row.ScheduleID,
		row.UserID,
		derefUUID(row.OriginalUserID),
		row.StartTime,
		row.EndTime,
		row.Reason,
		row.CreatedAt,
	)
}

func toDomainSwap(row models.SwapRequest) *swap.Request {
	return swap.Hydrate(
		row.TenantID,
		row.ID,
		row.SwapNumber,
		row.ScheduleID,
		row.RequesterID,
		derefUUID(row.OriginalShiftID),
		row.OriginalStart,
		row.OriginalEnd,
		derefUUID(row.OfferedToUserID),
		row.Reason,
		derefTime(row.ExpiresAt),
		swap.Status(row.Status),
		derefUUID(row.AccepterID),
		derefTime(row.ReplacementStart),
		derefTime(row.ReplacementEnd),
		row.ResponseMessage,
		derefTime(row.RespondedAt),
		derefUUID(row.ApprovedBy),
		row.CreatedAt,
		row.UpdatedAt,
	)
}

func toDBSwap(r *swap.Request) models.SwapRequest {
	return models.SwapRequest{
		ID:               r.ID(),
		TenantID:         r.TenantID(),
		SwapNumber:       r.Number(),
		ScheduleID:       r.ScheduleID(),
		RequesterID:      r.RequesterID(),
		OriginalShiftID:  uuidPtr(r.OriginalShiftID()),
		OriginalStart:    r.OriginalStart(),
		OriginalEnd:      r.OriginalEnd(),
		OfferedToUserID:  uuidPtr(r.OfferedToUserID()),
		Reason:           r.Reason(),
		ExpiresAt:        timePtr(r.ExpiresAt()),
		Status:           string(r.Status()),
		AccepterID:       uuidPtr(r.AccepterID()),
		ReplacementStart: timePtr(r.ReplacementStart()),
		ReplacementEnd:   timePtr(r.ReplacementEnd()),
		ResponseMessage:  r.ResponseMessage(),
		RespondedAt:      timePtr(r.RespondedAt()),
		ApprovedBy:       uuidPtr(r.ApprovedBy()),
		CreatedAt:        r.CreatedAt(),
		UpdatedAt:        r.UpdatedAt(),
	}
}

func toDomainPolicy(row models.EscalationPolicy, stepRows []models.EscalationStep) *escalation.Policy {
	steps := make([]escalation.Step, 0, len(stepRows))
	for _, s := range stepRows {
		steps = append(steps, escalation.Step{
			StepNumber:   s.StepNumber,
			DelayMinutes: s.DelayMinutes,
			NotifyType:   escalation.NotifyType(s.NotifyType),
			TargetID:     s.TargetID,
			Channels:     s.Channels,
		})
	}
	return escalation.Hydrate(
		row.TenantID,
		row.ID,
		row.Name,
		row.RepeatCount,
		row.RepeatDelayMinutes,
		steps,
		row.CreatedAt,
		row.UpdatedAt,
	)
}
