package schedule

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/modules/oncall/domain/rotation"
	"github.com/opsdesk-io/opsdesk/pkg/constants"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type MemberDTO struct {
	UserID   uuid.UUID `json:"user_id" validate:"required"`
	Position int       `json:"position" validate:"required,min=1"`
	IsActive bool      `json:"is_active"`
}

type CreateDTO struct {
	Name               string      `json:"name" validate:"required"`
	Timezone           string      `json:"timezone" validate:"required"`
	RotationType       string      `json:"rotation_type" validate:"required,oneof=daily weekly bi_weekly custom"`
	RotationLengthDays int         `json:"rotation_length_days" validate:"omitempty,min=1"`
	HandoffTime        string      `json:"handoff_time" validate:"required"`
	HandoffWeekday     int         `json:"handoff_weekday" validate:"min=0,max=6"`
	Epoch              time.Time   `json:"epoch"`
	Members            []MemberDTO `json:"members" validate:"dive"`
}

type UpdateDTO struct {
	Name     *string `json:"name" validate:"omitempty,min=1"`
	IsActive *bool   `json:"is_active"`
}

func (d *CreateDTO) Ok() (serrors.ValidationErrors, bool) {
	d.Name = strings.TrimSpace(d.Name)

	if errs := constants.Validate.Struct(d); errs != nil {
		return serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors)), false
	}
	out := serrors.ValidationErrors{}
	if rotation.Kind(d.RotationType) == rotation.KindCustom && d.RotationLengthDays < 1 {
		out["rotation_length_days"] = "custom rotations require a positive length"
	}
	if _, err := time.Parse("15:04", d.HandoffTime); err != nil {
		out["handoff_time"] = "must be HH:MM"
	}
	if _, err := time.LoadLocation(d.Timezone); err != nil {
		out["timezone"] = "must be a known IANA timezone"
	}
	return out, len(out) == 0
}

func (d *CreateDTO) ToEntity(tenantID uuid.UUID) *Schedule {
	members := make([]rotation.Member, 0, len(d.Members))
	for _, m := range d.Members {
		members = append(members, rotation.Member{
			UserID:   m.UserID,
			Position: m.Position,
			IsActive: m.IsActive,
		})
	}
	return New(
		tenantID,
		d.Name,
		d.Timezone,
		rotation.Kind(d.RotationType),
		d.RotationLengthDays,
		d.HandoffTime,
		time.Weekday(d.HandoffWeekday),
		WithMembers(members),
		WithEpoch(d.Epoch),
	)
}

func (d *UpdateDTO) Ok() (serrors.ValidationErrors, bool) {
	if errs := constants.Validate.Struct(d); errs != nil {
		return serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors)), false
	}
	return serrors.ValidationErrors{}, true
}
