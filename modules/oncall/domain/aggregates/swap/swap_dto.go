package swap

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/pkg/constants"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type CreateDTO struct {
	ScheduleID      uuid.UUID  `json:"schedule_id" validate:"required"`
	OriginalShiftID *uuid.UUID `json:"original_shift_id"`
	OriginalStart   time.Time  `json:"original_start" validate:"required"`
	OriginalEnd     time.Time  `json:"original_end" validate:"required"`
	OfferedToUserID *uuid.UUID `json:"offered_to_user_id"`
	Reason          string     `json:"reason"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

type UpdateDTO struct {
	OfferedToUserID *uuid.UUID `json:"offered_to_user_id"`
	Reason          *string    `json:"reason"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

type RespondDTO struct {
	Message string `json:"message"`
}

type ApproveDTO struct {
	AccepterID *uuid.UUID `json:"accepter_id"`
}

func (d *CreateDTO) Ok() (serrors.ValidationErrors, bool) {
	if errs := constants.Validate.Struct(d); errs != nil {
		return serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors)), false
	}
	out := serrors.ValidationErrors{}
	if !d.OriginalEnd.After(d.OriginalStart) {
		out["original_end"] = "must be after original_start"
	}
	return out, len(out) == 0
}
