package incident

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/opsdesk-io/opsdesk/pkg/constants"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type CreateDTO struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Severity    string     `json:"severity" validate:"required,oneof=critical high medium low"`
	PolicyID    *uuid.UUID `json:"escalation_policy_id"`
}

type UpdateDTO struct {
	Title       *string `json:"title" validate:"omitempty,min=1"`
	Description *string `json:"description"`
	Severity    *string `json:"severity" validate:"omitempty,oneof=critical high medium low"`
}

func (d *CreateDTO) Ok() (serrors.ValidationErrors, bool) {
	d.Title = strings.TrimSpace(d.Title)

	if errs := constants.Validate.Struct(d); errs != nil {
		return serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors)), false
	}
	return serrors.ValidationErrors{}, true
}

func (d *UpdateDTO) Ok() (serrors.ValidationErrors, bool) {
	if errs := constants.Validate.Struct(d); errs != nil {
		return serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors)), false
	}
	return serrors.ValidationErrors{}, true
}

func (d *CreateDTO) ToEntity(tenantID uuid.UUID) *Incident {
	opts := make([]Option, 0, 1)
	if d.PolicyID != nil {
		opts = append(opts, WithPolicy(*d.PolicyID))
	}
	return New(tenantID, d.Title, d.Description, Severity(d.Severity), opts...)
}
