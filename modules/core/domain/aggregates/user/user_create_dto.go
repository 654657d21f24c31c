package user

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/opsdesk-io/opsdesk/pkg/constants"
	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type CreateDTO struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required"`
	IsAdmin     bool   `json:"is_admin"`
}

func (d *CreateDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.DisplayName = strings.TrimSpace(d.DisplayName)
}

func (d *CreateDTO) Ok() (serrors.ValidationErrors, bool) {
	d.Normalize()

	errs := constants.Validate.Struct(d)
	if errs == nil {
		return serrors.ValidationErrors{}, true
	}
	return serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors)), false
}
