package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// WriteDomainError maps a typed domain error to its HTTP status. Untyped
// errors are reported as opaque internal failures.
func WriteDomainError(w http.ResponseWriter, err error) error {
	code := serrors.CodeOf(err)
	if code == "" {
		return WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
	return WriteError(w, StatusForKind(serrors.KindOf(err)), code, err.Error(), nil)
}

func StatusForKind(kind serrors.Kind) int {
	switch kind {
	case serrors.KindNotFound:
		return http.StatusNotFound
	case serrors.KindValidation, serrors.KindEmptyRotation:
		return http.StatusUnprocessableEntity
	case serrors.KindForbidden:
		return http.StatusForbidden
	case serrors.KindConflict, serrors.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
