package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

// DecodeBody parses a JSON request body into dst. A false return means
// the response has already been written.
func DecodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		_ = WriteError(w, http.StatusBadRequest, "BAD_JSON", "malformed request body", nil)
		return false
	}
	return true
}

// WriteValidationErrors reports field-level validation failures.
func WriteValidationErrors(w http.ResponseWriter, errs serrors.ValidationErrors) error {
	return WriteError(w, http.StatusUnprocessableEntity, "VALIDATION", "validation failed", errs)
}

// QueryTime parses an RFC 3339 instant from the query string, falling
// back to def when the parameter is absent.
func QueryTime(r *http.Request, name string, def time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, raw)
}
