// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/reftabs/internal/content"
	"github.com/ManuGH/reftabs/internal/displays"
	"github.com/ManuGH/reftabs/internal/fieldview"
	"github.com/ManuGH/reftabs/internal/formatter"
	xglog "github.com/ManuGH/reftabs/internal/log"
)

// errorResponse is the JSON body of every error.
type errorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

var errBadRequest = errors.New("bad request")

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps package sentinels to a status code and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound, "entity_not_found"
	case errors.Is(err, displays.ErrNotFound):
		return http.StatusNotFound, "display_not_found"
	case errors.Is(err, fieldview.ErrFieldNotFound):
		return http.StatusNotFound, "field_not_found"
	case errors.Is(err, fieldview.ErrNotReferenceField):
		return http.StatusBadRequest, "not_reference_field"
	case errors.Is(err, formatter.ErrInvalidSettings), errors.Is(err, displays.ErrInvalid):
		return http.StatusUnprocessableEntity, "invalid_settings"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError writes err as a JSON error. Internal errors are logged and
// their detail is withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	resp := errorResponse{Error: code, Detail: err.Error(), RequestID: xglog.RequestIDFromContext(r.Context())}
	if status >= http.StatusInternalServerError {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(xglog.FieldEvent, "api.internal_error").Msg("request failed")
		resp.Detail = ""
	}
	writeJSON(w, status, resp)
}

// writeNotFound writes a 404 Not Found response
func writeNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", RequestID: xglog.RequestIDFromContext(r.Context())})
}
