package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/flexcp/flexcp/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding response body", "error", err)
	}
}

// writeError maps apierr.Kind onto the status codes spec 6.1 names: 400
// validation, 401 unauthenticated, 403 forbidden, 404 not found (also used
// for cross-org hides), 409 conflict/FK block, 5xx internal.
func writeError(w http.ResponseWriter, err error) {
	e, ok := apierr.As(err)
	if !ok {
		slog.Error("unmapped error reaching REST boundary", "error", err)
		writeJSON(w, http.StatusInternalServerError, errBody{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case apierr.KindValidation:
		status = http.StatusBadRequest
	case apierr.KindUnauthenticated:
		status = http.StatusUnauthorized
	case apierr.KindForbidden:
		status = http.StatusForbidden
	case apierr.KindNotFound:
		status = http.StatusNotFound
	case apierr.KindAlreadyExists, apierr.KindConflict:
		status = http.StatusConflict
	case apierr.KindTimeout:
		status = http.StatusGatewayTimeout
	case apierr.KindServiceUnavailable:
		status = http.StatusServiceUnavailable
	case apierr.KindInternal:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "kind", e.Kind, "error", e.Message)
	}

	writeJSON(w, status, errBody{
		Error:   e.Message,
		Field:   e.Field,
		Allowed: e.Allowed,
		Blocked: e.Blocked,
	})
}

type errBody struct {
	Error   string   `json:"error"`
	Field   string   `json:"field,omitempty"`
	Allowed []string `json:"allowed,omitempty"`
	Blocked []string `json:"blocked,omitempty"`
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierr.Validation("body", "malformed JSON: "+err.Error())
	}
	return nil
}
