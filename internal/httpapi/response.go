package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fleetdesk/wabridge/internal/dispatch"
	"github.com/fleetdesk/wabridge/internal/manager"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps the dispatch sentinels onto HTTP statuses. Anything
// unrecognized is a plain 500 with a generic body; internals never leak.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation"})
	case errors.Is(err, dispatch.ErrNotReady):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "not_ready"})
	case errors.Is(err, manager.ErrInitializeInFlight):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "initialize_in_flight"})
	case errors.Is(err, dispatch.ErrRecipientUnavailable):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "recipient_unavailable"})
	case errors.Is(err, dispatch.ErrTransport), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Code: "transport"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}
