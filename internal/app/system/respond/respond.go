// internal/app/system/respond/respond.go

// Package respond renders JSON responses and maps domain faults to HTTP
// statuses. Handlers never pick status codes for business-rule failures
// themselves; they pass the fault here so the mapping stays in one place.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/pickuphub/internal/domain/fault"
	"go.uber.org/zap"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON structure for error responses.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}

// BadRequest writes a 400 with a plain message (malformed input, failed
// validation). Business-rule failures go through Fault instead.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// Fault writes the HTTP rendering of a domain fault. Unclassified errors are
// logged and surface as an opaque 500.
func Fault(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := fault.KindOf(err)
	if kind == 0 {
		log.Error("unclassified handler error", zap.Error(err))
		JSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}

	body := errorBody{Error: err.Error(), Kind: kind.String()}
	var fe *fault.Error
	if errors.As(err, &fe) && fe.Kind == fault.InvalidTransition {
		body.From = string(fe.From)
		body.To = string(fe.To)
	}

	JSON(w, statusFor(kind), body)
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.NotFound:
		return http.StatusNotFound
	case fault.Unauthorized:
		return http.StatusForbidden
	case fault.InvalidTransition, fault.InvalidState, fault.CapReached, fault.Conflict:
		return http.StatusConflict
	case fault.Unavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
