// Package api implements VerSafe's HTTP edge (spec.md §6): the response
// envelope, routing, and one handler file per component
// (auth/documents/signatures/verification/ledger). Every handler
// translates an internal/apperr.Error into an envelope; it never writes a
// database error string or a stack trace to the client.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/versafe/versafe-core/internal/apperr"
	"github.com/versafe/versafe-core/internal/logging"
)

// envelope is the shape every response shares (spec.md §6: "{ success,
// message?, data?, error? }").
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Kind   apperr.Kind `json:"kind"`
	Detail string      `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: true, Message: message})
}

// writeError translates err into the error envelope and the matching
// status code from the taxonomy in spec.md §7. Internal-kind errors are
// logged server-side with a correlation id and that id is appended to the
// client-visible detail, never the underlying cause.
func writeError(w http.ResponseWriter, log *logging.Logger, correlationID string, err error) {
	var appErr *apperr.Error
	if !apperr.As(err, &appErr) {
		appErr = apperr.Internal("unexpected error", err)
	}

	status := statusForKind(appErr.Kind)
	detail := appErr.Detail
	if appErr.Kind == apperr.KindInternal {
		if log != nil {
			log.Error("internal error", "correlation_id", correlationID, "detail", appErr.Detail, "cause", errString(appErr.Cause))
		}
		detail = detail + " (ref: " + correlationID + ")"
	}

	writeJSON(w, status, envelope{
		Success: false,
		Error:   &errorBody{Kind: appErr.Kind, Detail: detail},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func statusForKind(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindSecurity:
		return http.StatusForbidden
	case apperr.KindLedgerUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindIntegrity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
