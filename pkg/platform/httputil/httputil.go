// Package httputil holds the JSON envelope shared by every endpoint.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "certhub/pkg/domain-errors"
	"certhub/pkg/platform/sentinel"
)

// Envelope is the response body for API endpoints: success flag, optional
// human-readable message, optional payload.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope with status 200.
func WriteSuccess(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// WriteFailure writes {success:false} with a caller-facing message.
func WriteFailure(w http.ResponseWriter, status int, code dErrors.Code, message string) {
	WriteJSON(w, status, Envelope{Success: false, Message: message, Error: string(code)})
}

// WriteError translates err into a failure envelope. Coded errors keep their
// message; internal errors are reduced to a generic message.
func WriteError(w http.ResponseWriter, err error) {
	code, message := classify(err)
	WriteFailure(w, dErrors.ToHTTPStatus(code), code, message)
}

func classify(err error) (dErrors.Code, string) {
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.CodeUnavailable, "service temporarily unavailable, please retry later"
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.CodeNotFound, "no matching records"
	}
	if de, ok := dErrors.As(err); ok {
		if de.Code == dErrors.CodeInternal {
			return de.Code, "internal error"
		}
		return de.Code, de.Error()
	}
	return dErrors.CodeInternal, "internal error"
}
