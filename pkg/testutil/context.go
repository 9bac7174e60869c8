package testutil

import (
	"net/http"
	"time"

	"certhub/pkg/requestcontext"
)

// WithRequestTime pins the request clock, as the request.Time middleware would.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithRequestID attaches a request id, as the request.RequestID middleware would.
func WithRequestID(req *http.Request, id string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), id))
}
