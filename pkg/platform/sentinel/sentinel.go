package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, the connection manager and the
// retention sweeper return these (optionally wrapped) so services and handlers can
// translate them without knowing which driver produced them.
//
// - ErrNotFound: no stored record matches the lookup
// - ErrUnavailable: the database could not be reached or retries are exhausted
// - ErrClosed: the resource was shut down and will not come back
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
