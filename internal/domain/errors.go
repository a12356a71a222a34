package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist. Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. missing destination, non-positive distance threshold).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrConfiguration is returned when a trip cannot start because required
// configuration is absent — above all the carrier credentials. The check
// runs before any persistence or network I/O. Handlers should map this to
// HTTP 412 Precondition Failed.
var ErrConfiguration = errors.New("configuration error")

// ErrTripActive is returned when starting a trip while another one is still
// tracking. The engine holds a single active trip at a time.
// Handlers should map this to HTTP 409 Conflict.
var ErrTripActive = errors.New("a trip is already active")
