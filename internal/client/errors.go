package client

import "github.com/pkg/errors"

// ErrNoDisplayName indicates a connect attempt without a display name set.
var ErrNoDisplayName = errors.New("no display name set")

// ErrNotConnected indicates a session operation before Connect succeeded.
var ErrNotConnected = errors.New("not connected")

// ErrAckTimeout indicates the server did not acknowledge in time.
var ErrAckTimeout = errors.New("acknowledgement timeout")

// ErrNotReady indicates the readiness gate gave up waiting for the viewer.
var ErrNotReady = errors.New("viewer not ready")

// ErrSessionConflict indicates the generated session id already exists.
var ErrSessionConflict = errors.New("session id conflict")

// ErrSessionNotFound indicates a join for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// ErrAlreadyInSession indicates the server holds this connection in another
// session; leave it before creating or joining a new one.
var ErrAlreadyInSession = errors.New("already in a session")
