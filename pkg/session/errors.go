package session

import "errors"

// Error taxonomy for session operations. Callers classify failures with
// errors.Is; the transport layer maps them onto response codes.
var (
	// ErrValidation indicates malformed or missing input, an invalid
	// identifier, or a create attempt while another session is live.
	ErrValidation = errors.New("invalid session input")

	// ErrNotFound indicates the referenced session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrIllegalState indicates the operation is not permitted in the
	// session's current state.
	ErrIllegalState = errors.New("operation not allowed in current session state")

	// ErrCollaborator indicates a directory, audio or store operation
	// failed. The underlying error is wrapped alongside the sentinel.
	ErrCollaborator = errors.New("collaborator failure")
)
