package api

import "fmt"

// NetworkError wraps a transport-level failure: the request never completed
// or the backend answered with a server-side error status. Callers treat it
// as transient and retry on the next poll tick.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NotFoundError means the match no longer exists on the backend. Not
// transient: polling a vanished match must stop.
type NotFoundError struct {
	MatchID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("match %d not found", e.MatchID)
}

// ConflictError is a domain-level rejection of a move, typically because the
// local turn state was stale ("not your turn"). Mensaje is the backend's own
// wording and is safe to surface to the player.
type ConflictError struct {
	Op      string
	Mensaje string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: rejected by backend: %s", e.Op, e.Mensaje)
}

// MalformedResponseError means the backend answered 2xx but the body violated
// the contract: success flag false, undecodable JSON, or a required field
// missing.
type MalformedResponseError struct {
	Op     string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Reason)
}

// ValidationError reports a local precondition violation caught before any
// request is sent. The TurnEngine's own gating should make these unreachable.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}
