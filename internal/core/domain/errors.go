package domain

import "errors"

var (
	// ErrNotFound is returned when a user, policy, event or link does not exist.
	ErrNotFound = errors.New("pulse: not found")

	// ErrOpenEventExists is returned by the event store when a second OPEN
	// event would be created for the same user.
	ErrOpenEventExists = errors.New("pulse: user already has an open event")
	// ErrEventNotOpen is returned when an update targets an event that is no
	// longer OPEN, e.g. one resolved between the scan and the write.
	ErrEventNotOpen = errors.New("pulse: event is not open")
	// ErrInvalidTransition is returned for stage or status moves the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("pulse: invalid transition")

	ErrInvalidCode   = errors.New("invitation: invalid code")
	ErrExpiredCode   = errors.New("invitation: code expired")
	ErrSelfInvite    = errors.New("invitation: cannot be your own guardian")
	ErrDuplicateLink = errors.New("invitation: already a guardian for this user")
	ErrNotGuardian   = errors.New("guardian: not a guardian of this user")

	ErrInvalidPolicy     = errors.New("policy: invalid value")
	ErrInvalidSignalType = errors.New("signal: unknown signal type")
	ErrEmptyDeviceToken  = errors.New("device: token is required")

	// ErrUnregisteredToken marks a delivery token the push provider no longer
	// accepts. It is permanent; the token should be cleared.
	ErrUnregisteredToken = errors.New("push: token unregistered")
)

// IsValidationFailure reports whether err belongs to the invitation and input
// validation family that is surfaced to callers and never retried.
func IsValidationFailure(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrExpiredCode),
		errors.Is(err, ErrSelfInvite),
		errors.Is(err, ErrDuplicateLink),
		errors.Is(err, ErrInvalidPolicy),
		errors.Is(err, ErrInvalidSignalType),
		errors.Is(err, ErrEmptyDeviceToken):
		return true
	}
	return false
}
