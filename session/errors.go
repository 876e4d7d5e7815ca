package session

import "errors"

var (
	// ErrSessionInUse is returned by Manager.Acquire when the requested
	// client ID is already bound to a connected owner. The new claim is
	// refused and the existing owner stays attached.
	ErrSessionInUse = errors.New("session: client ID already in use")

	ErrSessionNotFound = errors.New("session: not found")
)
