// Package idgen assigns client IDs for CONNECT packets that arrive with
// a zero-length client identifier.
package idgen

import "github.com/google/uuid"

// New returns a generator producing a fresh 36-character lowercase UUID
// string on every call, suitable as the Broker's idgen collaborator.
// Unlike a hex-encoded-random-bytes scheme, it needs no store lookup to
// avoid collisions: UUIDv4's collision probability is low enough that
// the broker doesn't retry-on-exists the way it would for a narrower
// ID space.
func New() func() string {
	return func() string {
		return uuid.NewString()
	}
}
