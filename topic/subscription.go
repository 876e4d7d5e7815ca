// Package topic implements the MQTT topic-filter subscription tree:
// wildcard-aware matching over a copy-on-write trie, so readers
// (publish routing) never block on writers (subscribe/unsubscribe).
package topic

import "github.com/embermq/broker/packet"

// Subscriber identifies the session-side end of a subscription entry.
// SessionKey is a stable, comparable handle (the session's client ID)
// used for replace-on-resubscribe and removal; Ref is an opaque
// back-reference the tree stores but never dereferences, letting
// session.Manager keep the only strong pointer to the session itself.
type Subscriber struct {
	SessionKey string
	Ref        any
	MaxQoS     packet.QoS
}

// Match is one entry produced by Tree.Match: a subscriber plus the
// delivery QoS computed for this publish, capped by the incoming
// publish's own QoS.
type Match struct {
	Subscriber Subscriber
	QoS        packet.QoS
}
