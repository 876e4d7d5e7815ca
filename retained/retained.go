// Package retained holds the last message published to each topic with
// the retain flag set, so a new SUBSCRIBE immediately receives the
// topic's current value instead of waiting for the next publish.
package retained

import (
	"time"

	"github.com/embermq/broker/packet"
)

// Message is one retained publish. An empty Payload with Retain set is
// a delete: the publisher is asking the broker to clear whatever was
// retained on the topic, so backends never store it.
type Message struct {
	Topic     string
	Payload   []byte
	QoS       packet.QoS
	ExpiresAt time.Time
}

func (m Message) expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}

// Backend persists retained messages, indexed by exact topic name, and
// resolves them against an incoming SUBSCRIBE's topic filter.
type Backend interface {
	Set(topic string, msg Message) error
	Delete(topic string) error
	Match(filter string) ([]Message, error)
	CleanupExpired() (int, error)
	Count() (int, error)
	Close() error
}
