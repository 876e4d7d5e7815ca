package retained

import (
	"context"
	"errors"
	"time"

	"github.com/embermq/broker/store"
)

// PebbleBackend persists retained messages in an embedded Pebble
// database, surviving broker restarts. Topic names are the store key;
// Match lists every stored key and tests it against the filter, since
// Pebble has no concept of our topic-level trie.
type PebbleBackend struct {
	store *store.PebbleStore[Message]
}

func NewPebbleBackend(path string) (*PebbleBackend, error) {
	s, err := store.NewPebbleStore[Message](store.PebbleStoreConfig{
		Path:   path,
		Prefix: "retained:",
	})
	if err != nil {
		return nil, err
	}
	return &PebbleBackend{store: s}, nil
}

func (b *PebbleBackend) Set(topic string, msg Message) error {
	ctx := context.Background()
	if len(msg.Payload) == 0 {
		return b.store.Delete(ctx, topic)
	}
	return b.store.Save(ctx, topic, msg)
}

func (b *PebbleBackend) Delete(topic string) error {
	return b.store.Delete(context.Background(), topic)
}

func (b *PebbleBackend) Match(filter string) ([]Message, error) {
	ctx := context.Background()
	keys, err := b.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var matched []Message
	for _, topic := range keys {
		if !matchesFilter(filter, topic) {
			continue
		}
		msg, err := b.store.Load(ctx, topic)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if msg.expired(time.Now()) {
			continue
		}
		matched = append(matched, msg)
	}
	return matched, nil
}

func (b *PebbleBackend) CleanupExpired() (int, error) {
	ctx := context.Background()
	keys, err := b.store.List(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	now := time.Now()
	for _, topic := range keys {
		msg, err := b.store.Load(ctx, topic)
		if err != nil {
			continue
		}
		if msg.expired(now) {
			if err := b.store.Delete(ctx, topic); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func (b *PebbleBackend) Count() (int, error) {
	n, err := b.store.Count(context.Background())
	return int(n), err
}

func (b *PebbleBackend) Close() error {
	return b.store.Close()
}
