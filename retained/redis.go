package retained

import (
	"context"
	"errors"
	"time"

	"github.com/embermq/broker/store"
)

// RedisBackend persists retained messages in Redis, shared across a
// cluster of brokers so every node serves the same retained set.
type RedisBackend struct {
	store *store.RedisStore[Message]
}

func NewRedisBackend(cfg store.RedisStoreConfig) (*RedisBackend, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "retained:"
	}
	s, err := store.NewRedisStore[Message](cfg)
	if err != nil {
		return nil, err
	}
	return &RedisBackend{store: s}, nil
}

func (b *RedisBackend) Set(topic string, msg Message) error {
	ctx := context.Background()
	if len(msg.Payload) == 0 {
		return b.store.Delete(ctx, topic)
	}
	return b.store.Save(ctx, topic, msg)
}

func (b *RedisBackend) Delete(topic string) error {
	return b.store.Delete(context.Background(), topic)
}

func (b *RedisBackend) Match(filter string) ([]Message, error) {
	ctx := context.Background()
	keys, err := b.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var matched []Message
	now := time.Now()
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
		if msg.expired(now) {
			continue
		}
		matched = append(matched, msg)
	}
	return matched, nil
}

func (b *RedisBackend) CleanupExpired() (int, error) {
	// Nothing is swept here: a Redis key expires only through the
	// store-wide TTL (store.RedisStoreConfig.TTL), if one is set. A
	// message whose ExpiresAt has passed stays stored and counted until
	// it is replaced or deleted; Match skips it.
	return 0, nil
}

func (b *RedisBackend) Count() (int, error) {
	n, err := b.store.Count(context.Background())
	return int(n), err
}

func (b *RedisBackend) Close() error {
	return b.store.Close()
}
