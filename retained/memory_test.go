package retained

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embermq/broker/packet"
)

func TestMemoryBackendSetAndMatchExact(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Set("home/temp", Message{Topic: "home/temp", Payload: []byte("21"), QoS: packet.QoS0}))

	matched, err := b.Match("home/temp")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, []byte("21"), matched[0].Payload)
}

func TestMemoryBackendEmptyPayloadClears(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Set("home/temp", Message{Topic: "home/temp", Payload: []byte("21")}))
	require.NoError(t, b.Set("home/temp", Message{Topic: "home/temp", Payload: nil}))

	matched, err := b.Match("home/temp")
	require.NoError(t, err)
	assert.Len(t, matched, 0)
	n, _ := b.Count()
	assert.Equal(t, 0, n)
}

func TestMemoryBackendWildcardMatch(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Set("home/room1/temp", Message{Payload: []byte("1")}))
	require.NoError(t, b.Set("home/room2/temp", Message{Payload: []byte("2")}))

	matched, err := b.Match("home/+/temp")
	require.NoError(t, err)
	assert.Len(t, matched, 2)

	matched, err = b.Match("home/#")
	require.NoError(t, err)
	assert.Len(t, matched, 2)
}

func TestMemoryBackendReservedTopicsSkipWildcards(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Set("$SYS/broker/uptime", Message{Payload: []byte("1")}))

	matched, err := b.Match("#")
	require.NoError(t, err)
	assert.Len(t, matched, 0)

	matched, err = b.Match("$SYS/broker/uptime")
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}

func TestMemoryBackendDelete(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Set("a/b", Message{Payload: []byte("x")}))
	require.NoError(t, b.Delete("a/b"))

	matched, err := b.Match("a/b")
	require.NoError(t, err)
	assert.Len(t, matched, 0)
}

func TestMemoryBackendCleanupExpired(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Set("a/b", Message{Payload: []byte("x"), ExpiresAt: time.Now().Add(-time.Second)}))
	require.NoError(t, b.Set("a/c", Message{Payload: []byte("y")}))

	count, err := b.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	n, _ := b.Count()
	assert.Equal(t, 1, n)
}
