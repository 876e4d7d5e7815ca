package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(NewMemoryStore(), Config{MaxInflightPerSession: 5, MaxQueuedPerSession: 10})
}

func TestManagerAcquireCreatesNewSession(t *testing.T) {
	m := newTestManager()
	sender := &fakeSender{}

	s, present, err := m.Acquire("c1", true, sender)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Equal(t, "c1", s.ClientID())
	assert.Equal(t, 1, m.Count())
}

func TestManagerAcquireResumesNonCleanSession(t *testing.T) {
	m := newTestManager()
	first := &fakeSender{}
	s, _, err := m.Acquire("c1", false, first)
	require.NoError(t, err)
	s.AddSubscription("a/b", 1)
	m.Release("c1", first)

	second := &fakeSender{}
	resumed, present, err := m.Acquire("c1", false, second)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Len(t, resumed.Subscriptions(), 1)
}

func TestManagerAcquireWipesCleanSession(t *testing.T) {
	m := newTestManager()
	first := &fakeSender{}
	s, _, err := m.Acquire("c1", false, first)
	require.NoError(t, err)
	s.AddSubscription("a/b", 1)
	m.Release("c1", first)

	second := &fakeSender{}
	resumed, present, err := m.Acquire("c1", true, second)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Len(t, resumed.Subscriptions(), 0)
}

func TestManagerAcquireRejectsConcurrentClaim(t *testing.T) {
	m := newTestManager()
	first := &fakeSender{}
	_, _, err := m.Acquire("c1", false, first)
	require.NoError(t, err)

	second := &fakeSender{}
	_, _, err = m.Acquire("c1", false, second)
	assert.ErrorIs(t, err, ErrSessionInUse)
}

func TestManagerKickThenAcquireSucceeds(t *testing.T) {
	m := newTestManager()
	first := &fakeSender{}
	_, _, err := m.Acquire("c1", false, first)
	require.NoError(t, err)

	m.Kick("c1")
	assert.True(t, first.closed)

	m.Release("c1", first)
	second := &fakeSender{}
	_, present, err := m.Acquire("c1", false, second)
	require.NoError(t, err)
	assert.True(t, present)
}

func TestManagerReleaseCleanSessionRemovesIt(t *testing.T) {
	m := newTestManager()
	sender := &fakeSender{}
	_, _, err := m.Acquire("c1", true, sender)
	require.NoError(t, err)

	m.Release("c1", sender)
	assert.Equal(t, 0, m.Count())
}

func TestManagerReleaseStaleOwnerIsNoop(t *testing.T) {
	m := newTestManager()
	first := &fakeSender{}
	_, _, err := m.Acquire("c1", false, first)
	require.NoError(t, err)
	m.Release("c1", first)

	second := &fakeSender{}
	_, _, err = m.Acquire("c1", false, second)
	require.NoError(t, err)

	// A release from the superseded sender must not detach the new owner.
	m.Release("c1", first)
	s, ok := m.Get("c1")
	require.True(t, ok)
	assert.True(t, s.Connected())
}

func TestManagerRemove(t *testing.T) {
	m := newTestManager()
	sender := &fakeSender{}
	_, _, err := m.Acquire("c1", false, sender)
	require.NoError(t, err)

	m.Remove("c1")
	assert.Equal(t, 0, m.Count())
}
