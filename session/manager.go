package session

// Manager owns the single-owner lifecycle of Sessions: at most one
// connected Sender may hold a given client ID at a time. A second
// CONNECT for the same client ID while the first is still attached is
// rejected with ErrSessionInUse; the caller (the broker's connection
// actor) refuses that connection outright and leaves the first one
// intact. Kick exists as a separate, administrative primitive for
// forcing an existing owner off — callers other than the CONNECT path
// may still need it — but the connect handshake itself never calls it.
type Manager struct {
	store              Store
	maxInflightPerSess int
	maxQueuedPerSess   int
}

// Config configures the manager's bookkeeping bounds. Both bounds
// guard against an unbounded, indefinitely-disconnected non-clean
// session consuming memory without limit.
type Config struct {
	MaxInflightPerSession int
	MaxQueuedPerSession   int
}

func NewManager(store Store, cfg Config) *Manager {
	if cfg.MaxInflightPerSession <= 0 {
		cfg.MaxInflightPerSession = 20
	}
	if cfg.MaxQueuedPerSession <= 0 {
		cfg.MaxQueuedPerSession = 100
	}
	return &Manager{
		store:              store,
		maxInflightPerSess: cfg.MaxInflightPerSession,
		maxQueuedPerSess:   cfg.MaxQueuedPerSession,
	}
}

// Acquire binds sender as the owner of clientID's session, creating the
// session if it doesn't exist. sessionPresent reports whether a prior,
// non-clean session was resumed (CONNACK's session-present bit).
//
// Acquire does not flush a resumed session's held inflight/offline
// state; the caller must send CONNACK first and only then call
// Session.Flush, so nothing reaches the client ahead of it.
//
// If clientID is already owned by a connected Sender, Acquire returns
// ErrSessionInUse without touching anything; the existing owner is left
// connected and the new claim is rejected.
func (m *Manager) Acquire(clientID string, cleanSession bool, sender Sender) (sess *Session, sessionPresent bool, err error) {
	existing, ok := m.store.Get(clientID)
	if !ok {
		ns := newSession(clientID, cleanSession, m.maxInflightPerSess, m.maxQueuedPerSess)
		if err := ns.attach(sender); err != nil {
			return nil, false, err
		}
		m.store.Put(ns)
		return ns, false, nil
	}

	if existing.Connected() {
		return nil, false, ErrSessionInUse
	}

	existing.mu.Lock()
	if cleanSession || existing.cleanSession {
		existing.reset()
		existing.cleanSession = cleanSession
		sessionPresent = false
	} else {
		sessionPresent = true
	}
	existing.mu.Unlock()

	if err := existing.attach(sender); err != nil {
		return nil, false, err
	}
	return existing, sessionPresent, nil
}

// Kick force-closes clientID's current connection, if any, so a
// pending Acquire for the same ID can succeed. It does not wait for
// the close to complete; the owning connection's teardown path calls
// Release once it notices.
func (m *Manager) Kick(clientID string) {
	s, ok := m.store.Get(clientID)
	if !ok {
		return
	}
	s.mu.Lock()
	owner := s.owner
	s.mu.Unlock()
	if owner != nil {
		_ = owner.Close()
	}
}

// Release detaches sender from clientID's session if it is still the
// current owner (a stale connection racing a takeover must not detach
// the new owner). A clean_session session is fully removed; a
// persistent one stays in the store, subscriptions and inflight state
// intact, for a future reconnect.
func (m *Manager) Release(clientID string, sender Sender) {
	s, ok := m.store.Get(clientID)
	if !ok {
		return
	}
	s.mu.Lock()
	isOwner := s.owner == sender
	if isOwner {
		s.owner = nil
	}
	clean := s.cleanSession
	s.mu.Unlock()

	if isOwner && clean {
		m.store.Delete(clientID)
	}
}

// Remove deletes clientID's session unconditionally, e.g. after an
// explicit administrative eviction.
func (m *Manager) Remove(clientID string) {
	m.store.Delete(clientID)
}

// Get returns the session for clientID without altering ownership.
func (m *Manager) Get(clientID string) (*Session, bool) {
	return m.store.Get(clientID)
}

func (m *Manager) Count() int {
	return m.store.Count()
}
