package session

import (
	"sync"
	"time"

	"github.com/embermq/broker/packet"
)

// Sender is the connection-side handle a Session uses to push bytes to
// its client. network.Connection implements it; tests use a fake.
type Sender interface {
	Send(raw []byte) error
	Close() error
}

// Will is the MQTT will message recorded at CONNECT time and published
// by the broker when the owning connection drops ungracefully.
type Will struct {
	Topic   string
	Payload []byte
	QoS     packet.QoS
	Retain  bool
}

// Outbound is one message routed to a session for delivery, independent
// of whether the session is currently connected.
type Outbound struct {
	Topic   string
	Payload []byte
	QoS     packet.QoS
	Retain  bool
}

type outboundState byte

const (
	stateAwaitingPubAck outboundState = iota
	stateAwaitingPubRec
	stateAwaitingPubComp
)

type pendingOutbound struct {
	msg   Outbound
	state outboundState
}

// Session is one MQTT client's in-memory state: its subscriptions, its
// will, and the inflight/offline bookkeeping needed to honor QoS 1 and
// QoS 2 delivery. A non-clean session keeps all of it across reconnects
// for as long as the broker process runs; nothing survives a restart
// (see Store).
type Session struct {
	mu sync.Mutex

	clientID     string
	cleanSession bool
	owner        Sender
	createdAt    time.Time
	lastActive   time.Time

	will *Will

	subscriptions map[string]packet.QoS // topic filter -> granted QoS

	nextPacketID uint16

	// PendingPublish: outbound QoS1/QoS2 sent but not yet acked.
	pendingPublish map[packet.ID]*pendingOutbound
	// PendingPubrel: inbound QoS2 for which PUBREC was sent, marker set
	// keyed by packet ID, awaiting the client's PUBREL (dedup barrier).
	pendingPubrel map[packet.ID]struct{}
	// PendingPubcomp: outbound QoS2 for which PUBREL was sent, awaiting
	// the client's PUBCOMP.
	pendingPubcomp map[packet.ID]struct{}

	offlineQueue []Outbound

	maxInflight int
	maxQueued   int
}

func newSession(clientID string, cleanSession bool, maxInflight, maxQueued int) *Session {
	now := time.Now()
	return &Session{
		clientID:       clientID,
		cleanSession:   cleanSession,
		createdAt:      now,
		lastActive:     now,
		subscriptions:  make(map[string]packet.QoS),
		nextPacketID:   1,
		pendingPublish: make(map[packet.ID]*pendingOutbound),
		pendingPubrel:  make(map[packet.ID]struct{}),
		pendingPubcomp: make(map[packet.ID]struct{}),
		maxInflight:    maxInflight,
		maxQueued:      maxQueued,
	}
}

func (s *Session) ClientID() string {
	return s.clientID
}

func (s *Session) CleanSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanSession
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner != nil
}

// SetWill records the will to be published on an ungraceful disconnect.
// A clean DISCONNECT clears it before the connection closes.
func (s *Session) SetWill(w *Will) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.will = w
}

func (s *Session) ClearWill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.will = nil
}

func (s *Session) Will() *Will {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.will
}

// AddSubscription records filter's granted QoS for this session. It
// does not touch the subscription tree; callers own that separately so
// a session can be queried without taking the tree's write lock.
func (s *Session) AddSubscription(filter string, qos packet.QoS) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[filter] = qos
}

func (s *Session) RemoveSubscription(filter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, filter)
}

func (s *Session) Subscriptions() map[string]packet.QoS {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]packet.QoS, len(s.subscriptions))
	for k, v := range s.subscriptions {
		out[k] = v
	}
	return out
}

// reset wipes subscription and inflight state, used when a session is
// reclaimed under clean_session=1.
func (s *Session) reset() {
	s.subscriptions = make(map[string]packet.QoS)
	s.pendingPublish = make(map[packet.ID]*pendingOutbound)
	s.pendingPubrel = make(map[packet.ID]struct{})
	s.pendingPubcomp = make(map[packet.ID]struct{})
	s.offlineQueue = nil
	s.will = nil
}

// attach binds sender as this session's connected owner. It does not
// flush held state: the caller must send CONNACK first and only then
// call Flush, so a resumed session's resent PUBLISHes never race ahead
// of the CONNACK that announces the connection is ready for them.
func (s *Session) attach(sender Sender) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = sender
	s.lastActive = time.Now()
	return nil
}

// Flush redelivers whatever this session held while detached: unacked
// inflight messages are resent with DUP set, pending PUBRELs are
// reissued, then the offline queue drains in order. Call it once,
// after the CONNACK for the connection that just attached has been
// written to the wire.
func (s *Session) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, pending := range s.pendingPublish {
		if pending.state != stateAwaitingPubAck && pending.state != stateAwaitingPubRec {
			continue
		}
		raw, err := packet.EncodePublish(packet.PublishPacket{
			DUP:      true,
			QoS:      pending.msg.QoS,
			Retain:   pending.msg.Retain,
			Topic:    pending.msg.Topic,
			PacketID: id,
			Payload:  pending.msg.Payload,
		})
		if err != nil {
			return err
		}
		if err := s.owner.Send(raw); err != nil {
			return err
		}
	}
	for id := range s.pendingPubcomp {
		if err := s.owner.Send(packet.EncodePubRel(id)); err != nil {
			return err
		}
	}

	queue := s.offlineQueue
	s.offlineQueue = nil
	for _, msg := range queue {
		if err := s.sendLocked(msg); err != nil {
			return err
		}
	}
	return nil
}

// detach unbinds the current owner, leaving subscriptions and inflight
// state intact for a non-clean session to resume later.
func (s *Session) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = nil
}

// Deliver routes one message to this session: sent immediately if
// connected, otherwise queued (bounded, drop-oldest) for replay on the
// next CONNECT.
func (s *Session) Deliver(msg Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner == nil {
		s.enqueueLocked(msg)
		return nil
	}
	if msg.QoS > packet.QoS0 && len(s.pendingPublish) >= s.maxInflight {
		s.enqueueLocked(msg)
		return nil
	}
	return s.sendLocked(msg)
}

func (s *Session) sendLocked(msg Outbound) error {
	if msg.QoS == packet.QoS0 {
		raw, err := packet.EncodePublish(packet.PublishPacket{
			QoS:     packet.QoS0,
			Retain:  msg.Retain,
			Topic:   msg.Topic,
			Payload: msg.Payload,
		})
		if err != nil {
			return err
		}
		return s.owner.Send(raw)
	}

	id := s.nextPacketIDLocked()
	state := stateAwaitingPubAck
	if msg.QoS == packet.QoS2 {
		state = stateAwaitingPubRec
	}
	s.pendingPublish[id] = &pendingOutbound{msg: msg, state: state}

	raw, err := packet.EncodePublish(packet.PublishPacket{
		QoS:      msg.QoS,
		Retain:   msg.Retain,
		Topic:    msg.Topic,
		PacketID: id,
		Payload:  msg.Payload,
	})
	if err != nil {
		delete(s.pendingPublish, id)
		return err
	}
	return s.owner.Send(raw)
}

func (s *Session) enqueueLocked(msg Outbound) {
	if len(s.offlineQueue) >= s.maxQueued {
		// Drop-oldest backpressure: a session detached for a long time
		// loses its earliest buffered messages rather than growing
		// without bound.
		s.offlineQueue = s.offlineQueue[1:]
	}
	s.offlineQueue = append(s.offlineQueue, msg)
}

func (s *Session) nextPacketIDLocked() packet.ID {
	for {
		id := packet.ID(s.nextPacketID)
		s.nextPacketID++
		if s.nextPacketID == 0 {
			s.nextPacketID = 1
		}
		if _, ok := s.pendingPublish[id]; ok {
			continue
		}
		return id
	}
}

// HandlePubAck completes an outbound QoS1 exchange.
func (s *Session) HandlePubAck(id packet.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pendingPublish[id]; ok && p.state == stateAwaitingPubAck {
		delete(s.pendingPublish, id)
	}
}

// HandlePubRec advances an outbound QoS2 exchange: the caller must then
// send the PUBREL this call returns.
func (s *Session) HandlePubRec(id packet.ID) (pubrel []byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, present := s.pendingPublish[id]
	if !present || p.state != stateAwaitingPubRec {
		return nil, false
	}
	delete(s.pendingPublish, id)
	s.pendingPubcomp[id] = struct{}{}
	return packet.EncodePubRel(id), true
}

// HandlePubComp completes an outbound QoS2 exchange.
func (s *Session) HandlePubComp(id packet.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingPubcomp, id)
}

// ReceivePublishQoS2 records an inbound QoS2 PUBLISH's packet ID and
// reports whether it was already seen (a retransmit the broker must
// PUBREC again without re-delivering to subscribers).
func (s *Session) ReceivePublishQoS2(id packet.ID) (duplicate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pendingPubrel[id]; ok {
		return true
	}
	s.pendingPubrel[id] = struct{}{}
	return false
}

// CompletePubRel clears the inbound QoS2 dedup marker once the client's
// PUBREL arrives; the broker then replies with PUBCOMP.
func (s *Session) CompletePubRel(id packet.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingPubrel, id)
}

// Touch records activity on the session, independent of the keep-alive
// timer: the broker actor calls it for every packet it dispatches so
// LastActive reflects real traffic, not just CONNECT/attach time.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
