package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embermq/broker/packet"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (f *fakeSender) Send(raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), raw...))
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestSessionTouchAdvancesLastActive(t *testing.T) {
	s := newSession("c1", true, 20, 100)
	before := s.LastActive()
	time.Sleep(time.Millisecond)
	s.Touch()
	assert.True(t, s.LastActive().After(before))
}

func TestSessionDeliverQoS0Immediate(t *testing.T) {
	s := newSession("c1", true, 20, 100)
	sender := &fakeSender{}
	require.NoError(t, s.attach(sender))
	require.NoError(t, s.Flush())

	require.NoError(t, s.Deliver(Outbound{Topic: "a/b", Payload: []byte("x"), QoS: packet.QoS0}))
	assert.Equal(t, 1, sender.count())
}

func TestSessionDeliverQueuesWhileDetached(t *testing.T) {
	s := newSession("c1", false, 20, 100)

	require.NoError(t, s.Deliver(Outbound{Topic: "a/b", Payload: []byte("x"), QoS: packet.QoS1}))
	assert.Len(t, s.offlineQueue, 1)

	sender := &fakeSender{}
	require.NoError(t, s.attach(sender))
	require.NoError(t, s.Flush())
	assert.Equal(t, 1, sender.count())
	assert.Len(t, s.offlineQueue, 0)
}

func TestSessionOfflineQueueDropsOldest(t *testing.T) {
	s := newSession("c1", false, 20, 2)

	require.NoError(t, s.Deliver(Outbound{Topic: "1", QoS: packet.QoS0}))
	require.NoError(t, s.Deliver(Outbound{Topic: "2", QoS: packet.QoS0}))
	require.NoError(t, s.Deliver(Outbound{Topic: "3", QoS: packet.QoS0}))

	require.Len(t, s.offlineQueue, 2)
	assert.Equal(t, "2", s.offlineQueue[0].Topic)
	assert.Equal(t, "3", s.offlineQueue[1].Topic)
}

func TestSessionQoS1Handshake(t *testing.T) {
	s := newSession("c1", true, 20, 100)
	sender := &fakeSender{}
	require.NoError(t, s.attach(sender))
	require.NoError(t, s.Flush())

	require.NoError(t, s.Deliver(Outbound{Topic: "a", QoS: packet.QoS1}))
	require.Len(t, s.pendingPublish, 1)

	var id packet.ID
	for pid := range s.pendingPublish {
		id = pid
	}
	s.HandlePubAck(id)
	assert.Len(t, s.pendingPublish, 0)
}

func TestSessionQoS2OutboundHandshake(t *testing.T) {
	s := newSession("c1", true, 20, 100)
	sender := &fakeSender{}
	require.NoError(t, s.attach(sender))
	require.NoError(t, s.Flush())

	require.NoError(t, s.Deliver(Outbound{Topic: "a", QoS: packet.QoS2}))
	var id packet.ID
	for pid := range s.pendingPublish {
		id = pid
	}

	pubrel, ok := s.HandlePubRec(id)
	require.True(t, ok)
	assert.NotEmpty(t, pubrel)
	assert.Len(t, s.pendingPublish, 0)
	assert.Len(t, s.pendingPubcomp, 1)

	s.HandlePubComp(id)
	assert.Len(t, s.pendingPubcomp, 0)
}

func TestSessionQoS2InboundDedup(t *testing.T) {
	s := newSession("c1", true, 20, 100)
	id := packet.ID(42)

	dup := s.ReceivePublishQoS2(id)
	assert.False(t, dup)

	dup = s.ReceivePublishQoS2(id)
	assert.True(t, dup, "a retransmitted PUBLISH before PUBREL must be recognized as a duplicate")

	s.CompletePubRel(id)
	dup = s.ReceivePublishQoS2(id)
	assert.False(t, dup, "after PUBREL completes, the packet ID is free to be reused")
}

func TestSessionInflightCapDefersToQueue(t *testing.T) {
	s := newSession("c1", true, 1, 100)
	sender := &fakeSender{}
	require.NoError(t, s.attach(sender))
	require.NoError(t, s.Flush())

	require.NoError(t, s.Deliver(Outbound{Topic: "a", QoS: packet.QoS1}))
	require.NoError(t, s.Deliver(Outbound{Topic: "b", QoS: packet.QoS1}))

	assert.Len(t, s.pendingPublish, 1)
	assert.Len(t, s.offlineQueue, 1)
}

func TestSessionReconnectResendsInflightWithDup(t *testing.T) {
	s := newSession("c1", false, 20, 100)
	sender := &fakeSender{}
	require.NoError(t, s.attach(sender))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Deliver(Outbound{Topic: "a", QoS: packet.QoS1}))

	s.detach()
	sender2 := &fakeSender{}
	require.NoError(t, s.attach(sender2))
	require.NoError(t, s.Flush())

	require.Equal(t, 1, sender2.count())
	d := packet.NewDispatcher()
	var pkt packet.Packet
	for _, b := range sender2.sent[0] {
		tb, _ := d.Feed(b)
		if tb == packet.Complete {
			pkt = d.Packet()
		}
	}
	pub, ok := pkt.Payload.(packet.PublishPacket)
	require.True(t, ok)
	assert.True(t, pub.DUP)
}
