package broker

import (
	"time"

	"github.com/embermq/broker/packet"
	"github.com/embermq/broker/session"
	"github.com/embermq/broker/topic"
)

// handleSubscribe grants or refuses each filter in turn, records the
// grant on both the subscription tree and the session, then replays any
// retained message matching a newly-granted filter before the SUBACK is
// written — MQTT 3.1.1 §3.8.4 requires retained delivery to follow
// subscription but says nothing about ordering against the SUBACK
// itself; replaying first means a client that immediately publishes on
// the same topic after SUBACK never beats its own retained replay.
func (a *actor) handleSubscribe(p packet.SubscribePacket) error {
	if a.b.metrics != nil {
		a.b.metrics.SubscribesTotal.Inc()
	}

	codes := make([]packet.SubscribeReturnCode, len(p.Filters))
	granted := make([]packet.Filter, 0, len(p.Filters))

	for i, f := range p.Filters {
		start := time.Now()
		err := a.b.tree.Subscribe(f.TopicFilter, topic.Subscriber{
			SessionKey: a.clientID,
			MaxQoS:     f.QoS,
		})
		if a.b.metrics != nil {
			a.b.metrics.TreeWriteDuration.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			codes[i] = packet.SubAckFailure
			continue
		}
		a.sess.AddSubscription(f.TopicFilter, f.QoS)
		codes[i] = subAckCodeFor(f.QoS)
		granted = append(granted, f)
	}

	for _, f := range granted {
		msgs, err := a.b.retained.Match(f.TopicFilter)
		if err != nil {
			a.log.Warn("retained match failed", "filter", f.TopicFilter, "err", err)
			continue
		}
		for _, m := range msgs {
			qos := m.QoS
			if f.QoS < qos {
				qos = f.QoS
			}
			if err := a.sess.Deliver(session.Outbound{
				Topic:   m.Topic,
				Payload: m.Payload,
				QoS:     qos,
				Retain:  true,
			}); err != nil {
				return err
			}
		}
	}

	raw, err := packet.EncodeSubAck(p.PacketID, codes)
	if err != nil {
		return err
	}
	_, err = a.conn.Write(raw)
	return err
}

func subAckCodeFor(qos packet.QoS) packet.SubscribeReturnCode {
	switch qos {
	case packet.QoS1:
		return packet.SubAckQoS1
	case packet.QoS2:
		return packet.SubAckQoS2
	default:
		return packet.SubAckQoS0
	}
}

func (a *actor) handleUnsubscribe(p packet.UnsubscribePacket) error {
	for _, f := range p.Filters {
		a.b.tree.Unsubscribe(f, a.clientID)
		a.sess.RemoveSubscription(f)
	}
	_, err := a.conn.Write(packet.EncodeUnsubAck(p.PacketID))
	return err
}
