package broker

import (
	"fmt"
	"strconv"

	"github.com/embermq/broker/packet"
	"github.com/embermq/broker/retained"
	"github.com/embermq/broker/session"
)

// publish routes one message to every matching subscriber and updates
// retained state, per MQTT 3.1.1 §3.3.1.3: a zero-length retained
// payload clears whatever was retained for the topic; a non-empty one
// replaces it. Messages relayed to subscribers always carry RETAIN=0
// regardless of how the publisher set it — only the explicit
// subscribe-time replay in subscribe.go sets RETAIN=1.
func (b *Broker) publish(topicName string, payload []byte, qos packet.QoS, retain bool) error {
	if retain {
		if len(payload) == 0 {
			if err := b.retained.Delete(topicName); err != nil {
				return err
			}
		} else if err := b.retained.Set(topicName, retained.Message{
			Topic:   topicName,
			Payload: payload,
			QoS:     qos,
		}); err != nil {
			return err
		}
	}

	for _, m := range b.tree.Match(topicName, qos) {
		sess, ok := b.sessions.Get(m.Subscriber.SessionKey)
		if !ok {
			continue
		}
		if err := sess.Deliver(session.Outbound{
			Topic:   topicName,
			Payload: payload,
			QoS:     m.QoS,
			Retain:  false,
		}); err != nil {
			b.log.Warn("deliver failed", "client_id", m.Subscriber.SessionKey, "topic", topicName, "err", err)
		}
	}
	return nil
}

// handlePublish dispatches an inbound PUBLISH by its QoS: QoS0 fans out
// with no acknowledgment, QoS1 acks with PUBACK once fanned out, and
// QoS2 runs the publisher-side dedup barrier so a retransmitted PUBLISH
// is PUBREC'd again without a second fan-out.
func (a *actor) handlePublish(p packet.PublishPacket) error {
	if a.b.metrics != nil {
		a.b.metrics.PublishesTotal.WithLabelValues(strconv.Itoa(int(p.QoS))).Inc()
	}

	switch p.QoS {
	case packet.QoS0:
		return a.b.publish(p.Topic, p.Payload, p.QoS, p.Retain)

	case packet.QoS1:
		if err := a.b.publish(p.Topic, p.Payload, p.QoS, p.Retain); err != nil {
			return err
		}
		_, err := a.conn.Write(packet.EncodePubAck(p.PacketID))
		return err

	case packet.QoS2:
		if !a.sess.ReceivePublishQoS2(p.PacketID) {
			if err := a.b.publish(p.Topic, p.Payload, p.QoS, p.Retain); err != nil {
				return err
			}
		}
		_, err := a.conn.Write(packet.EncodePubRec(p.PacketID))
		return err

	default:
		return fmt.Errorf("broker: invalid publish QoS %d", p.QoS)
	}
}
