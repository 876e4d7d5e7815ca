package broker

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/embermq/broker/network"
	"github.com/embermq/broker/packet"
	"github.com/embermq/broker/session"
)

// actor is the per-connection protocol state machine: it owns the
// dispatcher feeding bytes off the wire and the session bound to this
// connection once CONNECT succeeds. One actor is created per accepted
// connection by Broker.HandleConnection and lives for that connection's
// whole lifetime.
type actor struct {
	b    *Broker
	conn *network.Connection
	log  *slog.Logger

	dispatcher *packet.Dispatcher
	connected  bool

	clientID string
	sess     *session.Session
	sender   connSender
}

// HandleConnection is a network.ConnectionHandler: registered with
// Listener.OnConnection, it runs the MQTT protocol over conn until the
// connection closes or a fatal protocol error occurs.
func (b *Broker) HandleConnection(conn *network.Connection) error {
	a := &actor{
		b:          b,
		conn:       conn,
		log:        b.log.With("remote", conn.RemoteAddr()),
		dispatcher: packet.NewDispatcher(),
		sender:     connSender{conn: conn},
	}
	if a.b.metrics != nil {
		a.b.metrics.ConnectionsActive.Inc()
		defer a.b.metrics.ConnectionsActive.Dec()
	}
	defer a.teardown()
	return a.run()
}

func (a *actor) run() error {
	buf := make([]byte, 4096)
	for {
		n, readErr := a.conn.Read(buf)
		for i := 0; i < n; i++ {
			tb, perr := a.dispatcher.Feed(buf[i])
			switch tb {
			case packet.Fatal:
				if a.b.metrics != nil {
					a.b.metrics.ParseErrorsTotal.Inc()
				}
				if perr != nil {
					a.log.Debug("framing error", "err", perr)
					return perr
				}
				return errors.New("broker: fatal parse state")
			case packet.Complete:
				if err := a.dispatch(a.dispatcher.Packet()); err != nil {
					return err
				}
			}
		}
		if readErr != nil {
			return readErr
		}
	}
}

func (a *actor) dispatch(pkt packet.Packet) error {
	if !a.connected {
		cp, ok := pkt.Payload.(packet.ConnectPacket)
		if !ok {
			return errFirstPacketNotConnect
		}
		return a.handleConnect(cp)
	}

	a.sess.Touch()

	switch p := pkt.Payload.(type) {
	case packet.ConnectPacket:
		return errSecondConnect
	case packet.PublishPacket:
		return a.handlePublish(p)
	case packet.PubAckPacket:
		a.sess.HandlePubAck(p.PacketID)
		return nil
	case packet.PubRecPacket:
		return a.handlePubRec(p)
	case packet.PubRelPacket:
		return a.handlePubRel(p)
	case packet.PubCompPacket:
		a.sess.HandlePubComp(p.PacketID)
		return nil
	case packet.SubscribePacket:
		return a.handleSubscribe(p)
	case packet.UnsubscribePacket:
		return a.handleUnsubscribe(p)
	case packet.PingReqPacket:
		_, err := a.conn.Write(packet.EncodePingResp())
		return err
	case packet.DisconnectPacket:
		return a.handleDisconnect()
	default:
		return fmt.Errorf("broker: unexpected packet payload %T", p)
	}
}

func (a *actor) handlePubRec(p packet.PubRecPacket) error {
	raw, ok := a.sess.HandlePubRec(p.PacketID)
	if !ok {
		return nil
	}
	_, err := a.conn.Write(raw)
	return err
}

func (a *actor) handlePubRel(p packet.PubRelPacket) error {
	a.sess.CompletePubRel(p.PacketID)
	_, err := a.conn.Write(packet.EncodePubComp(p.PacketID))
	return err
}

// handleDisconnect is a graceful DISCONNECT: the will is discarded and
// the connection is torn down without publishing it.
func (a *actor) handleDisconnect() error {
	if a.sess != nil {
		a.sess.ClearWill()
	}
	return errGracefulDisconnect
}

// teardown runs whether the connection ended gracefully, by a protocol
// error, or by the peer just dropping the TCP connection: it stops the
// keep-alive monitor, publishes the recorded will (handleDisconnect
// already cleared it for a graceful DISCONNECT, so this is a no-op in
// that case), and detaches the session from this connection.
func (a *actor) teardown() {
	a.b.keepAlive.Remove(a.conn.ID())
	if a.sess == nil {
		return
	}

	if will := a.sess.Will(); will != nil {
		_ = a.b.publish(will.Topic, will.Payload, will.QoS, will.Retain)
	}

	a.b.sessions.Release(a.clientID, a.sender)
}
