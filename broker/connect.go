package broker

import (
	"errors"

	"github.com/embermq/broker/network"
	"github.com/embermq/broker/packet"
	"github.com/embermq/broker/session"
)

// refuse writes a CONNACK refusal and reports the sentinel error that
// unwinds the actor's read loop. A refusal never carries session-present
// per MQTT 3.1.1 §3.2.2.2.
func (a *actor) refuse(code packet.ConnectReturnCode) error {
	_, err := a.conn.Write(packet.EncodeConnAck(false, code))
	if err != nil {
		return err
	}
	return errors.New("broker: connect refused")
}

// handleConnect runs the CONNECT/CONNACK handshake and, on success,
// binds the actor to a session and starts its keep-alive monitor. It is
// the only packet handler that runs before a.connected is set.
func (a *actor) handleConnect(cp packet.ConnectPacket) error {
	if !a.b.cfg.AllowAnonymous && cp.Username == "" {
		return a.refuse(packet.ConnectRefusedNotAuthorized)
	}

	clientID := cp.ClientID
	if clientID == "" {
		if !cp.Flags.CleanSession {
			// MQTT 3.1.1 §3.1.3.1: a server that assigns a client
			// identifier must treat the connection as clean_session;
			// zero-length ID with clean_session=0 is a protocol error.
			return a.refuse(packet.ConnectRefusedIdentifier)
		}
		clientID = a.b.idgen()
	}

	sess, sessionPresent, err := a.b.sessions.Acquire(clientID, cp.Flags.CleanSession, a.sender)
	if errors.Is(err, session.ErrSessionInUse) {
		// A second concurrent CONNECT for a client_id already owned by a
		// live connection is rejected outright: the first connection is
		// left intact, and this one gets identifier-rejected and closed.
		return a.refuse(packet.ConnectRefusedIdentifier)
	}
	if err != nil {
		return err
	}

	if cp.Flags.WillFlag {
		sess.SetWill(&session.Will{
			Topic:   cp.WillTopic,
			Payload: cp.WillPayload,
			QoS:     cp.Flags.WillQoS,
			Retain:  cp.Flags.WillRetain,
		})
	} else {
		sess.ClearWill()
	}

	a.connected = true
	a.sess = sess
	a.clientID = clientID

	keepAlive := a.b.keepAliveFor(cp.KeepAlive)
	if keepAlive > 0 {
		a.b.keepAlive.Add(a.conn, keepAlive, func(conn *network.Connection) {
			a.log.Debug("keep-alive timeout, closing connection", "client_id", clientID)
			_ = conn.Close()
		})
	}

	if _, err := a.conn.Write(packet.EncodeConnAck(sessionPresent, packet.ConnectAccepted)); err != nil {
		return err
	}

	// Resumed inflight/offline state must never reach the client ahead
	// of the CONNACK that just announced the connection; flushing here,
	// after the write above, keeps that order.
	return sess.Flush()
}
