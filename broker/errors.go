package broker

import "errors"

var (
	// errFirstPacketNotConnect is returned when a client's first packet
	// on a fresh connection isn't CONNECT, per MQTT 3.1.1 §3.1: the
	// server must close the connection without any response.
	errFirstPacketNotConnect = errors.New("broker: first packet was not CONNECT")

	// errSecondConnect is returned when a client sends a second CONNECT
	// on an already-established connection, a protocol violation the
	// server must treat as fatal.
	errSecondConnect = errors.New("broker: unexpected second CONNECT")

	// errGracefulDisconnect unwinds the actor's read loop after a
	// client-initiated DISCONNECT. It is not a failure: HandleConnection
	// still returns it so the listener's accounting sees the connection
	// end, and handleDisconnect has already cleared the will before it's
	// raised, so teardown publishes nothing.
	errGracefulDisconnect = errors.New("broker: client disconnected")
)
