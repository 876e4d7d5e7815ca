package packet

// dispatchState is the dispatcher's position in the fixed-header state machine.
type dispatchState int

const (
	stateHeader1 dispatchState = iota
	stateRemainingLength
	stateBody
	stateDone
)

// Dispatcher reads the fixed header of an inbound byte stream and
// routes the remaining bytes to the matching per-type body parser,
// yielding one parsed Packet per call that returns Complete. It is
// tolerant of arbitrary fragmentation: Feed may be called with however
// many bytes a read() happened to return, one at a time, from any
// connection's byte stream.
type Dispatcher struct {
	state  dispatchState
	header FixedHeader
	rl     RemainingLengthDecoder
	body   bodyParser
	result Packet
}

// NewDispatcher returns a Dispatcher ready to parse the first packet
// of a fresh connection.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{}
	d.reset()
	return d
}

func (d *Dispatcher) reset() {
	d.state = stateHeader1
	d.header = FixedHeader{}
	d.rl.Reset()
	d.body = nil
}

// Feed consumes one byte of the inbound stream.
//
//   - Indeterminate: more bytes needed before a packet completes.
//   - Complete: Packet() now returns the fully parsed control packet;
//     the dispatcher has silently reset and is ready for the next one.
//   - Fatal: the stream is malformed; the caller must close the
//     connection without consuming further bytes from this dispatcher.
func (d *Dispatcher) Feed(b byte) (Tribool, *ParseError) {
	switch d.state {
	case stateHeader1:
		h, err := decodeFirstByte(b)
		if err != nil {
			d.state = stateDone
			return Fatal, err
		}
		d.header = h
		d.state = stateRemainingLength
		d.rl.Reset()
		return Indeterminate, nil

	case stateRemainingLength:
		tb, err := d.rl.Feed(b)
		if err != nil {
			d.state = stateDone
			return Fatal, err
		}
		if tb == Indeterminate {
			return Indeterminate, nil
		}

		d.header.RemainingLength = d.rl.Value()
		if d.header.RemainingLength == 0 {
			payload := zeroBodyPayload(d.header.Type)
			if payload == nil {
				d.state = stateDone
				return Fatal, errBodyLengthMismatch
			}
			d.result = Packet{Header: d.header, Payload: payload}
			d.reset()
			return Complete, nil
		}

		d.body = newBodyParser(d.header.Type)
		if d.body == nil {
			d.state = stateDone
			return Fatal, errInvalidPacketType
		}
		d.body.Reset(d.header.RemainingLength, d.header.Flags)
		d.state = stateBody
		return Indeterminate, nil

	case stateBody:
		tb, err := d.body.Feed(b)
		if err != nil {
			d.state = stateDone
			return Fatal, err
		}
		if tb == Indeterminate {
			return Indeterminate, nil
		}
		d.result = Packet{Header: d.header, Payload: d.body.Packet(d.header)}
		d.reset()
		return Complete, nil

	case stateDone:
		// A fatal error already closed this logical packet; any
		// further byte fed without an explicit Reset is a bug in the
		// caller, not a protocol violation — treat it as fatal too.
		return Fatal, errBytesAfterCompletion
	}

	return Fatal, errBodyLengthMismatch
}

// Packet returns the most recently completed packet. Valid only
// immediately after Feed returns Complete.
func (d *Dispatcher) Packet() Packet { return d.result }

// Reset discards any partially parsed packet and returns the
// dispatcher to its initial state, e.g. after a Fatal result if the
// caller chooses to keep decoding on the same connection rather than
// closing it (framing errors normally close the connection outright,
// so this is mainly useful in tests).
func (d *Dispatcher) Reset() { d.reset() }

func zeroBodyPayload(t Type) Payload {
	switch t {
	case PINGREQ:
		return PingReqPacket{}
	case PINGRESP:
		return PingRespPacket{}
	case DISCONNECT:
		return DisconnectPacket{}
	default:
		// Any other type with remaining length 0 (e.g. an empty
		// CONNECT) is a framing error: each of those types carries at
		// least one body field.
		return nil
	}
}
