package packet

// ID is an MQTT packet identifier: non-zero for QoS>0 PUBLISH and for
// every SUBSCRIBE/UNSUBSCRIBE/PUBACK/PUBREC/PUBREL/PUBCOMP/SUBACK/
// UNSUBACK packet.
type ID uint16

// idDecoder decodes a 16-bit big-endian packet identifier one byte at
// a time.
type idDecoder struct {
	hi   byte
	got  bool
	done bool
	val  ID
}

func (d *idDecoder) Reset() {
	d.hi = 0
	d.got = false
	d.done = false
	d.val = 0
}

func (d *idDecoder) Feed(b byte) (Tribool, *ParseError) {
	if d.done {
		return Fatal, errBytesAfterCompletion
	}
	if !d.got {
		d.hi = b
		d.got = true
		return Indeterminate, nil
	}
	d.val = ID(uint16(d.hi)<<8 | uint16(b))
	d.done = true
	return Complete, nil
}

func (d *idDecoder) Value() ID { return d.val }

// EncodeID encodes a packet identifier as big-endian bytes.
func EncodeID(id ID) []byte {
	return []byte{byte(id >> 8), byte(id)}
}
