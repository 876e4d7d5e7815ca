package packet

// PubAckPacket, PubRecPacket, PubRelPacket, PubCompPacket, UnsubAckPacket
// share the same wire shape: a two-byte packet identifier and nothing
// else (MQTT 3.1.1 carries no reason code on these, unlike MQTT 5).
type (
	PubAckPacket   struct{ PacketID ID }
	PubRecPacket   struct{ PacketID ID }
	PubRelPacket   struct{ PacketID ID }
	PubCompPacket  struct{ PacketID ID }
	UnsubAckPacket struct{ PacketID ID }
)

func (PubAckPacket) packetType() Type   { return PUBACK }
func (PubRecPacket) packetType() Type   { return PUBREC }
func (PubRelPacket) packetType() Type   { return PUBREL }
func (PubCompPacket) packetType() Type  { return PUBCOMP }
func (UnsubAckPacket) packetType() Type { return UNSUBACK }

type idOnlyParser struct {
	typ    Type
	remain uint32
	id     idDecoder
}

func (p *idOnlyParser) Reset(remainingLength uint32, _ byte) {
	p.remain = remainingLength
	p.id.Reset()
}

func (p *idOnlyParser) Feed(b byte) (Tribool, *ParseError) {
	if p.remain == 0 {
		return Fatal, errBodyLengthMismatch
	}
	p.remain--
	tb, err := p.id.Feed(b)
	if err != nil {
		return Fatal, err
	}
	if tb != Complete {
		return Indeterminate, nil
	}
	if p.remain != 0 {
		return Fatal, errBodyLengthMismatch
	}
	return Complete, nil
}

func (p *idOnlyParser) Packet(h FixedHeader) Payload {
	switch p.typ {
	case PUBACK:
		return PubAckPacket{PacketID: p.id.Value()}
	case PUBREC:
		return PubRecPacket{PacketID: p.id.Value()}
	case PUBREL:
		return PubRelPacket{PacketID: p.id.Value()}
	case PUBCOMP:
		return PubCompPacket{PacketID: p.id.Value()}
	case UNSUBACK:
		return UnsubAckPacket{PacketID: p.id.Value()}
	}
	return nil
}
