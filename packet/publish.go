package packet

// PublishPacket is the parsed PUBLISH variable header + payload.
type PublishPacket struct {
	DUP      bool
	QoS      QoS
	Retain   bool
	Topic    string
	PacketID ID
	Payload  []byte
}

func (PublishPacket) packetType() Type { return PUBLISH }

type publishStage int

const (
	pubTopic publishStage = iota
	pubIDHi
	pubIDLo
	pubPayload
	pubDone
)

// publishParser streams a PUBLISH body: topic name, optional packet
// identifier (QoS>0 only), then raw payload bytes until the fixed
// header's remaining length is exhausted.
type publishParser struct {
	stage  publishStage
	remain uint32
	str    stringDecoder
	pkt    PublishPacket
	idHi   byte
}

func (p *publishParser) Reset(remainingLength uint32, flags byte) {
	p.stage = pubTopic
	p.remain = remainingLength
	p.str.Reset()
	p.pkt = PublishPacket{
		DUP:    flags&0x08 != 0,
		QoS:    QoS((flags & 0x06) >> 1),
		Retain: flags&0x01 != 0,
	}
	p.pkt.Payload = p.pkt.Payload[:0]
}

func (p *publishParser) Feed(b byte) (Tribool, *ParseError) {
	if p.remain == 0 {
		return Fatal, errBodyLengthMismatch
	}
	p.remain--

	switch p.stage {
	case pubTopic:
		tb, err := p.str.Feed(b)
		if err != nil {
			return Fatal, err
		}
		if tb == Complete {
			if err := ValidateTopicName(p.str.String()); err != nil {
				return Fatal, err
			}
			p.pkt.Topic = p.str.String()
			if p.pkt.QoS > QoS0 {
				p.stage = pubIDHi
			} else if p.remain == 0 {
				return Complete, nil
			} else {
				p.stage = pubPayload
				p.pkt.Payload = make([]byte, 0, p.remain)
			}
		}
		return Indeterminate, nil

	case pubIDHi:
		p.idHi = b
		p.stage = pubIDLo
		return Indeterminate, nil

	case pubIDLo:
		p.pkt.PacketID = ID(uint16(p.idHi)<<8 | uint16(b))
		if p.pkt.PacketID == 0 {
			return Fatal, errBodyLengthMismatch
		}
		if p.remain == 0 {
			return Complete, nil
		}
		p.stage = pubPayload
		p.pkt.Payload = make([]byte, 0, p.remain)
		return Indeterminate, nil

	case pubPayload:
		p.pkt.Payload = append(p.pkt.Payload, b)
		if p.remain == 0 {
			return Complete, nil
		}
		return Indeterminate, nil
	}

	return Fatal, errBodyLengthMismatch
}

func (p *publishParser) Packet(FixedHeader) Payload { return p.pkt }
