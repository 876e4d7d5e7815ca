package packet

// SubscribeReturnCode is a single SUBACK grant/failure byte.
type SubscribeReturnCode byte

const (
	SubAckQoS0   SubscribeReturnCode = 0x00
	SubAckQoS1   SubscribeReturnCode = 0x01
	SubAckQoS2   SubscribeReturnCode = 0x02
	SubAckFailure SubscribeReturnCode = 0x80
)

func (c SubscribeReturnCode) valid() bool {
	return c == SubAckQoS0 || c == SubAckQoS1 || c == SubAckQoS2 || c == SubAckFailure
}

// SubAckPacket is the parsed SUBACK variable header + payload.
type SubAckPacket struct {
	PacketID    ID
	ReturnCodes []SubscribeReturnCode
}

func (SubAckPacket) packetType() Type { return SUBACK }

type subackParser struct {
	remain uint32
	id     idDecoder
	idDone bool
	pkt    SubAckPacket
}

func (p *subackParser) Reset(remainingLength uint32, _ byte) {
	p.remain = remainingLength
	p.id.Reset()
	p.idDone = false
	p.pkt = SubAckPacket{}
}

func (p *subackParser) Feed(b byte) (Tribool, *ParseError) {
	if p.remain == 0 {
		return Fatal, errBodyLengthMismatch
	}
	p.remain--

	if !p.idDone {
		tb, err := p.id.Feed(b)
		if err != nil {
			return Fatal, err
		}
		if tb == Complete {
			p.pkt.PacketID = p.id.Value()
			p.idDone = true
			if p.remain == 0 {
				// SUBACK with zero return codes is a framing error: a
				// SUBSCRIBE always carries at least one filter.
				return Fatal, errBodyLengthMismatch
			}
		}
		return Indeterminate, nil
	}

	code := SubscribeReturnCode(b)
	if !code.valid() {
		return Fatal, errInvalidSubscribeReturnCode
	}
	p.pkt.ReturnCodes = append(p.pkt.ReturnCodes, code)
	if p.remain == 0 {
		return Complete, nil
	}
	return Indeterminate, nil
}

func (p *subackParser) Packet(FixedHeader) Payload { return p.pkt }

// EncodeSubAck serializes a SUBACK packet.
func EncodeSubAck(packetID ID, codes []SubscribeReturnCode) ([]byte, error) {
	body := make([]byte, 0, 2+len(codes))
	body = append(body, EncodeID(packetID)...)
	for _, c := range codes {
		body = append(body, byte(c))
	}
	header, err := EncodeFixedHeader(SUBACK, uint32(len(body)))
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}
