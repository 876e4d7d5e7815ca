package packet

// Filter pairs a topic filter with its requested maximum QoS, as sent
// in a SUBSCRIBE packet.
type Filter struct {
	TopicFilter string
	QoS         QoS
}

// SubscribePacket is the parsed SUBSCRIBE variable header + payload.
type SubscribePacket struct {
	PacketID ID
	Filters  []Filter
}

func (SubscribePacket) packetType() Type { return SUBSCRIBE }

type subscribeStage int

const (
	subIDHi subscribeStage = iota
	subIDLo
	subFilter
	subQoS
)

type subscribeParser struct {
	stage  subscribeStage
	remain uint32
	str    stringDecoder
	idHi   byte
	pkt    SubscribePacket
}

func (p *subscribeParser) Reset(remainingLength uint32, _ byte) {
	p.stage = subIDHi
	p.remain = remainingLength
	p.str.Reset()
	p.pkt = SubscribePacket{}
}

func (p *subscribeParser) Feed(b byte) (Tribool, *ParseError) {
	if p.remain == 0 {
		return Fatal, errBodyLengthMismatch
	}
	p.remain--

	switch p.stage {
	case subIDHi:
		p.idHi = b
		p.stage = subIDLo
		return Indeterminate, nil

	case subIDLo:
		p.pkt.PacketID = ID(uint16(p.idHi)<<8 | uint16(b))
		if p.pkt.PacketID == 0 {
			return Fatal, errBodyLengthMismatch
		}
		p.stage = subFilter
		p.str.Reset()
		return Indeterminate, nil

	case subFilter:
		tb, err := p.str.Feed(b)
		if err != nil {
			return Fatal, err
		}
		if tb == Complete {
			if perr := ValidateTopicFilter(p.str.String()); perr != nil {
				return Fatal, perr
			}
			p.pkt.Filters = append(p.pkt.Filters, Filter{TopicFilter: p.str.String()})
			p.stage = subQoS
		}
		return Indeterminate, nil

	case subQoS:
		if b&0xFC != 0 {
			return Fatal, errInvalidQoSLevel
		}
		q := QoS(b)
		if !q.IsValid() {
			return Fatal, errInvalidQoSLevel
		}
		p.pkt.Filters[len(p.pkt.Filters)-1].QoS = q

		if p.remain == 0 {
			return Complete, nil
		}
		p.stage = subFilter
		p.str.Reset()
		return Indeterminate, nil
	}

	return Fatal, errBodyLengthMismatch
}

func (p *subscribeParser) Packet(FixedHeader) Payload { return p.pkt }

// UnsubscribePacket is the parsed UNSUBSCRIBE variable header + payload.
type UnsubscribePacket struct {
	PacketID ID
	Filters  []string
}

func (UnsubscribePacket) packetType() Type { return UNSUBSCRIBE }

type unsubscribeStage int

const (
	unsubIDHi unsubscribeStage = iota
	unsubIDLo
	unsubFilter
)

type unsubscribeParser struct {
	stage  unsubscribeStage
	remain uint32
	str    stringDecoder
	idHi   byte
	pkt    UnsubscribePacket
}

func (p *unsubscribeParser) Reset(remainingLength uint32, _ byte) {
	p.stage = unsubIDHi
	p.remain = remainingLength
	p.str.Reset()
	p.pkt = UnsubscribePacket{}
}

func (p *unsubscribeParser) Feed(b byte) (Tribool, *ParseError) {
	if p.remain == 0 {
		return Fatal, errBodyLengthMismatch
	}
	p.remain--

	switch p.stage {
	case unsubIDHi:
		p.idHi = b
		p.stage = unsubIDLo
		return Indeterminate, nil

	case unsubIDLo:
		p.pkt.PacketID = ID(uint16(p.idHi)<<8 | uint16(b))
		if p.pkt.PacketID == 0 {
			return Fatal, errBodyLengthMismatch
		}
		p.stage = unsubFilter
		p.str.Reset()
		return Indeterminate, nil

	case unsubFilter:
		tb, err := p.str.Feed(b)
		if err != nil {
			return Fatal, err
		}
		if tb == Complete {
			if perr := ValidateTopicFilter(p.str.String()); perr != nil {
				return Fatal, perr
			}
			p.pkt.Filters = append(p.pkt.Filters, p.str.String())
			if p.remain == 0 {
				return Complete, nil
			}
			p.str.Reset()
		}
		return Indeterminate, nil
	}

	return Fatal, errBodyLengthMismatch
}

func (p *unsubscribeParser) Packet(FixedHeader) Payload { return p.pkt }
