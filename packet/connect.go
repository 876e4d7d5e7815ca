package packet

// ConnectFlags decodes the CONNECT variable header's flags byte.
type ConnectFlags struct {
	CleanSession bool
	WillFlag     bool
	WillQoS      QoS
	WillRetain   bool
	PasswordFlag bool
	UsernameFlag bool
}

func decodeConnectFlags(b byte) (ConnectFlags, *ParseError) {
	if b&0x01 != 0 {
		// bit 0 is reserved and must be zero.
		return ConnectFlags{}, errInvalidConnectFlags
	}
	f := ConnectFlags{
		CleanSession: b&0x02 != 0,
		WillFlag:     b&0x04 != 0,
		WillQoS:      QoS((b & 0x18) >> 3),
		WillRetain:   b&0x20 != 0,
		PasswordFlag: b&0x40 != 0,
		UsernameFlag: b&0x80 != 0,
	}
	if !f.WillQoS.IsValid() {
		return ConnectFlags{}, errInvalidQoSLevel
	}
	if !f.WillFlag && (f.WillQoS != QoS0 || f.WillRetain) {
		return ConnectFlags{}, errInvalidConnectFlags
	}
	if f.PasswordFlag && !f.UsernameFlag {
		// MQTT 3.1.1 forbids password without username.
		return ConnectFlags{}, errInvalidConnectFlags
	}
	return f, nil
}

// ConnectPacket is the parsed CONNECT variable header + payload.
type ConnectPacket struct {
	ProtocolLevel byte
	Flags         ConnectFlags
	KeepAlive     uint16
	ClientID      string
	WillTopic     string
	WillPayload   []byte
	Username      string
	Password      []byte
}

func (ConnectPacket) packetType() Type { return CONNECT }

type connectStage int

const (
	connProtoName connectStage = iota
	connProtoLevel
	connFlags
	connKeepAliveHi
	connKeepAliveLo
	connClientID
	connWillTopic
	connWillPayload
	connUsername
	connPassword
	connDone
)

// connectParser is the restartable byte-at-a-time state machine for
// the CONNECT packet body.
type connectParser struct {
	stage   connectStage
	remain  uint32
	str     stringDecoder
	bin     binaryDecoder
	pkt     ConnectPacket
	kaHi    byte
}

func (p *connectParser) Reset(remainingLength uint32, _ byte) {
	p.stage = connProtoName
	p.remain = remainingLength
	p.str.Reset()
	p.pkt = ConnectPacket{}
}

func (p *connectParser) Feed(b byte) (Tribool, *ParseError) {
	if p.remain == 0 {
		return Fatal, errBodyLengthMismatch
	}
	p.remain--

	switch p.stage {
	case connProtoName:
		tb, err := p.str.Feed(b)
		if err != nil {
			return Fatal, err
		}
		if tb == Complete {
			if p.str.String() != "MQTT" {
				return Fatal, errInvalidProtocolName
			}
			p.stage = connProtoLevel
		}
		return Indeterminate, nil

	case connProtoLevel:
		if b != 4 {
			return Fatal, errInvalidProtocolLevel
		}
		p.pkt.ProtocolLevel = b
		p.stage = connFlags
		return Indeterminate, nil

	case connFlags:
		flags, err := decodeConnectFlags(b)
		if err != nil {
			return Fatal, err
		}
		p.pkt.Flags = flags
		p.stage = connKeepAliveHi
		return Indeterminate, nil

	case connKeepAliveHi:
		p.kaHi = b
		p.stage = connKeepAliveLo
		return Indeterminate, nil

	case connKeepAliveLo:
		p.pkt.KeepAlive = uint16(p.kaHi)<<8 | uint16(b)
		p.stage = connClientID
		p.str.Reset()
		return Indeterminate, nil

	case connClientID:
		tb, err := p.str.Feed(b)
		if err != nil {
			return Fatal, err
		}
		if tb == Complete {
			p.pkt.ClientID = p.str.String()
			switch {
			case p.pkt.Flags.WillFlag:
				p.stage = connWillTopic
				p.str.Reset()
			case p.pkt.Flags.UsernameFlag:
				p.stage = connUsername
				p.str.Reset()
			case p.pkt.Flags.PasswordFlag:
				p.stage = connPassword
				p.bin.Reset()
			default:
				p.stage = connDone
				return p.finishIfDrained()
			}
		}
		return Indeterminate, nil

	case connWillTopic:
		tb, err := p.str.Feed(b)
		if err != nil {
			return Fatal, err
		}
		if tb == Complete {
			if err := ValidateTopicName(p.str.String()); err != nil {
				return Fatal, err
			}
			p.pkt.WillTopic = p.str.String()
			p.stage = connWillPayload
			p.bin.Reset()
		}
		return Indeterminate, nil

	case connWillPayload:
		tb, err := p.bin.Feed(b)
		if err != nil {
			return Fatal, err
		}
		if tb == Complete {
			p.pkt.WillPayload = p.bin.Bytes()
			switch {
			case p.pkt.Flags.UsernameFlag:
				p.stage = connUsername
				p.str.Reset()
			case p.pkt.Flags.PasswordFlag:
				p.stage = connPassword
				p.bin.Reset()
			default:
				p.stage = connDone
				return p.finishIfDrained()
			}
		}
		return Indeterminate, nil

	case connUsername:
		tb, err := p.str.Feed(b)
		if err != nil {
			return Fatal, err
		}
		if tb == Complete {
			p.pkt.Username = p.str.String()
			if p.pkt.Flags.PasswordFlag {
				p.stage = connPassword
				p.bin.Reset()
			} else {
				p.stage = connDone
				return p.finishIfDrained()
			}
		}
		return Indeterminate, nil

	case connPassword:
		tb, err := p.bin.Feed(b)
		if err != nil {
			return Fatal, err
		}
		if tb == Complete {
			p.pkt.Password = p.bin.Bytes()
			p.stage = connDone
			return p.finishIfDrained()
		}
		return Indeterminate, nil
	}

	return Fatal, errBodyLengthMismatch
}

// finishIfDrained returns Complete only once remaining has reached
// zero, otherwise the body declared a remaining-length longer than its
// fields account for, which is a framing error.
func (p *connectParser) finishIfDrained() (Tribool, *ParseError) {
	if p.remain != 0 {
		return Fatal, errBodyLengthMismatch
	}
	return Complete, nil
}

func (p *connectParser) Packet(FixedHeader) Payload { return p.pkt }
