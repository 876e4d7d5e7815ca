package packet

// ConnectReturnCode is the second byte of a CONNACK packet.
type ConnectReturnCode byte

const (
	ConnectAccepted               ConnectReturnCode = 0
	ConnectRefusedProtocolVersion ConnectReturnCode = 1
	ConnectRefusedIdentifier      ConnectReturnCode = 2
	ConnectRefusedServerUnavail   ConnectReturnCode = 3
	ConnectRefusedBadUserPass     ConnectReturnCode = 4
	ConnectRefusedNotAuthorized   ConnectReturnCode = 5
)

// ConnAckPacket is the parsed CONNACK variable header.
type ConnAckPacket struct {
	SessionPresent bool
	ReturnCode     ConnectReturnCode
}

func (ConnAckPacket) packetType() Type { return CONNACK }

type connackStage int

const (
	connackFlags connackStage = iota
	connackCode
)

type connackParser struct {
	stage  connackStage
	remain uint32
	pkt    ConnAckPacket
}

func (p *connackParser) Reset(remainingLength uint32, _ byte) {
	p.stage = connackFlags
	p.remain = remainingLength
	p.pkt = ConnAckPacket{}
}

func (p *connackParser) Feed(b byte) (Tribool, *ParseError) {
	if p.remain == 0 {
		return Fatal, errBodyLengthMismatch
	}
	p.remain--

	switch p.stage {
	case connackFlags:
		if b&0xFE != 0 {
			return Fatal, errInvalidConnectFlags
		}
		p.pkt.SessionPresent = b&0x01 != 0
		p.stage = connackCode
		return Indeterminate, nil
	case connackCode:
		if b > 5 {
			return Fatal, errInvalidConnectReturnCode
		}
		p.pkt.ReturnCode = ConnectReturnCode(b)
		if p.remain != 0 {
			return Fatal, errBodyLengthMismatch
		}
		return Complete, nil
	}
	return Fatal, errBodyLengthMismatch
}

func (p *connackParser) Packet(FixedHeader) Payload { return p.pkt }

// EncodeConnAck serializes a CONNACK packet.
func EncodeConnAck(sessionPresent bool, code ConnectReturnCode) []byte {
	var flags byte
	if sessionPresent {
		flags = 0x01
	}
	// The packet is always 4 bytes total: type+flags, remaining
	// length (always 1 byte, value 2), ack flags, return code.
	return []byte{byte(CONNACK) << 4, 0x02, flags, byte(code)}
}
