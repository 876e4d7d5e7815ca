package packet

// PingReqPacket, PingRespPacket and DisconnectPacket carry no payload;
// their fixed header (type, flags, remaining length 0) is the entire
// packet, so the dispatcher never hands them to a body parser — it
// short-circuits as soon as remaining length decodes to zero.
type (
	PingReqPacket    struct{}
	PingRespPacket   struct{}
	DisconnectPacket struct{}
)

func (PingReqPacket) packetType() Type    { return PINGREQ }
func (PingRespPacket) packetType() Type   { return PINGRESP }
func (DisconnectPacket) packetType() Type { return DISCONNECT }

// EncodePingReq, EncodePingResp and EncodeDisconnect render the
// fixed-only wire form of these packets.
func EncodePingReq() []byte    { return []byte{byte(PINGREQ) << 4, 0x00} }
func EncodePingResp() []byte   { return []byte{byte(PINGRESP) << 4, 0x00} }
func EncodeDisconnect() []byte { return []byte{byte(DISCONNECT) << 4, 0x00} }

// EncodePubAck, EncodePubRec, EncodePubRel and EncodePubComp render the
// shared id-only wire shape with the correct fixed flags for each type.
func EncodePubAck(id ID) []byte  { return encodeIDOnly(PUBACK, id) }
func EncodePubRec(id ID) []byte  { return encodeIDOnly(PUBREC, id) }
func EncodePubRel(id ID) []byte  { return encodeIDOnly(PUBREL, id) }
func EncodePubComp(id ID) []byte { return encodeIDOnly(PUBCOMP, id) }
func EncodeUnsubAck(id ID) []byte {
	return encodeIDOnly(UNSUBACK, id)
}

func encodeIDOnly(t Type, id ID) []byte {
	flags := fixedFlags[t]
	idb := EncodeID(id)
	return []byte{byte(t)<<4 | flags, 0x02, idb[0], idb[1]}
}

// EncodeSubscribe renders a SUBSCRIBE packet (used by tests and by any
// bridging/bench tooling; the broker itself only ever decodes these).
func EncodeSubscribe(id ID, filters []Filter) ([]byte, error) {
	body := make([]byte, 0, 2+8*len(filters))
	body = append(body, EncodeID(id)...)
	for _, f := range filters {
		enc, err := EncodeString(f.TopicFilter)
		if err != nil {
			return nil, err
		}
		body = append(body, enc...)
		body = append(body, byte(f.QoS))
	}
	header, err := EncodeFixedHeader(SUBSCRIBE, uint32(len(body)))
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// EncodeUnsubscribe renders an UNSUBSCRIBE packet.
func EncodeUnsubscribe(id ID, filters []string) ([]byte, error) {
	body := make([]byte, 0, 2+8*len(filters))
	body = append(body, EncodeID(id)...)
	for _, f := range filters {
		enc, err := EncodeString(f)
		if err != nil {
			return nil, err
		}
		body = append(body, enc...)
	}
	header, err := EncodeFixedHeader(UNSUBSCRIBE, uint32(len(body)))
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// EncodeConnect renders a CONNECT packet.
func EncodeConnect(p ConnectPacket) ([]byte, error) {
	body := make([]byte, 0, 64)

	protoName, err := EncodeString("MQTT")
	if err != nil {
		return nil, err
	}
	body = append(body, protoName...)
	body = append(body, 4) // protocol level

	var flags byte
	if p.Flags.CleanSession {
		flags |= 0x02
	}
	if p.Flags.WillFlag {
		flags |= 0x04
		flags |= byte(p.Flags.WillQoS) << 3
		if p.Flags.WillRetain {
			flags |= 0x20
		}
	}
	if p.Flags.UsernameFlag {
		flags |= 0x80
	}
	if p.Flags.PasswordFlag {
		flags |= 0x40
	}
	body = append(body, flags)
	body = append(body, byte(p.KeepAlive>>8), byte(p.KeepAlive))

	idb, err := EncodeString(p.ClientID)
	if err != nil {
		return nil, err
	}
	body = append(body, idb...)

	if p.Flags.WillFlag {
		wt, err := EncodeString(p.WillTopic)
		if err != nil {
			return nil, err
		}
		body = append(body, wt...)
		wp, err := EncodeBinary(p.WillPayload)
		if err != nil {
			return nil, err
		}
		body = append(body, wp...)
	}
	if p.Flags.UsernameFlag {
		ub, err := EncodeString(p.Username)
		if err != nil {
			return nil, err
		}
		body = append(body, ub...)
	}
	if p.Flags.PasswordFlag {
		pb, err := EncodeBinary(p.Password)
		if err != nil {
			return nil, err
		}
		body = append(body, pb...)
	}

	header, err := EncodeFixedHeader(CONNECT, uint32(len(body)))
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// EncodePublish renders a PUBLISH packet.
func EncodePublish(p PublishPacket) ([]byte, error) {
	body := make([]byte, 0, len(p.Topic)+2+len(p.Payload)+2)
	topic, err := EncodeString(p.Topic)
	if err != nil {
		return nil, err
	}
	body = append(body, topic...)
	if p.QoS > QoS0 {
		body = append(body, EncodeID(p.PacketID)...)
	}
	body = append(body, p.Payload...)

	rl, err := EncodeRemainingLength(uint32(len(body)))
	if err != nil {
		return nil, err
	}
	var flags byte
	if p.DUP {
		flags |= 0x08
	}
	flags |= byte(p.QoS) << 1
	if p.Retain {
		flags |= 0x01
	}
	out := make([]byte, 0, 1+len(rl)+len(body))
	out = append(out, byte(PUBLISH)<<4|flags)
	out = append(out, rl...)
	out = append(out, body...)
	return out, nil
}
