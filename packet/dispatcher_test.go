package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(t *testing.T, d *Dispatcher, data []byte) (Packet, *ParseError) {
	t.Helper()
	var last Tribool
	var err *ParseError
	for i, b := range data {
		last, err = d.Feed(b)
		if last == Complete || last == Fatal {
			require.Equal(t, len(data)-1, i, "packet completed before all bytes were consumed")
			if last == Complete {
				return d.Packet(), nil
			}
			return Packet{}, err
		}
	}
	t.Fatalf("packet never completed, final state %v", last)
	return Packet{}, nil
}

func TestMinimalConnectConnack(t *testing.T) {
	// A minimal clean-session CONNECT with no client ID, answered by an
	// accepting CONNACK.
	raw := []byte{
		0x10, 0x0C, 0x00, 0x04, 'M', 'Q', 'T', 'T', 0x04, 0x02, 0x00, 0x3C, 0x00, 0x00,
	}
	d := NewDispatcher()
	pkt, perr := feedAll(t, d, raw)
	require.Nil(t, perr)
	require.Equal(t, CONNECT, pkt.Header.Type)

	cp := pkt.Payload.(ConnectPacket)
	assert.Equal(t, byte(4), cp.ProtocolLevel)
	assert.True(t, cp.Flags.CleanSession)
	assert.Equal(t, uint16(60), cp.KeepAlive)
	assert.Equal(t, "", cp.ClientID)

	connack := EncodeConnAck(false, ConnectAccepted)
	assert.Equal(t, []byte{0x20, 0x02, 0x00, 0x00}, connack)
}

func TestMalformedRemainingLength(t *testing.T) {
	// A 5th remaining-length continuation byte is fatal.
	d := NewDispatcher()
	var tb Tribool
	var perr *ParseError
	tb, perr = d.Feed(0x10)
	require.Equal(t, Indeterminate, tb)
	require.Nil(t, perr)

	for i := 0; i < 5; i++ {
		tb, perr = d.Feed(0xFF)
		if tb == Fatal {
			break
		}
	}
	assert.Equal(t, Fatal, tb)
	assert.NotNil(t, perr)
	assert.Equal(t, ErrCodeMalformedRemainingLength, perr.Code)
}

func TestSubscribeOneFilter(t *testing.T) {
	// A SUBSCRIBE with a single wildcard filter, answered by a SUBACK
	// granting QoS 0.
	raw := []byte{
		0x82, 0x0C,
		0x00, 0x0A,
		0x00, 0x07, 's', 'p', 'o', 'r', 't', '/', '#',
		0x00,
	}
	d := NewDispatcher()
	pkt, perr := feedAll(t, d, raw)
	require.Nil(t, perr)
	sp := pkt.Payload.(SubscribePacket)
	require.Len(t, sp.Filters, 1)
	assert.Equal(t, "sport/#", sp.Filters[0].TopicFilter)
	assert.Equal(t, QoS0, sp.Filters[0].QoS)

	ack, err := EncodeSubAck(10, []SubscribeReturnCode{SubAckQoS0})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x03, 0x00, 0x0A, 0x00}, ack)
}

func TestFragmentationIndependence(t *testing.T) {
	raw, err := EncodePublish(PublishPacket{
		QoS:      QoS1,
		Topic:    "a/b",
		PacketID: 7,
		Payload:  []byte("hello world"),
	})
	require.NoError(t, err)

	whole := NewDispatcher()
	want, werr := feedAll(t, whole, raw)
	require.Nil(t, werr)

	for chunkSize := 1; chunkSize <= len(raw); chunkSize++ {
		d := NewDispatcher()
		var got Packet
		var i int
		for i < len(raw) {
			end := i + chunkSize
			if end > len(raw) {
				end = len(raw)
			}
			for _, b := range raw[i:end] {
				tb, perr := d.Feed(b)
				require.Nil(t, perr)
				if tb == Complete {
					got = d.Packet()
				}
			}
			i = end
		}
		assert.Equal(t, want, got, "chunk size %d produced a different packet", chunkSize)
	}
}

func TestRemainingLengthRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, MaxRemainingLength}
	for _, v := range values {
		enc, err := EncodeRemainingLength(v)
		require.NoError(t, err)
		require.LessOrEqual(t, len(enc), 4)

		var dec RemainingLengthDecoder
		var tb Tribool
		for _, b := range enc {
			tb, _ = dec.Feed(b)
		}
		assert.Equal(t, Complete, tb)
		assert.Equal(t, v, dec.Value())
	}

	_, err := EncodeRemainingLength(MaxRemainingLength + 1)
	assert.Error(t, err)

	var dec RemainingLengthDecoder
	var tb Tribool
	var perr *ParseError
	for i := 0; i < 5; i++ {
		tb, perr = dec.Feed(0xFF)
	}
	assert.Equal(t, Fatal, tb)
	assert.NotNil(t, perr)
}

func TestSubackReturnCodeValidation(t *testing.T) {
	raw := []byte{0x90, 0x03, 0x00, 0x0A, 0x03} // 0x03 is not a valid return code
	d := NewDispatcher()
	_, perr := feedAll(t, d, raw)
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeInvalidSubscribeReturnCode, perr.Code)
}

func TestPingReqPingResp(t *testing.T) {
	d := NewDispatcher()
	pkt, perr := feedAll(t, d, EncodePingReq())
	require.Nil(t, perr)
	_, ok := pkt.Payload.(PingReqPacket)
	assert.True(t, ok)

	assert.Equal(t, []byte{0xD0, 0x00}, EncodePingResp())
}

func TestReservedFlagViolation(t *testing.T) {
	d := NewDispatcher()
	// PUBACK (type 4) must have flags nibble 0; 0x41 sets bit 0.
	_, perr := d.Feed(0x41)
	require.NotNil(t, perr)
	assert.Equal(t, ErrCodeReservedFlagViolation, perr.Code)
}

func TestInvalidTopicFilterWildcardPlacement(t *testing.T) {
	assert.NotNil(t, ValidateTopicFilter("sport/#/player"))
	assert.NotNil(t, ValidateTopicFilter("sport/+more"))
	assert.NotNil(t, ValidateTopicFilter(""))
	assert.Nil(t, ValidateTopicFilter("sport/+/player1"))
	assert.Nil(t, ValidateTopicFilter("sport/#"))
	assert.Nil(t, ValidateTopicFilter("#"))
}

func TestTopicNameRejectsWildcards(t *testing.T) {
	assert.NotNil(t, ValidateTopicName("sport/+"))
	assert.NotNil(t, ValidateTopicName("sport/#"))
	assert.NotNil(t, ValidateTopicName(""))
	assert.Nil(t, ValidateTopicName("sport/tennis/player1"))
}
