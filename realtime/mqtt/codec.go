package mqtt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/mochi-mqtt/server/v2/packets"
)

const protocolVersion = 4

func encodePacket(pk packets.Packet) ([]byte, error) {
	pk.ProtocolVersion = protocolVersion
	buf := new(bytes.Buffer)

	var err error
	switch pk.FixedHeader.Type {
	case packets.Connect:
		err = pk.ConnectEncode(buf)
	case packets.Publish:
		err = pk.PublishEncode(buf)
	case packets.Subscribe:
		err = pk.SubscribeEncode(buf)
	case packets.Unsubscribe:
		err = pk.UnsubscribeEncode(buf)
	case packets.Pingreq:
		err = pk.PingreqEncode(buf)
	case packets.Pingresp:
		err = pk.PingrespEncode(buf)
	case packets.Disconnect:
		err = pk.DisconnectEncode(buf)
	default:
		err = fmt.Errorf("realtime/mqtt: cannot encode packet type %d", pk.FixedHeader.Type)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readPacket decodes the next packet from r. Packet types a client never acts
// on are returned with only their fixed header set.
func readPacket(r *bufio.Reader) (packets.Packet, error) {
	first, err := r.ReadByte()
	if err != nil {
		return packets.Packet{}, err
	}

	var fh packets.FixedHeader
	if err := fh.Decode(first); err != nil {
		return packets.Packet{}, err
	}
	if fh.Remaining, _, err = packets.DecodeLength(r); err != nil {
		return packets.Packet{}, err
	}

	body := make([]byte, fh.Remaining)
	if _, err := io.ReadFull(r, body); err != nil {
		return packets.Packet{}, err
	}

	pk := packets.Packet{FixedHeader: fh, ProtocolVersion: protocolVersion}
	switch fh.Type {
	case packets.Connack:
		err = pk.ConnackDecode(body)
	case packets.Publish:
		err = pk.PublishDecode(body)
	case packets.Suback:
		err = pk.SubackDecode(body)
	case packets.Unsuback:
		err = pk.UnsubackDecode(body)
	case packets.Pingreq:
		err = pk.PingreqDecode(body)
	case packets.Pingresp:
		err = pk.PingrespDecode(body)
	}
	return pk, err
}
