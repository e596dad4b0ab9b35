/*
MIT License

Copyright (c) 2023-2025 The Trzsz SSH Authors.

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package proxyclient

import "github.com/trzsz/tsshmux/internal/wire"

// Every packet is framed the same way as the mux protocol (big-endian u32
// length, then body), with a one-byte padding-length field (always 0,
// since this client neither encrypts nor pads) followed by the one-byte
// packet type.

func packetHeader(msgType byte) []byte {
	return []byte{0, msgType}
}

func encodeChannelOpen(chanType string, senderChannel, initWindow, maxPacket uint32, extra []byte) []byte {
	buf := packetHeader(MsgChannelOpen)
	buf = wire.PutString(buf, []byte(chanType))
	buf = wire.PutUint32(buf, senderChannel)
	buf = wire.PutUint32(buf, initWindow)
	buf = wire.PutUint32(buf, maxPacket)
	buf = append(buf, extra...)
	return buf
}

func encodeChannelClose(recipientChannel uint32) []byte {
	buf := packetHeader(MsgChannelClose)
	return wire.PutUint32(buf, recipientChannel)
}

func encodeChannelEOF(recipientChannel uint32) []byte {
	buf := packetHeader(MsgChannelEOF)
	return wire.PutUint32(buf, recipientChannel)
}

func encodeWindowAdjust(recipientChannel, bytesToAdd uint32) []byte {
	buf := packetHeader(MsgChannelWindowAdjust)
	buf = wire.PutUint32(buf, recipientChannel)
	return wire.PutUint32(buf, bytesToAdd)
}

func encodeChannelDataHeader(recipientChannel, length uint32) []byte {
	buf := packetHeader(MsgChannelData)
	buf = wire.PutUint32(buf, recipientChannel)
	return wire.PutUint32(buf, length)
}

func encodeChannelFailure(recipientChannel uint32) []byte {
	buf := packetHeader(MsgChannelFailure)
	return wire.PutUint32(buf, recipientChannel)
}

func encodeChannelRequest(recipientChannel uint32, requestType string, wantReply bool, extra []byte) []byte {
	buf := packetHeader(MsgChannelRequest)
	buf = wire.PutUint32(buf, recipientChannel)
	buf = wire.PutString(buf, []byte(requestType))
	buf = wire.PutBool(buf, wantReply)
	buf = append(buf, extra...)
	return buf
}

// parsedPacket is a packet with its padding/type header already consumed.
type parsedPacket struct {
	msgType byte
	body    []byte
}

func parsePacket(payload []byte) (parsedPacket, error) {
	if len(payload) < 2 {
		return parsedPacket{}, formatErr(errShortPacket)
	}
	// payload[0] is the padding length, always 0 for this transport.
	return parsedPacket{msgType: payload[1], body: payload[2:]}, nil
}

var errShortPacket = shortPacketError{}

type shortPacketError struct{}

func (shortPacketError) Error() string { return "proxyclient: packet shorter than its header" }
