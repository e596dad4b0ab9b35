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

import (
	"errors"
	"io"
	"net"

	"github.com/trzsz/tsshmux/internal/wire"
)

// readTask is the single inbound loop: it parses one packet at a time off
// the transport and routes it to the channel it addresses by recipient
// channel id, which is always one of our own registry slots (the peer only
// ever echoes back channel ids we handed it in CHANNEL_OPEN). It returns
// nil on a clean EOF and a non-nil error on any protocol violation or I/O
// failure, either of which is fatal to the whole client.
func (c *ProxyClient) readTask() error {
	for {
		frame, err := wire.ReadFrame(c.transport)
		if err != nil {
			c.shutdownAllChannels()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return ioErr(err)
		}
		pkt, err := parsePacket(frame)
		if err != nil {
			c.shutdownAllChannels()
			return err
		}
		if err := c.routePacket(pkt); err != nil {
			c.shutdownAllChannels()
			return err
		}
	}
}

func (c *ProxyClient) routePacket(pkt parsedPacket) error {
	switch pkt.msgType {
	case MsgChannelOpenConfirm:
		return c.handleOpenConfirm(pkt.body)
	case MsgChannelOpenFailure:
		return c.handleOpenFailure(pkt.body)
	case MsgChannelWindowAdjust:
		return c.handleWindowAdjust(pkt.body)
	case MsgChannelData:
		return c.handleChannelData(pkt.body, false)
	case MsgChannelExtendedData:
		return c.handleChannelData(pkt.body, true)
	case MsgChannelEOF:
		return c.handleChannelEOF(pkt.body)
	case MsgChannelClose:
		return c.handleChannelClose(pkt.body)
	case MsgChannelRequest:
		return c.handleChannelRequest(pkt.body)
	case MsgChannelSuccess:
		return c.handleRequestReply(pkt.body, true)
	case MsgChannelFailure:
		return c.handleRequestReply(pkt.body, false)
	case MsgRequestSuccess, MsgRequestFailure:
		// No global requests are ever sent by this client; a peer that
		// sends one unsolicited is ignored rather than treated as fatal.
		return nil
	default:
		return nil
	}
}

// lookupSlot resolves the channel id leading body to its ChannelData.
// missing is the error kind reported when no channel holds that slot:
// ErrInvalidRecipientChannel for responses to our own CHANNEL_OPEN,
// ErrInvalidSenderChannel for all other channel-addressed traffic the
// read task routes.
func (c *ProxyClient) lookupSlot(body []byte, missing ErrorKind) (*ChannelData, []byte, error) {
	slot, rest, err := wire.GetUint32(body)
	if err != nil {
		return nil, nil, formatErr(err)
	}
	data := c.registry.get(slot)
	if data == nil {
		return nil, nil, &Error{Kind: missing, ChannelID: slot}
	}
	return data, rest, nil
}

func (c *ProxyClient) handleOpenConfirm(body []byte) error {
	data, rest, err := c.lookupSlot(body, ErrInvalidRecipientChannel)
	if err != nil {
		return err
	}
	peerChannel, rest, err := wire.GetUint32(rest)
	if err != nil {
		return formatErr(err)
	}
	initWindow, rest, err := wire.GetUint32(rest)
	if err != nil {
		return formatErr(err)
	}
	maxPacket, _, err := wire.GetUint32(rest)
	if err != nil {
		return formatErr(err)
	}
	data.peerChannel = peerChannel
	data.maxPacketSize = maxPacket
	if err := data.state.transition(ChannelState{Tag: StateOpenConfirmed, MaxPacketSize: maxPacket}, StateOpenRequested); err != nil {
		return err
	}
	return data.senderWindowSize.add(uint64(initWindow))
}

func (c *ProxyClient) handleOpenFailure(body []byte) error {
	data, rest, err := c.lookupSlot(body, ErrInvalidRecipientChannel)
	if err != nil {
		return err
	}
	code, rest, err := wire.GetUint32(rest)
	if err != nil {
		return formatErr(err)
	}
	reason, rest, err := wire.GetString(rest)
	if err != nil {
		return formatErr(err)
	}
	var language []byte
	if len(rest) > 0 {
		language, _, err = wire.GetString(rest)
		if err != nil {
			return formatErr(err)
		}
	}
	return data.state.transition(ChannelState{Tag: StateOpenFailed, FailCode: code, FailReason: string(reason), FailLanguage: string(language)}, StateOpenRequested)
}

func (c *ProxyClient) handleWindowAdjust(body []byte) error {
	data, rest, err := c.lookupSlot(body, ErrInvalidSenderChannel)
	if err != nil {
		return err
	}
	bytesToAdd, _, err := wire.GetUint32(rest)
	if err != nil {
		return formatErr(err)
	}
	return data.senderWindowSize.add(uint64(bytesToAdd))
}

func (c *ProxyClient) handleChannelData(body []byte, extended bool) error {
	data, rest, err := c.lookupSlot(body, ErrInvalidSenderChannel)
	if err != nil {
		return err
	}
	if extended {
		code, r, err := wire.GetUint32(rest)
		if err != nil {
			return formatErr(err)
		}
		rest = r
		if code != ExtendedDataStderr {
			return nil // ignore extended-data types this protocol doesn't define
		}
	}
	payload, _, err := wire.GetString(rest)
	if err != nil {
		return formatErr(err)
	}
	// The decrement saturates at 0: a peer overrunning the advertised
	// window is sloppy, not fatal, and its bytes are still delivered.
	if uint64(len(payload)) > data.receiverWinSize {
		data.receiverWinSize = 0
	} else {
		data.receiverWinSize -= uint64(len(payload))
	}

	chunk := append([]byte(nil), payload...)
	if extended {
		data.stderr.pushBytes(chunk)
	} else {
		data.rx.pushBytes(chunk)
	}

	if data.receiverWinSize == 0 && data.receiversCount.Load() > 0 {
		data.receiverWinSize = uint64(data.extendWindowSize)
		c.writeQueue.push(encodeWindowAdjust(data.peerChannel, data.extendWindowSize))
	}
	return nil
}

func (c *ProxyClient) handleChannelEOF(body []byte) error {
	data, _, err := c.lookupSlot(body, ErrInvalidSenderChannel)
	if err != nil {
		return err
	}
	data.rx.markEOF()
	data.stderr.markEOF()
	return nil
}

func (c *ProxyClient) handleChannelClose(body []byte) error {
	slot, _, err := wire.GetUint32(body)
	if err != nil {
		return formatErr(err)
	}
	data := c.registry.get(slot)
	if data == nil {
		return &Error{Kind: ErrInvalidSenderChannel, ChannelID: slot}
	}
	data.rx.markEOF()
	data.stderr.markEOF()
	c.registry.remove(slot, data)
	return nil
}

func (c *ProxyClient) handleChannelRequest(body []byte) error {
	data, rest, err := c.lookupSlot(body, ErrInvalidSenderChannel)
	if err != nil {
		return err
	}
	reqType, rest, err := wire.GetString(rest)
	if err != nil {
		return formatErr(err)
	}
	wantReply, rest, err := wire.GetBool(rest)
	if err != nil {
		return formatErr(err)
	}

	switch string(reqType) {
	case "exit-status":
		exitCode, _, err := wire.GetUint32(rest)
		if err != nil {
			return formatErr(err)
		}
		return data.state.transition(ChannelState{Tag: StateProcessExited, ExitCode: exitCode}, StateOpenConfirmed)
	case "exit-signal":
		signal, _, err := wire.GetString(rest)
		if err != nil {
			return formatErr(err)
		}
		return data.state.transition(ChannelState{Tag: StateProcessKilled, ExitSignal: string(signal)}, StateOpenConfirmed)
	default:
		if wantReply {
			c.writeQueue.push(encodeChannelFailure(data.peerChannel))
		}
		return nil
	}
}

func (c *ProxyClient) handleRequestReply(body []byte, success bool) error {
	data, _, err := c.lookupSlot(body, ErrInvalidSenderChannel)
	if err != nil {
		return err
	}
	data.pendingRequests.reportOne(success)
	return nil
}

// shutdownAllChannels wakes every waiter on every live channel once the
// transport has failed or reached EOF, so no ChannelInput/ChannelOutput/
// OpenChannel caller blocks forever on a connection that is never coming
// back.
func (c *ProxyClient) shutdownAllChannels() {
	c.registry.mu.Lock()
	slots := make([]*ChannelData, 0, RegistrySize)
	for _, d := range c.registry.slots {
		if d != nil {
			slots = append(slots, d)
		}
	}
	c.registry.mu.Unlock()

	for _, data := range slots {
		data.rx.markEOF()
		data.stderr.markEOF()
		data.senderWindowSize.shutdown()
		data.pendingRequests.shutdown()
		_ = data.state.transition(ChannelState{Tag: StateOpenFailed, FailCode: OpenConnectFailed, FailReason: "connection closed"}, StateOpenRequested)
		data.state.shutdown()
	}
}

// writeTask is the single outbound loop: it drains whatever the writeQueue
// has accumulated and writes it to the transport using vectored I/O, at
// most MaxWriteVectors buffers per syscall. It exits once the queue is
// marked EOF and fully drained.
func (c *ProxyClient) writeTask() error {
	for {
		frames, isEOF := c.writeQueue.waitForWork()
		if err := writeFramesVectored(c.transport, frames); err != nil {
			return ioErr(err)
		}
		if isEOF {
			return nil
		}
	}
}

// writeFramesVectored length-prefixes each payload in frames and writes
// them to w in batches of at most MaxWriteVectors buffers per syscall. Each
// frame contributes two buffers (length prefix, body), so a batch holds at
// most MaxWriteVectors/2 frames. net.Buffers.WriteTo collapses a batch into
// a single writev when w supports it, falling back to sequential Writes
// otherwise.
func writeFramesVectored(w io.Writer, frames [][]byte) error {
	maxFramesPerBatch := MaxWriteVectors / 2
	if maxFramesPerBatch < 1 {
		maxFramesPerBatch = 1
	}
	for len(frames) > 0 {
		n := len(frames)
		if n > maxFramesPerBatch {
			n = maxFramesPerBatch
		}
		batch := frames[:n]
		frames = frames[n:]

		bufs := make(net.Buffers, 0, 2*len(batch))
		for _, body := range batch {
			bufs = append(bufs, wire.PutUint32(nil, uint32(len(body))), body)
		}
		if _, err := bufs.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}
