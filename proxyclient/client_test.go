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
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trzsz/tsshmux/internal/wire"
)

// fakePeer runs fn against the far end of a net.Pipe, so tests can script
// the peer's side of the connection-layer protocol by hand.
func fakePeer(t *testing.T, fn func(peer net.Conn)) net.Conn {
	t.Helper()
	client, peer := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(peer)
	}()
	t.Cleanup(func() {
		_ = client.Close()
		_ = peer.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("fakePeer goroutine did not finish")
		}
	})
	return client
}

func readPacket(t *testing.T, peer net.Conn) parsedPacket {
	t.Helper()
	frame, err := wire.ReadFrame(peer)
	require.NoError(t, err)
	pkt, err := parsePacket(frame)
	require.NoError(t, err)
	return pkt
}

func writePacket(t *testing.T, peer net.Conn, body []byte) {
	t.Helper()
	require.NoError(t, wire.WriteFrame(peer, body))
}

func TestOpenChannelConfirmed(t *testing.T) {
	conn := fakePeer(t, func(peer net.Conn) {
		pkt := readPacket(t, peer)
		require.EqualValues(t, MsgChannelOpen, pkt.msgType)
		chanType, rest, err := wire.GetString(pkt.body)
		require.NoError(t, err)
		assert.Equal(t, "session", string(chanType))
		senderChannel, rest, err := wire.GetUint32(rest)
		require.NoError(t, err)

		confirm := packetHeader(MsgChannelOpenConfirm)
		confirm = wire.PutUint32(confirm, senderChannel) // recipient_channel == our slot
		confirm = wire.PutUint32(confirm, 42)             // peer's own channel id
		confirm = wire.PutUint32(confirm, 2*1024*1024)    // initial window
		confirm = wire.PutUint32(confirm, 32*1024)        // max packet
		writePacket(t, peer, confirm)

		// keep the peer alive until the test closes the pipe
		buf := make([]byte, 1)
		_, _ = peer.Read(buf)
	})

	client := NewProxyClient(conn)
	in, out, ref, err := client.OpenChannel("session", nil)
	require.NoError(t, err)
	require.NotNil(t, in)
	require.NotNil(t, out)

	in.Close()
	out.Close()
	ref.Release()
}

func TestOpenChannelFailed(t *testing.T) {
	conn := fakePeer(t, func(peer net.Conn) {
		pkt := readPacket(t, peer)
		require.EqualValues(t, MsgChannelOpen, pkt.msgType)
		_, rest, err := wire.GetString(pkt.body)
		require.NoError(t, err)
		senderChannel, _, err := wire.GetUint32(rest)
		require.NoError(t, err)

		fail := packetHeader(MsgChannelOpenFailure)
		fail = wire.PutUint32(fail, senderChannel)
		fail = wire.PutUint32(fail, OpenResourceShortage)
		fail = wire.PutString(fail, []byte("no room"))
		fail = wire.PutString(fail, []byte("en"))
		writePacket(t, peer, fail)

		buf := make([]byte, 1)
		_, _ = peer.Read(buf)
	})

	client := NewProxyClient(conn)
	_, _, _, err := client.OpenChannel("session", nil)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrChannelOpenFailure, perr.Kind)
	assert.EqualValues(t, OpenResourceShortage, perr.OpenCode)
	assert.Equal(t, "no room", perr.OpenReason)
	assert.Equal(t, "en", perr.OpenLanguage)
}

func TestChannelDataRoundTrip(t *testing.T) {
	payload := []byte("hello from the peer")

	conn := fakePeer(t, func(peer net.Conn) {
		pkt := readPacket(t, peer)
		_, rest, err := wire.GetString(pkt.body)
		require.NoError(t, err)
		senderChannel, _, err := wire.GetUint32(rest)
		require.NoError(t, err)

		confirm := packetHeader(MsgChannelOpenConfirm)
		confirm = wire.PutUint32(confirm, senderChannel)
		confirm = wire.PutUint32(confirm, 99)
		confirm = wire.PutUint32(confirm, uint32(DefaultReceiverWindow))
		confirm = wire.PutUint32(confirm, DefaultMaxPacketSize)
		writePacket(t, peer, confirm)

		data := packetHeader(MsgChannelData)
		data = wire.PutUint32(data, senderChannel)
		data = wire.PutString(data, payload)
		writePacket(t, peer, data)

		// Drain whatever the client sends back (window adjusts, or
		// CHANNEL_EOF/CLOSE on teardown) until the pipe is closed.
		for {
			if _, err := wire.ReadFrame(peer); err != nil {
				return
			}
		}
	})

	client := NewProxyClient(conn)
	_, out, ref, err := client.OpenChannel("session", nil)
	require.NoError(t, err)

	got, isEOF := out.Read()
	assert.False(t, isEOF)
	assert.Equal(t, payload, got)

	out.Close()
	ref.Release()
}

func TestChannelRequestSuccess(t *testing.T) {
	conn := fakePeer(t, func(peer net.Conn) {
		pkt := readPacket(t, peer)
		_, rest, err := wire.GetString(pkt.body)
		require.NoError(t, err)
		senderChannel, _, err := wire.GetUint32(rest)
		require.NoError(t, err)

		confirm := packetHeader(MsgChannelOpenConfirm)
		confirm = wire.PutUint32(confirm, senderChannel)
		confirm = wire.PutUint32(confirm, 7)
		confirm = wire.PutUint32(confirm, uint32(DefaultReceiverWindow))
		confirm = wire.PutUint32(confirm, DefaultMaxPacketSize)
		writePacket(t, peer, confirm)

		reqPkt := readPacket(t, peer)
		require.EqualValues(t, MsgChannelRequest, reqPkt.msgType)

		success := packetHeader(MsgChannelSuccess)
		success = wire.PutUint32(success, senderChannel)
		writePacket(t, peer, success)

		buf := make([]byte, 1)
		_, _ = peer.Read(buf)
	})

	client := NewProxyClient(conn)
	in, out, ref, err := client.OpenChannel("session", nil)
	require.NoError(t, err)

	completion, err := in.Request("exec", true, []byte("true"))
	require.NoError(t, err)
	assert.Equal(t, CompletionSuccess, completion)

	in.Close()
	out.Close()
	ref.Release()
}

// TestCloseOrderingDataEofClose reproduces spec scenario 5: closing the
// input after a short write puts CHANNEL_DATA then CHANNEL_EOF on the wire,
// and releasing the last channel reference follows with CHANNEL_CLOSE.
func TestCloseOrderingDataEofClose(t *testing.T) {
	payload := []byte("hello")
	ordered := make(chan struct{})

	conn := fakePeer(t, func(peer net.Conn) {
		pkt := readPacket(t, peer)
		require.EqualValues(t, MsgChannelOpen, pkt.msgType)
		_, rest, err := wire.GetString(pkt.body)
		require.NoError(t, err)
		senderChannel, _, err := wire.GetUint32(rest)
		require.NoError(t, err)

		confirm := packetHeader(MsgChannelOpenConfirm)
		confirm = wire.PutUint32(confirm, senderChannel)
		confirm = wire.PutUint32(confirm, 11)
		confirm = wire.PutUint32(confirm, uint32(DefaultReceiverWindow))
		confirm = wire.PutUint32(confirm, DefaultMaxPacketSize)
		writePacket(t, peer, confirm)

		dataPkt := readPacket(t, peer)
		require.EqualValues(t, MsgChannelData, dataPkt.msgType)
		_, rest, err = wire.GetUint32(dataPkt.body)
		require.NoError(t, err)
		chunk, _, err := wire.GetString(rest)
		require.NoError(t, err)
		assert.Equal(t, payload, chunk)

		eofPkt := readPacket(t, peer)
		assert.EqualValues(t, MsgChannelEOF, eofPkt.msgType)

		closePkt := readPacket(t, peer)
		assert.EqualValues(t, MsgChannelClose, closePkt.msgType)
		close(ordered)

		buf := make([]byte, 1)
		_, _ = peer.Read(buf)
	})

	client := NewProxyClient(conn)
	in, out, ref, err := client.OpenChannel("session", nil)
	require.NoError(t, err)

	_, err = in.Write(payload)
	require.NoError(t, err)
	require.NoError(t, in.Close())
	require.NoError(t, out.Close())
	ref.Release()

	select {
	case <-ordered:
	case <-time.After(2 * time.Second):
		t.Fatal("did not observe DATA, EOF, CLOSE in order")
	}
}

// TestStderrRoutingAndEOF checks that CHANNEL_EXTENDED_DATA with the stderr
// type code lands on the stderr stream only, and that CHANNEL_EOF ends both
// streams.
func TestStderrRoutingAndEOF(t *testing.T) {
	stderrPayload := []byte("oops")

	conn := fakePeer(t, func(peer net.Conn) {
		pkt := readPacket(t, peer)
		_, rest, err := wire.GetString(pkt.body)
		require.NoError(t, err)
		senderChannel, _, err := wire.GetUint32(rest)
		require.NoError(t, err)

		confirm := packetHeader(MsgChannelOpenConfirm)
		confirm = wire.PutUint32(confirm, senderChannel)
		confirm = wire.PutUint32(confirm, 8)
		confirm = wire.PutUint32(confirm, uint32(DefaultReceiverWindow))
		confirm = wire.PutUint32(confirm, DefaultMaxPacketSize)
		writePacket(t, peer, confirm)

		ext := packetHeader(MsgChannelExtendedData)
		ext = wire.PutUint32(ext, senderChannel)
		ext = wire.PutUint32(ext, ExtendedDataStderr)
		ext = wire.PutString(ext, stderrPayload)
		writePacket(t, peer, ext)

		eof := packetHeader(MsgChannelEOF)
		eof = wire.PutUint32(eof, senderChannel)
		writePacket(t, peer, eof)

		buf := make([]byte, 1)
		_, _ = peer.Read(buf)
	})

	client := NewProxyClient(conn)
	_, out, ref, err := client.OpenChannel("session", nil)
	require.NoError(t, err)

	got, isEOF := out.ReadStderr()
	assert.False(t, isEOF)
	assert.Equal(t, stderrPayload, got)

	got, isEOF = out.Read()
	assert.True(t, isEOF)
	assert.Nil(t, got)

	got, isEOF = out.ReadStderr()
	assert.True(t, isEOF)
	assert.Nil(t, got)

	out.Close()
	ref.Release()
}

// TestRequestBatchReportsFailure sends a batch of two requests where the
// peer fails one: the aggregate completion must be CompletionFailed.
func TestRequestBatchReportsFailure(t *testing.T) {
	conn := fakePeer(t, func(peer net.Conn) {
		pkt := readPacket(t, peer)
		_, rest, err := wire.GetString(pkt.body)
		require.NoError(t, err)
		senderChannel, _, err := wire.GetUint32(rest)
		require.NoError(t, err)

		confirm := packetHeader(MsgChannelOpenConfirm)
		confirm = wire.PutUint32(confirm, senderChannel)
		confirm = wire.PutUint32(confirm, 4)
		confirm = wire.PutUint32(confirm, uint32(DefaultReceiverWindow))
		confirm = wire.PutUint32(confirm, DefaultMaxPacketSize)
		writePacket(t, peer, confirm)

		for i := 0; i < 2; i++ {
			reqPkt := readPacket(t, peer)
			require.EqualValues(t, MsgChannelRequest, reqPkt.msgType)
		}

		success := packetHeader(MsgChannelSuccess)
		success = wire.PutUint32(success, senderChannel)
		writePacket(t, peer, success)

		failure := packetHeader(MsgChannelFailure)
		failure = wire.PutUint32(failure, senderChannel)
		writePacket(t, peer, failure)

		buf := make([]byte, 1)
		_, _ = peer.Read(buf)
	})

	client := NewProxyClient(conn)
	in, out, ref, err := client.OpenChannel("session", nil)
	require.NoError(t, err)

	completion, err := in.Requests("env", [][]byte{
		wire.PutString(nil, []byte("A=1")),
		wire.PutString(nil, []byte("B=2")),
	})
	require.NoError(t, err)
	assert.Equal(t, CompletionFailed, completion)

	in.Close()
	out.Close()
	ref.Release()
}

func TestUnknownChannelOnInboundTrafficIsFatal(t *testing.T) {
	conn := fakePeer(t, func(peer net.Conn) {
		bogusClose := packetHeader(MsgChannelClose)
		bogusClose = wire.PutUint32(bogusClose, 7)
		writePacket(t, peer, bogusClose)
		buf := make([]byte, 1)
		_, _ = peer.Read(buf)
	})

	client := NewProxyClient(conn)
	err := client.Wait()
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrInvalidSenderChannel, perr.Kind)
	assert.EqualValues(t, 7, perr.ChannelID)
}

func TestUnknownChannelOnOpenConfirmationIsFatal(t *testing.T) {
	conn := fakePeer(t, func(peer net.Conn) {
		confirm := packetHeader(MsgChannelOpenConfirm)
		confirm = wire.PutUint32(confirm, 9) // no CHANNEL_OPEN ever used this slot
		confirm = wire.PutUint32(confirm, 1)
		confirm = wire.PutUint32(confirm, uint32(DefaultReceiverWindow))
		confirm = wire.PutUint32(confirm, DefaultMaxPacketSize)
		writePacket(t, peer, confirm)
		buf := make([]byte, 1)
		_, _ = peer.Read(buf)
	})

	client := NewProxyClient(conn)
	err := client.Wait()
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrInvalidRecipientChannel, perr.Kind)
	assert.EqualValues(t, 9, perr.ChannelID)
}

// TestInboundDataBeyondWindowSaturates sends more data than the advertised
// receive window: the window counter saturates at zero (not fatal), the
// bytes are still delivered, and hitting zero triggers a WINDOW_ADJUST
// resetting the window to the extend increment.
func TestInboundDataBeyondWindowSaturates(t *testing.T) {
	const window = 8
	const maxPacket = 16
	payload := []byte("way more than eight bytes of data")

	sawAdjust := make(chan uint32, 1)

	conn := fakePeer(t, func(peer net.Conn) {
		pkt := readPacket(t, peer)
		require.EqualValues(t, MsgChannelOpen, pkt.msgType)
		_, rest, err := wire.GetString(pkt.body)
		require.NoError(t, err)
		senderChannel, _, err := wire.GetUint32(rest)
		require.NoError(t, err)

		confirm := packetHeader(MsgChannelOpenConfirm)
		confirm = wire.PutUint32(confirm, senderChannel)
		confirm = wire.PutUint32(confirm, 6)
		confirm = wire.PutUint32(confirm, 1<<20)
		confirm = wire.PutUint32(confirm, maxPacket)
		writePacket(t, peer, confirm)

		data := packetHeader(MsgChannelData)
		data = wire.PutUint32(data, senderChannel)
		data = wire.PutString(data, payload)
		writePacket(t, peer, data)

		adjustPkt := readPacket(t, peer)
		require.EqualValues(t, MsgChannelWindowAdjust, adjustPkt.msgType)
		_, rest, err = wire.GetUint32(adjustPkt.body)
		require.NoError(t, err)
		increment, _, err := wire.GetUint32(rest)
		require.NoError(t, err)
		sawAdjust <- increment

		for {
			if _, err := wire.ReadFrame(peer); err != nil {
				return
			}
		}
	})

	client := NewProxyClient(conn)
	_, out, ref, err := client.OpenChannelWindow("session", nil, window, maxPacket)
	require.NoError(t, err)

	got, isEOF := out.Read()
	assert.False(t, isEOF)
	assert.Equal(t, payload, got)

	select {
	case increment := <-sawAdjust:
		assert.EqualValues(t, maxPacket, increment)
	case <-time.After(2 * time.Second):
		t.Fatal("no WINDOW_ADJUST after the receive window was exhausted")
	}

	out.Close()
	ref.Release()
}

// TestWriteBlocksUntilWindowGrantedThenChunksByMaxPacket reproduces spec
// scenario 4: a channel opened with a zero initial sender window buffers a
// Write entirely, emits nothing until a WINDOW_ADJUST arrives, and then
// emits exactly ceil(window/maxPacket) CHANNEL_DATA packets each bounded by
// maxPacketSize.
func TestWriteBlocksUntilWindowGrantedThenChunksByMaxPacket(t *testing.T) {
	const maxPacket = 32 * 1024
	const grant = 65536
	payload := make([]byte, 100*1024)
	for i := range payload {
		payload[i] = byte(i)
	}

	sawTwoChunks := make(chan struct{})

	conn := fakePeer(t, func(peer net.Conn) {
		pkt := readPacket(t, peer)
		require.EqualValues(t, MsgChannelOpen, pkt.msgType)
		_, rest, err := wire.GetString(pkt.body)
		require.NoError(t, err)
		senderChannel, _, err := wire.GetUint32(rest)
		require.NoError(t, err)

		confirm := packetHeader(MsgChannelOpenConfirm)
		confirm = wire.PutUint32(confirm, senderChannel)
		confirm = wire.PutUint32(confirm, 5)
		confirm = wire.PutUint32(confirm, 0) // zero initial sender window
		confirm = wire.PutUint32(confirm, maxPacket)
		writePacket(t, peer, confirm)

		// Give the writer goroutine a chance to try (and fail) to send
		// before any window has been granted, then confirm nothing arrived.
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, peer.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
		_, err = wire.ReadFrame(peer)
		var netErr net.Error
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Timeout(), "CHANNEL_DATA observed before any window was granted")
		require.NoError(t, peer.SetReadDeadline(time.Time{}))

		adjust := packetHeader(MsgChannelWindowAdjust)
		adjust = wire.PutUint32(adjust, senderChannel)
		adjust = wire.PutUint32(adjust, grant)
		writePacket(t, peer, adjust)

		var total []byte
		for chunks := 0; chunks < 2; chunks++ {
			dataPkt := readPacket(t, peer)
			require.EqualValues(t, MsgChannelData, dataPkt.msgType)
			_, rest, err := wire.GetUint32(dataPkt.body)
			require.NoError(t, err)
			chunk, _, err := wire.GetString(rest)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(chunk), maxPacket)
			total = append(total, chunk...)
		}
		assert.Equal(t, grant, len(total))
		close(sawTwoChunks)

		for {
			if _, err := wire.ReadFrame(peer); err != nil {
				return
			}
		}
	})

	client := NewProxyClient(conn)
	in, out, ref, err := client.OpenChannel("session", nil)
	require.NoError(t, err)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		_, _ = in.Write(payload)
	}()

	select {
	case <-sawTwoChunks:
	case <-time.After(2 * time.Second):
		t.Fatal("did not observe the expected two CHANNEL_DATA chunks in time")
	}

	// The write goroutine still has more buffered bytes than the single
	// grant covered, so it is parked waiting for another WINDOW_ADJUST that
	// this test never sends; tearing down the client unblocks it via the
	// shutdown path rather than a graceful Close.
	_ = out
	_ = ref
	require.NoError(t, client.transport.(io.Closer).Close())

	select {
	case <-writeDone:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Write did not unblock after client teardown")
	}
}

// TestBlockedWriteUnblocksOnTransportShutdown is a regression test: a
// ChannelInput.Write parked waiting for sender window must return an error
// once the transport dies instead of hanging forever.
func TestBlockedWriteUnblocksOnTransportShutdown(t *testing.T) {
	conn := fakePeer(t, func(peer net.Conn) {
		pkt := readPacket(t, peer)
		require.EqualValues(t, MsgChannelOpen, pkt.msgType)
		_, rest, err := wire.GetString(pkt.body)
		require.NoError(t, err)
		senderChannel, _, err := wire.GetUint32(rest)
		require.NoError(t, err)

		confirm := packetHeader(MsgChannelOpenConfirm)
		confirm = wire.PutUint32(confirm, senderChannel)
		confirm = wire.PutUint32(confirm, 5)
		confirm = wire.PutUint32(confirm, 0) // zero initial sender window: Write will block
		confirm = wire.PutUint32(confirm, 32*1024)
		writePacket(t, peer, confirm)

		// Close our end so the client observes EOF.
		_ = peer.Close()
	})

	client := NewProxyClient(conn)
	in, _, _, err := client.OpenChannel("session", nil)
	require.NoError(t, err)

	// The payload must be at least one full max-packet chunk, otherwise
	// Write just buffers it and returns without ever touching the window.
	payload := make([]byte, 64*1024)

	errCh := make(chan error, 1)
	go func() {
		_, err := in.Write(payload)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Write did not unblock after the transport shut down")
	}
}
