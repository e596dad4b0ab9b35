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

import "sync/atomic"

// ChannelData is the per-channel coordination object shared by the read
// task, the write-side (ChannelInput), and the read-side (ChannelOutput)
// of one logical channel. It is created when the client sends
// CHANNEL_OPEN and freed when the last ChannelRef to its registry slot
// drops.
type ChannelData struct {
	client *ProxyClient
	slot   uint32 // our recipient_channel id, == the registry slot

	state *channelStateBox

	pendingRequests *pendingRequests

	receiversCount atomic.Int32 // 0-2: rx + stderr

	rx     *mpscBytesChannel
	stderr *mpscBytesChannel

	senderWindowSize *awaitableCounter

	refs      atomic.Int32
	closeOnce atomic.Bool

	peerChannel   uint32 // valid once Confirmed
	maxPacketSize uint32 // valid once Confirmed

	// receiverWinSize and extendWindowSize are mutated only by the read
	// task, which is the sole goroutine that ever observes inbound
	// CHANNEL_DATA/EXTENDED_DATA for this channel; no lock is needed.
	receiverWinSize  uint64
	extendWindowSize uint32
}

func newChannelData(client *ProxyClient, initReceiverWin uint64, extendWindowSize uint32) *ChannelData {
	return &ChannelData{
		client:           client,
		state:            newChannelStateBox(ChannelState{Tag: StateOpenRequested}),
		pendingRequests:  newPendingRequests(),
		rx:               newMpscBytesChannel(),
		stderr:           newMpscBytesChannel(),
		senderWindowSize: newAwaitableCounter(0),
		receiverWinSize:  initReceiverWin,
		extendWindowSize: extendWindowSize,
	}
}

// ChannelID returns the recipient_channel id this side advertises for the
// channel (its registry slot number).
func (d *ChannelData) ChannelID() uint32 { return d.slot }

// ChannelRef is a reference-counted handle to a ChannelData slot. The
// registry entry, and the CHANNEL_CLOSE packet announcing it, are released
// exactly once, at the drop of the last ChannelRef.
type ChannelRef struct {
	data *ChannelData
}

func newChannelRef(data *ChannelData) *ChannelRef {
	data.refs.Add(1)
	return &ChannelRef{data: data}
}

// Clone returns a new ChannelRef to the same ChannelData, extending its
// lifetime. Used by ChannelInput's background flush-on-drop task so the
// slot survives until the flush finishes.
func (r *ChannelRef) Clone() *ChannelRef {
	return newChannelRef(r.data)
}

// Release drops this reference. When the last reference to a slot is
// released, a CHANNEL_CLOSE is emitted exactly once and the slot is freed.
func (r *ChannelRef) Release() {
	if r.data.refs.Add(-1) != 0 {
		return
	}
	if !r.data.closeOnce.CompareAndSwap(false, true) {
		return
	}
	client := r.data.client
	client.registry.remove(r.data.slot, r.data)
	if peerChannel, ok := r.data.confirmedPeerChannel(); ok {
		client.writeQueue.push(encodeChannelClose(peerChannel))
	}
}

// confirmedPeerChannel returns the peer's channel id and true once the
// open negotiation has reached Confirmed/ProcessExited/ProcessKilled/Consumed;
// otherwise it returns false because no CHANNEL_CLOSE should be sent for a
// channel the peer never confirmed.
func (d *ChannelData) confirmedPeerChannel() (uint32, bool) {
	switch d.state.get().Tag {
	case StateOpenConfirmed, StateProcessExited, StateProcessKilled, StateConsumed:
		return d.peerChannel, true
	default:
		return 0, false
	}
}
