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
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/trzsz/tsshmux/internal/xlog"
)

// ChannelInput is the write half of a channel: callers Write bytes destined
// for the peer's stdin-equivalent, and the channel's sender window applies
// real backpressure — a Write call that has at least one full
// maxPacketSize chunk to send blocks until the peer has granted window for
// it. A shorter tail stays buffered without waiting for window.
type ChannelInput struct {
	ref *ChannelRef

	mu      sync.Mutex
	pending []byte
	closed  bool
}

func newChannelInput(ref *ChannelRef) *ChannelInput {
	in := &ChannelInput{ref: ref}
	runtime.SetFinalizer(in, finalizeChannelInput)
	return in
}

// finalizeChannelInput is a last-resort safety net for callers that forget
// to Close an Input: it flushes whatever is buffered and releases the
// channel reference so the slot isn't leaked forever. Explicit Close is
// always preferred since it can return a flush error to the caller.
func finalizeChannelInput(in *ChannelInput) {
	in.mu.Lock()
	alreadyClosed := in.closed
	in.closed = true
	in.mu.Unlock()
	if alreadyClosed {
		return
	}
	id := uuid.NewString()
	xlog.Debugf("channel input %d dropped without Close, flushing in background [%s]", in.ref.data.ChannelID(), id)
	go func() {
		_ = in.flushAndEOF()
		in.ref.Release()
		xlog.Debugf("background flush for dropped channel input finished [%s]", id)
	}()
}

// Write buffers p and flushes complete maxPacketSize-sized chunks to the
// peer, blocking on the sender window as needed.
func (in *ChannelInput) Write(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return 0, &Error{Kind: ErrClientClosed, What: "channel input is closed"}
	}
	in.pending = append(in.pending, p...)
	if err := in.flushLocked(false); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush sends any buffered bytes to the peer immediately, even if they
// don't fill a whole maxPacketSize chunk.
func (in *ChannelInput) Flush() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return &Error{Kind: ErrClientClosed, What: "channel input is closed"}
	}
	return in.flushLocked(true)
}

// flushLocked drains in.pending in window- and maxPacketSize-bounded
// chunks. With force=false it only sends whole maxPacketSize chunks,
// leaving a short tail buffered for the next Write or an explicit Flush;
// with force=true it drains everything, including a short tail.
func (in *ChannelInput) flushLocked(force bool) error {
	data := in.ref.data
	for {
		pendingLen := len(in.pending)
		if pendingLen == 0 {
			return nil
		}
		if !force && uint32(pendingLen) < data.maxPacketSize {
			return nil
		}

		win, err := data.senderWindowSize.waitUntilNonZero()
		if err != nil {
			return err
		}
		send := pendingLen
		if uint64(send) > win {
			send = int(win)
		}
		if uint32(send) > data.maxPacketSize {
			send = int(data.maxPacketSize)
		}
		if leftover := win - uint64(send); leftover > 0 {
			if err := data.senderWindowSize.add(leftover); err != nil {
				return err
			}
		}

		packet := encodeChannelDataHeader(data.peerChannel, uint32(send))
		packet = append(packet, in.pending[:send]...)
		data.client.writeQueue.push(packet)

		in.pending = in.pending[send:]
	}
}

func (in *ChannelInput) flushAndEOF() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if err := in.flushLocked(true); err != nil {
		return err
	}
	in.ref.data.client.writeQueue.push(encodeChannelEOF(in.ref.data.peerChannel))
	return nil
}

// Close flushes any remaining buffered bytes, sends CHANNEL_EOF, and
// releases this Input's reference to the channel. It does not close the
// ChannelOutput half or the channel itself — the channel stays open until
// every ChannelRef (input, output, and the one OpenChannel returned) is
// released.
func (in *ChannelInput) Close() error {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil
	}
	in.closed = true
	err := in.flushLockedNoRelock()
	in.mu.Unlock()
	runtime.SetFinalizer(in, nil)
	in.ref.Release()
	return err
}

func (in *ChannelInput) flushLockedNoRelock() error {
	if err := in.flushLocked(true); err != nil {
		return err
	}
	in.ref.data.client.writeQueue.push(encodeChannelEOF(in.ref.data.peerChannel))
	return nil
}
