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
	"sync"
)

// DefaultReceiverWindow is the receive window a channel is opened with when
// the caller doesn't have a reason to pick a different size.
const DefaultReceiverWindow = 2 * 1024 * 1024

// DefaultMaxPacketSize is the maximum size of a single CHANNEL_DATA payload
// this side is willing to receive.
const DefaultMaxPacketSize = 32 * 1024

// Transport is the byte stream a ProxyClient speaks the connection-layer
// protocol over: typically the stdin/stdout pair of a proxy command, or any
// other already-authenticated duplex stream.
type Transport interface {
	io.Reader
	io.Writer
}

// ProxyClient multiplexes any number of logical channels over a single
// Transport. It owns two background goroutines: a read task that parses
// incoming packets and routes them to the channel they address, and a
// write task that drains the outbound writeQueue onto the transport. Both
// are started by NewProxyClient and run until the transport closes or
// Close is called.
type ProxyClient struct {
	transport Transport

	registry   *registry
	writeQueue *writeQueue

	wg        sync.WaitGroup
	writeDone chan struct{}

	closeOnce sync.Once
	closeErr  chan struct{}

	mu       sync.Mutex
	firstErr error
}

// NewProxyClient wraps transport and starts the read and write tasks. The
// caller is responsible for having already completed whatever handshake
// the transport needs (this package speaks only the connection layer).
func NewProxyClient(transport Transport) *ProxyClient {
	c := &ProxyClient{
		transport:  transport,
		registry:   newRegistry(),
		writeQueue: newWriteQueue(),
		writeDone:  make(chan struct{}),
		closeErr:   make(chan struct{}),
	}
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.fail(c.readTask())
	}()
	go func() {
		defer c.wg.Done()
		defer close(c.writeDone)
		c.fail(c.writeTask())
	}()
	return c
}

// fail records the first non-nil error reported by either background task
// and marks the write queue EOF (harmless if it is already marked), which
// makes a still-running write task drain and exit. It does not stop the
// read task, which runs until the transport reports EOF or an error.
func (c *ProxyClient) fail(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	if c.firstErr == nil {
		c.firstErr = err
	}
	c.mu.Unlock()
	c.writeQueue.markEOF()
	c.closeOnce.Do(func() { close(c.closeErr) })
}

// Close stops accepting new work and waits for the background tasks to
// exit: the write task first drains whatever is already queued, then the
// transport is closed, which unblocks the read task. It is safe to call
// more than once.
func (c *ProxyClient) Close() error {
	c.writeQueue.markEOF()
	<-c.writeDone
	if closer, ok := c.transport.(io.Closer); ok {
		_ = closer.Close()
	}
	return c.Wait()
}

// Wait blocks until both background tasks have exited and returns the
// first error either of them reported, or nil if the transport simply
// reached EOF after an orderly shutdown.
func (c *ProxyClient) Wait() error {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firstErr != nil && c.firstErr != io.EOF {
		return c.firstErr
	}
	return nil
}

// OpenChannel negotiates a new SSH channel of the given type, blocking
// until the peer confirms or rejects it. On success it returns the write
// half, the read half, and the reference that must eventually be released
// to free the channel's slot and announce CHANNEL_CLOSE.
func (c *ProxyClient) OpenChannel(chanType string, extra []byte) (*ChannelInput, *ChannelOutput, *ChannelRef, error) {
	return c.openChannelWindow(chanType, extra, DefaultReceiverWindow, DefaultMaxPacketSize)
}

// OpenChannelWindow is OpenChannel with an explicit receive window and max
// packet size, for callers that need a window shaped differently than the
// defaults (for example a low-latency interactive session vs. a bulk
// transfer).
func (c *ProxyClient) OpenChannelWindow(chanType string, extra []byte, receiverWindow uint64, maxPacketSize uint32) (*ChannelInput, *ChannelOutput, *ChannelRef, error) {
	return c.openChannelWindow(chanType, extra, receiverWindow, maxPacketSize)
}

func (c *ProxyClient) openChannelWindow(chanType string, extra []byte, receiverWindow uint64, maxPacketSize uint32) (*ChannelInput, *ChannelOutput, *ChannelRef, error) {
	extendWindow := maxPacketSize
	data := newChannelData(c, receiverWindow, extendWindow)
	slot, ok := c.registry.insert(data)
	if !ok {
		return nil, nil, nil, &Error{Kind: ErrClientClosed, What: "channel table is full"}
	}
	ref := newChannelRef(data)

	data.receiversCount.Store(2) // stdout + stderr readers, until Close narrows it

	c.writeQueue.push(encodeChannelOpen(chanType, slot, uint32(receiverWindow), maxPacketSize, extra))

	state := data.state.waitForTag(StateOpenConfirmed, StateOpenFailed)
	switch state.Tag {
	case StateOpenFailed:
		ref.Release()
		return nil, nil, nil, &Error{
			Kind:         ErrChannelOpenFailure,
			OpenCode:     state.FailCode,
			OpenReason:   state.FailReason,
			OpenLanguage: state.FailLanguage,
		}
	case StateOpenConfirmed:
		// data.peerChannel and data.maxPacketSize were already recorded by
		// the read task before it transitioned state to StateOpenConfirmed.
		// Three independent references now exist: the one ChannelInput
		// holds, the one ChannelOutput holds, and ref itself, returned to
		// the caller as a third handle for cases that want to force the
		// channel closed without routing through either half explicitly.
		// The slot is freed once all three have been released.
		in := newChannelInput(ref.Clone())
		out := newChannelOutput(ref.Clone())
		return in, out, ref, nil
	default:
		ref.Release()
		return nil, nil, nil, &Error{Kind: ErrUnexpectedChannelState, ActualState: state}
	}
}
