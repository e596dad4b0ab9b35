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

import "sync"

// ChannelOutput is the read half of a channel. Stdout-equivalent data and
// stderr-equivalent data are exposed as two independently drainable
// streams so a caller that only cares about one can Close the other
// without blocking the read task.
type ChannelOutput struct {
	ref *ChannelRef

	mu           sync.Mutex
	closed       bool
	stderrClosed bool
}

func newChannelOutput(ref *ChannelRef) *ChannelOutput {
	return &ChannelOutput{ref: ref}
}

// Read returns the next chunk of stdout-equivalent data, blocking until
// some is available. isEOF is true once CHANNEL_EOF or CHANNEL_CLOSE has
// been observed and no more chunks remain buffered.
func (o *ChannelOutput) Read() (data []byte, isEOF bool) {
	return o.ref.data.rx.waitForData()
}

// TryRead is the non-blocking form of Read: ready is false if neither data
// nor EOF is available yet.
func (o *ChannelOutput) TryRead() (data []byte, isEOF bool, ready bool) {
	return o.ref.data.rx.pollForData()
}

// ReadStderr is Read for the stderr-equivalent stream.
func (o *ChannelOutput) ReadStderr() (data []byte, isEOF bool) {
	return o.ref.data.stderr.waitForData()
}

// TryReadStderr is TryRead for the stderr-equivalent stream.
func (o *ChannelOutput) TryReadStderr() (data []byte, isEOF bool, ready bool) {
	return o.ref.data.stderr.pollForData()
}

// Wait blocks until the peer has reported the channel's process as exited
// or killed, returning the terminal ChannelState.
func (o *ChannelOutput) Wait() ChannelState {
	return o.ref.data.state.waitForTag(StateProcessExited, StateProcessKilled)
}

// Close stops reading both streams and releases this Output's reference to
// the channel. Safe to call more than once.
func (o *ChannelOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if !o.stderrClosed {
		o.stderrClosed = true
		o.ref.data.stderr.dropReader()
		o.ref.data.receiversCount.Add(-1)
	}
	o.ref.data.rx.dropReader()
	o.ref.data.receiversCount.Add(-1)
	o.ref.Release()
	return nil
}

// CloseStderr stops reading the stderr-equivalent stream only, letting the
// caller keep draining stdout. It narrows receiversCount so the read task
// stops granting window credit on the shared receive window once both
// streams agree no one is reading, but the channel itself stays open
// until Close is also called.
func (o *ChannelOutput) CloseStderr() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stderrClosed {
		return
	}
	o.stderrClosed = true
	o.ref.data.stderr.dropReader()
	o.ref.data.receiversCount.Add(-1)
}
