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

// mpscBytesChannel is a many-writer, one-reader FIFO of byte chunks. It
// backs the inbound per-channel queues (stdout/stderr equivalents, fed by
// the read task and drained by ChannelOutput); the outbound queue is the
// separate writeQueue type.
// After dropReader is called, further pushes are silently discarded so a
// read task that outlives a dropped ChannelOutput does not block or leak.
type mpscBytesChannel struct {
	mu           sync.Mutex
	fifo         [][]byte
	eof          bool
	readerGone   bool
	wake         chan struct{}
}

func newMpscBytesChannel() *mpscBytesChannel {
	return &mpscBytesChannel{wake: make(chan struct{})}
}

func (c *mpscBytesChannel) notifyLocked() {
	close(c.wake)
	c.wake = make(chan struct{})
}

// pushBytes appends data for the reader. A no-op once dropReader has been
// called or EOF has been marked.
func (c *mpscBytesChannel) pushBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readerGone || c.eof {
		return
	}
	c.fifo = append(c.fifo, data)
	c.notifyLocked()
}

// markEOF marks the stream as finished; subsequent reads drain any
// remaining buffered chunks and then report EOF.
func (c *mpscBytesChannel) markEOF() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eof {
		return
	}
	c.eof = true
	c.notifyLocked()
}

// dropReader tells the channel that no one will read from it again; future
// pushBytes calls become no-ops instead of growing memory forever.
func (c *mpscBytesChannel) dropReader() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readerGone = true
	c.fifo = nil
}

// pollForData returns the next chunk and true if one is available, or
// (nil, false) if the FIFO is empty. If the FIFO is empty and EOF has been
// marked, it returns (nil, true) with a nil chunk to signal end of stream;
// callers distinguish this from "no data yet" via the isEOF return.
func (c *mpscBytesChannel) pollForData() (data []byte, isEOF bool, ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.fifo) > 0 {
		data = c.fifo[0]
		c.fifo = c.fifo[1:]
		return data, false, true
	}
	if c.eof {
		return nil, true, true
	}
	return nil, false, false
}

// waitForData blocks until pollForData would be ready, then returns its
// result.
func (c *mpscBytesChannel) waitForData() (data []byte, isEOF bool) {
	for {
		c.mu.Lock()
		if len(c.fifo) > 0 {
			data = c.fifo[0]
			c.fifo = c.fifo[1:]
			c.mu.Unlock()
			return data, false
		}
		if c.eof {
			c.mu.Unlock()
			return nil, true
		}
		wake := c.wake
		c.mu.Unlock()
		<-wake
	}
}
