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
	"math"
	"sync"
)

// awaitableCounter is a one-reader, many-writer counter used as the
// per-channel send window: writers (the read task, on WINDOW_ADJUST and
// OPEN_CONFIRMATION) add to it; the single reader (ChannelInput) takes the
// whole value whenever it needs bytes to send. Guards against the
// classic lost-wakeup race by re-checking the value after registering to
// be woken.
type awaitableCounter struct {
	mu     sync.Mutex
	value  uint64
	wake   chan struct{}
	closed bool
}

func newAwaitableCounter(initial uint64) *awaitableCounter {
	return &awaitableCounter{value: initial, wake: make(chan struct{})}
}

// add performs an atomic fetch-add, waking any waiter if the counter
// became non-zero. Overflow is a peer protocol violation: the counter is
// left unchanged and an ErrUnexpectedChannelState error is returned, which
// the read task treats as fatal.
func (c *awaitableCounter) add(v uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value > math.MaxUint64-v {
		return &Error{Kind: ErrUnexpectedChannelState, What: "sender window counter overflow"}
	}
	wasZero := c.value == 0
	c.value += v
	// After shutdown the wake channel stays closed so no waiter can park;
	// closing it again would panic.
	if wasZero && c.value != 0 && !c.closed {
		close(c.wake)
		c.wake = make(chan struct{})
	}
	return nil
}

// shutdown permanently wakes every current and future waiter without
// granting any window, so a ChannelInput blocked on a dead transport
// returns instead of hanging forever. Idempotent.
func (c *awaitableCounter) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.wake)
}

// take atomically swaps the counter to zero and returns its prior value.
func (c *awaitableCounter) take() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.value
	c.value = 0
	return v
}

// get reads the counter without consuming it.
func (c *awaitableCounter) get() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// waitUntilNonZero blocks until take() would return non-zero, then takes
// and returns it. The check-register-recheck sequence below is mandatory:
// without the second check, an add() landing between the first check and
// the subscribe would be missed forever. If the counter is shut down while
// a waiter is parked (the transport died), it returns ErrClientClosed
// rather than blocking forever.
func (c *awaitableCounter) waitUntilNonZero() (uint64, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return 0, &Error{Kind: ErrClientClosed, What: "transport closed while waiting for sender window"}
		}
		if c.value != 0 {
			v := c.value
			c.value = 0
			c.mu.Unlock()
			return v, nil
		}
		wake := c.wake
		c.mu.Unlock()
		<-wake
	}
}
