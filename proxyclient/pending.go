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
	"fmt"
	"sync"
)

// Completion is the outcome of a batch of channel-scoped requests.
type Completion int

const (
	CompletionSuccess Completion = iota
	CompletionFailed
)

type pendingStatus int

const (
	pendingNone pendingStatus = iota
	pendingWaiting
	pendingDone
)

// pendingRequests correlates CHANNEL_REQUEST batches with their
// SUCCESS/FAILURE responses without per-request ids: the owner announces
// how many responses it expects, the read task decrements that count as
// responses arrive (in FIFO order, since SSH channel requests are answered
// in the order they were sent), and reports one aggregate Completion when
// the count reaches zero.
type pendingRequests struct {
	mu        sync.Mutex
	status    pendingStatus
	remaining int
	hasFailed bool
	done      Completion
	wake      chan struct{}
	closed    bool
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{wake: make(chan struct{})}
}

// startNewRequests registers that n responses are now outstanding. It is
// an error to call this while a previous batch has not yet completed.
func (p *pendingRequests) startNewRequests(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == pendingWaiting {
		return fmt.Errorf("proxyclient: startNewRequests called while a batch is still outstanding")
	}
	p.status = pendingWaiting
	p.remaining = n
	p.hasFailed = false
	return nil
}

// reportOne is called by the read task for each SUCCESS/FAILURE it
// receives for this channel. When the batch's remaining count reaches
// zero it reports completion and wakes the owner.
func (p *pendingRequests) reportOne(success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != pendingWaiting {
		return
	}
	if !success {
		p.hasFailed = true
	}
	p.remaining--
	if p.remaining <= 0 {
		p.status = pendingDone
		if p.hasFailed {
			p.done = CompletionFailed
		} else {
			p.done = CompletionSuccess
		}
		close(p.wake)
		p.wake = make(chan struct{})
	}
}

// waitForCompletion blocks until the most recent startNewRequests batch
// has been fully reported, then returns its Completion. If the connection
// shuts down with the batch still outstanding, it returns CompletionFailed
// rather than blocking forever.
func (p *pendingRequests) waitForCompletion() Completion {
	for {
		p.mu.Lock()
		if p.status == pendingDone {
			c := p.done
			p.status = pendingNone
			p.mu.Unlock()
			return c
		}
		if p.closed {
			p.mu.Unlock()
			return CompletionFailed
		}
		wake := p.wake
		p.mu.Unlock()
		<-wake
	}
}

// shutdown permanently wakes any waiter parked in waitForCompletion without
// a matching response, reporting CompletionFailed. Idempotent.
func (p *pendingRequests) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.wake)
}
