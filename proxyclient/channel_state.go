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

// ChannelStateTag names the state a channel is in; see ChannelState for the
// payload each tag carries.
type ChannelStateTag int

const (
	StateOpenRequested ChannelStateTag = iota
	StateOpenConfirmed
	StateOpenFailed
	StateProcessExited
	StateProcessKilled
	StateConsumed
)

// ChannelState is the state-machine value stored per channel:
// OpenRequested moves to either OpenConfirmed{max_pkt} or OpenFailed(reason);
// OpenConfirmed moves to ProcessExited(code) or ProcessKilled(signal).
// StateConsumed is defined, but no code path in this package moves a
// channel into it: reading a failure or exit state leaves the state as is.
type ChannelState struct {
	Tag ChannelStateTag

	MaxPacketSize uint32 // valid when Tag == StateOpenConfirmed
	FailCode      uint32 // valid when Tag == StateOpenFailed
	FailReason    string
	FailLanguage  string
	ExitCode      uint32 // valid when Tag == StateProcessExited
	ExitSignal    string // valid when Tag == StateProcessKilled
}

func (s ChannelState) String() string {
	switch s.Tag {
	case StateOpenRequested:
		return "OpenRequested"
	case StateOpenConfirmed:
		return fmt.Sprintf("OpenConfirmed{max_pkt=%d}", s.MaxPacketSize)
	case StateOpenFailed:
		return fmt.Sprintf("OpenFailed{code=%d}", s.FailCode)
	case StateProcessExited:
		return fmt.Sprintf("ProcessExited{code=%d}", s.ExitCode)
	case StateProcessKilled:
		return fmt.Sprintf("ProcessKilled{signal=%s}", s.ExitSignal)
	case StateConsumed:
		return "Consumed"
	default:
		return "Unknown"
	}
}

// channelStateBox is a mutex-guarded ChannelState with a single waiter
// wakeup channel, mirroring the source's Mutex<Inner{state, waker}>. The
// wakeup channel is swapped on every transition so exactly the waiters
// registered before the transition are released.
type channelStateBox struct {
	mu     sync.Mutex
	state  ChannelState
	wake   chan struct{}
	closed bool
}

func newChannelStateBox(initial ChannelState) *channelStateBox {
	return &channelStateBox{state: initial, wake: make(chan struct{})}
}

func (b *channelStateBox) get() ChannelState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition moves the state machine from one of the tags in expectFrom to
// next, waking any waiters. It reports ErrUnexpectedChannelState if the
// current state is not one of expectFrom — a protocol violation by the
// peer that is fatal to the channel.
func (b *channelStateBox) transition(next ChannelState, expectFrom ...ChannelStateTag) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ok := false
	for _, tag := range expectFrom {
		if b.state.Tag == tag {
			ok = true
			break
		}
	}
	if !ok {
		return &Error{Kind: ErrUnexpectedChannelState, ExpectedState: ChannelState{Tag: expectFrom[0]}, ActualState: b.state}
	}

	b.state = next
	close(b.wake)
	b.wake = make(chan struct{})
	return nil
}

// waitForTag blocks until the state's tag is one of tags, returning the
// state at that point. It is used by channel open negotiation and process
// exit waiters. If the connection shuts down while a channel is still
// waiting on a tag it never reached (the peer went away before answering),
// it returns the last known state rather than blocking forever.
func (b *channelStateBox) waitForTag(tags ...ChannelStateTag) ChannelState {
	for {
		b.mu.Lock()
		state := b.state
		for _, tag := range tags {
			if state.Tag == tag {
				b.mu.Unlock()
				return state
			}
		}
		if b.closed {
			b.mu.Unlock()
			return state
		}
		wake := b.wake
		b.mu.Unlock()
		<-wake
	}
}

// shutdown permanently wakes any waiter parked in waitForTag that is still
// waiting on a tag that will now never arrive. Idempotent.
func (b *channelStateBox) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.wake)
}
