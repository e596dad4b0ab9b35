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

// writeQueue is the MPSC FIFO of framed byte chunks feeding the write
// task: any number of writers (ChannelInput flushes, CHANNEL_CLOSE/EOF/
// WINDOW_ADJUST emitters) push whole wire-ready frames; the write task is
// the single consumer, draining the whole queue each time it wakes.
type writeQueue struct {
	mu    sync.Mutex
	chunk [][]byte
	eof   bool
	wake  chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{wake: make(chan struct{})}
}

// push enqueues a single whole packet. The write task adds its u32 length
// prefix when it drains the queue, so each entry becomes exactly one frame.
func (q *writeQueue) push(frame []byte) {
	q.pushAll([][]byte{frame})
}

// pushAll enqueues several whole packets as one critical section,
// preserving their relative order against other writers' pushes. Used by
// ChannelInput.Requests to submit a batch of CHANNEL_REQUESTs atomically.
func (q *writeQueue) pushAll(frames [][]byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.eof {
		return
	}
	q.chunk = append(q.chunk, frames...)
	q.notifyLocked()
}

func (q *writeQueue) notifyLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// markEOF marks the queue as finished: no further pushes will be accepted
// and the write task, once it drains what remains, should exit.
func (q *writeQueue) markEOF() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.eof {
		return
	}
	q.eof = true
	q.notifyLocked()
}

// waitForWork blocks until there is data to drain or EOF has been marked,
// then swaps the whole pending vector out under one lock acquisition and
// returns it along with whether EOF was seen.
func (q *writeQueue) waitForWork() (frames [][]byte, isEOF bool) {
	for {
		q.mu.Lock()
		if len(q.chunk) > 0 {
			frames = q.chunk
			q.chunk = nil
			q.mu.Unlock()
			return frames, false
		}
		if q.eof {
			q.mu.Unlock()
			return nil, true
		}
		wake := q.wake
		q.mu.Unlock()
		<-wake
	}
}
