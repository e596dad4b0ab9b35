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

// Request sends a single channel-scoped CHANNEL_REQUEST (e.g. "exec",
// "env", "pty-req", "window-change") after first flushing any buffered
// data, so the request follows that data on the wire. If wantReply is true it blocks for the peer's SUCCESS/FAILURE
// and returns the corresponding Completion; otherwise it returns
// CompletionSuccess immediately, since no response is coming.
func (in *ChannelInput) Request(requestType string, wantReply bool, extra []byte) (Completion, error) {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return CompletionFailed, &Error{Kind: ErrClientClosed, What: "channel input is closed"}
	}
	// Requests must be ordered after any data already buffered so the
	// peer sees them in the sequence the caller issued them.
	if err := in.flushLocked(true); err != nil {
		in.mu.Unlock()
		return CompletionFailed, err
	}
	data := in.ref.data
	in.mu.Unlock()

	if wantReply {
		if err := data.pendingRequests.startNewRequests(1); err != nil {
			return CompletionFailed, err
		}
	}
	data.client.writeQueue.push(encodeChannelRequest(data.peerChannel, requestType, wantReply, extra))
	if !wantReply {
		return CompletionSuccess, nil
	}
	return data.pendingRequests.waitForCompletion(), nil
}

// Requests sends a batch of n channel-scoped requests that all expect a
// reply, as one correlated group: the peer's SUCCESS/FAILURE responses
// are answered in the order the requests were sent, so a single
// aggregate Completion covers the whole batch instead of one per request.
func (in *ChannelInput) Requests(requestType string, extras [][]byte) (Completion, error) {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return CompletionFailed, &Error{Kind: ErrClientClosed, What: "channel input is closed"}
	}
	if err := in.flushLocked(true); err != nil {
		in.mu.Unlock()
		return CompletionFailed, err
	}
	data := in.ref.data
	in.mu.Unlock()

	if len(extras) == 0 {
		return CompletionSuccess, nil
	}
	if err := data.pendingRequests.startNewRequests(len(extras)); err != nil {
		return CompletionFailed, err
	}
	frames := make([][]byte, len(extras))
	for i, extra := range extras {
		frames[i] = encodeChannelRequest(data.peerChannel, requestType, true, extra)
	}
	data.client.writeQueue.pushAll(frames)
	return data.pendingRequests.waitForCompletion(), nil
}
