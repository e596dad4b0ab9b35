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

package muxclient

import "fmt"

// ErrorKind discriminates the category of a mux protocol Error, mirroring
// the single tagged error type used throughout the source this client was
// modeled on.
type ErrorKind int

const (
	ErrUnsupportedMuxProtocol ErrorKind = iota
	ErrInvalidServerResponse
	ErrInvalidPort
	ErrInvalidPid
	ErrUnmatchedRequestId
	ErrUnmatchedSessionId
	ErrIO
	ErrFormat
	ErrRequestFailure
	ErrPermissionDenied
	ErrConnectionConsumed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupportedMuxProtocol:
		return "unsupported mux protocol version"
	case ErrInvalidServerResponse:
		return "invalid server response"
	case ErrInvalidPort:
		return "invalid port"
	case ErrInvalidPid:
		return "invalid pid"
	case ErrUnmatchedRequestId:
		return "unmatched request id"
	case ErrUnmatchedSessionId:
		return "unmatched session id"
	case ErrIO:
		return "io error"
	case ErrFormat:
		return "format error"
	case ErrRequestFailure:
		return "request failure"
	case ErrPermissionDenied:
		return "permission denied"
	case ErrConnectionConsumed:
		return "connection already consumed"
	default:
		return "unknown mux error"
	}
}

// Error is the single tagged error type for every failure this package can
// report.
type Error struct {
	Kind ErrorKind

	// Expected/Observed describe the mismatch for ErrInvalidServerResponse.
	Expected string
	Observed uint32

	// Reason carries the peer-supplied message for ErrRequestFailure and
	// ErrPermissionDenied.
	Reason string

	// Err wraps the underlying I/O or serialization error, if any.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInvalidServerResponse:
		return fmt.Sprintf("mux: invalid server response: expected %s, got message type 0x%08x", e.Expected, e.Observed)
	case ErrRequestFailure:
		return fmt.Sprintf("mux: request failed: %s", e.Reason)
	case ErrPermissionDenied:
		return fmt.Sprintf("mux: permission denied: %s", e.Reason)
	case ErrIO, ErrFormat:
		if e.Err != nil {
			return fmt.Sprintf("mux: %s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("mux: %s", e.Kind)
	default:
		return fmt.Sprintf("mux: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ioErr(err error) *Error {
	return &Error{Kind: ErrIO, Err: err}
}

func formatErr(err error) *Error {
	return &Error{Kind: ErrFormat, Err: err}
}

func invalidResponse(expected string, observed uint32) *Error {
	return &Error{Kind: ErrInvalidServerResponse, Expected: expected, Observed: observed}
}
