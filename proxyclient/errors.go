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

import "fmt"

// ErrorKind discriminates the category of a proxy-client Error.
type ErrorKind int

const (
	ErrIO ErrorKind = iota
	ErrFormat
	ErrInvalidResponse
	ErrUnexpectedChannelState
	ErrInvalidRecipientChannel
	ErrInvalidSenderChannel
	ErrDuplicateSenderChannel
	ErrUnexpectedRequestResponse
	ErrChannelOpenFailure
	ErrTaskJoin
	ErrClientClosed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrIO:
		return "io error"
	case ErrFormat:
		return "format error"
	case ErrInvalidResponse:
		return "invalid response"
	case ErrUnexpectedChannelState:
		return "unexpected channel state"
	case ErrInvalidRecipientChannel:
		return "invalid recipient channel"
	case ErrInvalidSenderChannel:
		return "invalid sender channel"
	case ErrDuplicateSenderChannel:
		return "duplicate sender channel"
	case ErrUnexpectedRequestResponse:
		return "unexpected request response"
	case ErrChannelOpenFailure:
		return "channel open failure"
	case ErrTaskJoin:
		return "task join error"
	case ErrClientClosed:
		return "client closed"
	default:
		return "unknown proxy client error"
	}
}

// Error is the single tagged error type for every failure this package can
// report.
type Error struct {
	Kind ErrorKind

	What           string
	ExpectedState  ChannelState
	ActualState    ChannelState
	ChannelID      uint32
	OpenCode       uint32
	OpenReason     string
	OpenLanguage   string

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInvalidResponse:
		return fmt.Sprintf("proxyclient: invalid response: %s", e.What)
	case ErrUnexpectedChannelState:
		if e.What != "" {
			return fmt.Sprintf("proxyclient: unexpected channel state: %s", e.What)
		}
		return fmt.Sprintf("proxyclient: unexpected channel state: expected %s, got %s", e.ExpectedState, e.ActualState)
	case ErrInvalidRecipientChannel:
		return fmt.Sprintf("proxyclient: invalid recipient channel %d", e.ChannelID)
	case ErrInvalidSenderChannel:
		return fmt.Sprintf("proxyclient: invalid sender channel %d", e.ChannelID)
	case ErrDuplicateSenderChannel:
		return fmt.Sprintf("proxyclient: duplicate sender channel %d", e.ChannelID)
	case ErrChannelOpenFailure:
		return fmt.Sprintf("proxyclient: channel open failed (%s): %s", openFailureReasonString(e.OpenCode), e.OpenReason)
	case ErrIO, ErrFormat, ErrTaskJoin:
		if e.Err != nil {
			return fmt.Sprintf("proxyclient: %s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("proxyclient: %s", e.Kind)
	default:
		return fmt.Sprintf("proxyclient: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func ioErr(err error) *Error     { return &Error{Kind: ErrIO, Err: err} }
func formatErr(err error) *Error { return &Error{Kind: ErrFormat, Err: err} }
