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

import (
	"errors"
	"io"
	"os"

	"github.com/trzsz/tsshmux/internal/wire"
)

// SessionSpec describes a NewSession request. Cmd is required. The fields
// are sent as they are: NewSessionSpec fills Term from $TERM and sets
// EscapeChar to DisableEscapeChar (no escape character), while a
// SessionSpec built by hand sends whatever Term and EscapeChar it holds.
type SessionSpec struct {
	Tty            bool
	X11Forwarding  bool
	Agent          bool
	Subsystem      bool
	EscapeChar     uint32
	Term           string
	Cmd            string
}

// NewSessionSpec returns a SessionSpec with the protocol defaults: every
// flag false, EscapeChar disabled, Term taken from the environment.
func NewSessionSpec(cmd string) SessionSpec {
	term := os.Getenv("TERM")
	return SessionSpec{
		EscapeChar: DisableEscapeChar,
		Term:       term,
		Cmd:        cmd,
	}
}

// SftpSpec returns the SessionSpec OpenNewSession's Sftp convenience uses:
// subsystem mode running "sftp" with no term.
func SftpSpec() SessionSpec {
	return SessionSpec{
		EscapeChar: DisableEscapeChar,
		Subsystem:  true,
		Cmd:        "sftp",
	}
}

func (s SessionSpec) serializeFixedFields(buf []byte) []byte {
	buf = wire.PutBool(buf, s.Tty)
	buf = wire.PutBool(buf, s.X11Forwarding)
	buf = wire.PutBool(buf, s.Agent)
	buf = wire.PutBool(buf, s.Subsystem)
	return wire.PutUint32(buf, s.EscapeChar)
}

// SessionStatus is the terminal outcome of an EstablishedSession: either a
// TTY allocation failure notice (the session is still alive after this) or
// the process exit value.
type SessionStatus struct {
	TtyAllocFailed bool
	Exited         bool
	ExitValue      *uint32
}

// EstablishedSession is what OpenNewSession returns: a MuxConnection that
// has been consumed and is now a passive reader waiting for TtyAllocFail
// and/or ExitMessage, keyed by SessionID.
type EstablishedSession struct {
	conn      *MuxConnection
	SessionID uint32
}

// WaitError carries the still-usable session alongside the error that
// interrupted Wait, so the caller may retry after a transient read error
// exactly as the source's session.rs allows.
type WaitError struct {
	Session *EstablishedSession
	Err     error
}

func (e *WaitError) Error() string { return e.Err.Error() }
func (e *WaitError) Unwrap() error { return e.Err }

// Wait blocks until the session produces a terminal or tty-alloc-fail
// event. On TtyAllocFail it returns immediately with TtyAllocFailed=true
// so the caller can reset its local terminal to cooked mode and then call
// Wait again to keep waiting for the exit. On error it returns a WaitError
// wrapping this same session so the caller may retry.
func (s *EstablishedSession) Wait() (SessionStatus, error) {
	resp, err := s.conn.readResponse()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return SessionStatus{Exited: true, ExitValue: nil}, nil
		}
		return SessionStatus{}, &WaitError{Session: s, Err: err}
	}

	switch resp.msgType {
	case msgTtyAllocFail:
		sessionID, _, err := wire.GetUint32(resp.body)
		if err != nil {
			return SessionStatus{}, &WaitError{Session: s, Err: formatErr(err)}
		}
		if sessionID != s.SessionID {
			return SessionStatus{}, &WaitError{Session: s, Err: &Error{Kind: ErrUnmatchedSessionId}}
		}
		return SessionStatus{TtyAllocFailed: true}, nil

	case msgExitMessage:
		sessionID, rest, err := wire.GetUint32(resp.body)
		if err != nil {
			return SessionStatus{}, &WaitError{Session: s, Err: formatErr(err)}
		}
		if sessionID != s.SessionID {
			return SessionStatus{}, &WaitError{Session: s, Err: &Error{Kind: ErrUnmatchedSessionId}}
		}
		exitValue, _, err := wire.GetUint32(rest)
		if err != nil {
			return SessionStatus{}, &WaitError{Session: s, Err: formatErr(err)}
		}
		return SessionStatus{Exited: true, ExitValue: &exitValue}, nil

	default:
		return SessionStatus{}, &WaitError{Session: s, Err: invalidResponse("TtyAllocFail or ExitMessage", resp.msgType)}
	}
}
