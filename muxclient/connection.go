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
	"io"
	"net"
	"sync/atomic"

	"github.com/trzsz/tsshmux/internal/wire"
)

// MuxConnection is the single owner of a Unix-domain byte stream speaking
// the OpenSSH mux protocol. It serializes requests and correlates
// responses by request_id; exactly one request may be in flight at a time
// outside the session phase. Methods are not cancellation-safe: an
// interrupted call leaves the stream at an undefined read/write position
// and the connection must not be reused afterward.
type MuxConnection struct {
	conn      net.Conn
	requestID uint32
	consumed  atomic.Bool
}

// Connect opens path as a Unix-domain socket, performs the Hello exchange,
// and returns a ready MuxConnection.
func Connect(path string) (*MuxConnection, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, ioErr(err)
	}
	mc := &MuxConnection{conn: conn}
	if err := mc.exchangeHello(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return mc, nil
}

// NewMuxConnection wraps an already-connected transport (e.g. for tests),
// performing the Hello exchange over it.
func NewMuxConnection(conn net.Conn) (*MuxConnection, error) {
	mc := &MuxConnection{conn: conn}
	if err := mc.exchangeHello(); err != nil {
		return nil, err
	}
	return mc, nil
}

// Close closes the underlying stream.
func (c *MuxConnection) Close() error {
	return c.conn.Close()
}

func (c *MuxConnection) checkNotConsumed() error {
	if c.consumed.Load() {
		return &Error{Kind: ErrConnectionConsumed}
	}
	return nil
}

func (c *MuxConnection) nextRequestID() uint32 {
	id := c.requestID
	c.requestID++
	return id
}

// response is a parsed, still-framed mux message: a type tag plus the
// remaining undecoded body.
type response struct {
	msgType uint32
	body    []byte
}

// readResponse implements the framed-read algorithm from §4.1: read the
// u32 length, read that many bytes, split off the leading u32 message
// type, and hand back the rest for the caller to decode further. Trailing
// bytes after any field the caller actually reads are always tolerated.
func (c *MuxConnection) readResponse() (response, error) {
	payload, err := wire.ReadFrame(c.conn)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return response{}, err
		}
		return response{}, ioErr(err)
	}
	msgType, rest, err := wire.GetUint32(payload)
	if err != nil {
		return response{}, formatErr(err)
	}
	return response{msgType: msgType, body: rest}, nil
}

func (c *MuxConnection) writeRequest(body []byte) error {
	if err := wire.WriteFrame(c.conn, body); err != nil {
		return ioErr(err)
	}
	return nil
}

func (c *MuxConnection) exchangeHello() error {
	body := wire.PutUint32(nil, msgHello)
	body = wire.PutUint32(body, ProtocolVersion)
	if err := c.writeRequest(body); err != nil {
		return err
	}

	resp, err := c.readResponse()
	if err != nil {
		return err
	}
	if resp.msgType != msgHello {
		return invalidResponse("Hello", resp.msgType)
	}
	version, _, err := wire.GetUint32(resp.body)
	if err != nil {
		return formatErr(err)
	}
	if version != ProtocolVersion {
		return &Error{Kind: ErrUnsupportedMuxProtocol}
	}
	return nil
}

// AliveCheck pings the master and returns its pid.
func (c *MuxConnection) AliveCheck() (serverPid uint32, err error) {
	if err := c.checkNotConsumed(); err != nil {
		return 0, err
	}
	requestID := c.nextRequestID()

	body := wire.PutUint32(nil, msgAliveCheck)
	body = wire.PutUint32(body, requestID)
	if err := c.writeRequest(body); err != nil {
		return 0, err
	}

	resp, err := c.readResponse()
	if err != nil {
		return 0, err
	}
	if resp.msgType != msgAlive {
		return 0, invalidResponse("Alive", resp.msgType)
	}
	responseID, rest, err := wire.GetUint32(resp.body)
	if err != nil {
		return 0, formatErr(err)
	}
	if responseID != requestID {
		return 0, &Error{Kind: ErrUnmatchedRequestId}
	}
	pid, _, err := wire.GetUint32(rest)
	if err != nil {
		return 0, formatErr(err)
	}
	if pid == 0 {
		return 0, &Error{Kind: ErrInvalidPid}
	}
	return pid, nil
}

// OpenNewSession serializes a NewSession request for spec, attaches the
// three stdio descriptors as ancillary messages, and consumes the
// connection: on success it returns an EstablishedSession, the sole
// remaining use of this MuxConnection's underlying stream.
func (c *MuxConnection) OpenNewSession(spec SessionSpec, stdinFd, stdoutFd, stderrFd int) (*EstablishedSession, error) {
	if err := c.checkNotConsumed(); err != nil {
		return nil, err
	}
	requestID := c.nextRequestID()

	body := wire.PutUint32(nil, msgNewSession)
	body = wire.PutUint32(body, requestID)
	body = wire.PutString(body, nil) // reserved, always empty
	body = spec.serializeFixedFields(body)
	body = wire.PutString(body, wire.NonZeroBytes([]byte(spec.Term)))
	body = wire.PutString(body, wire.NonZeroBytes([]byte(spec.Cmd)))

	if err := c.writeRequest(body); err != nil {
		return nil, err
	}

	unixConn, ok := c.conn.(*net.UnixConn)
	if !ok {
		return nil, ioErr(errNotUnixConn)
	}
	for _, fd := range []int{stdinFd, stdoutFd, stderrFd} {
		if err := sendFd(unixConn, fd); err != nil {
			return nil, ioErr(err)
		}
	}

	resp, err := c.readResponse()
	if err != nil {
		return nil, err
	}

	switch resp.msgType {
	case msgSessionOpened:
		responseID, rest, err := wire.GetUint32(resp.body)
		if err != nil {
			return nil, formatErr(err)
		}
		if responseID != requestID {
			return nil, &Error{Kind: ErrUnmatchedRequestId}
		}
		sessionID, _, err := wire.GetUint32(rest)
		if err != nil {
			return nil, formatErr(err)
		}
		c.consumed.Store(true)
		return &EstablishedSession{conn: c, SessionID: sessionID}, nil

	case msgPermDenied:
		responseID, reason, err := readReasonResponse(resp.body)
		if err != nil {
			return nil, err
		}
		if responseID != requestID {
			return nil, &Error{Kind: ErrUnmatchedRequestId}
		}
		return nil, &Error{Kind: ErrPermissionDenied, Reason: reason}

	case msgFailure:
		responseID, reason, err := readReasonResponse(resp.body)
		if err != nil {
			return nil, err
		}
		if responseID != requestID {
			return nil, &Error{Kind: ErrUnmatchedRequestId}
		}
		return nil, &Error{Kind: ErrRequestFailure, Reason: reason}

	default:
		return nil, invalidResponse("SessionOpened, PermissionDenied or Failure", resp.msgType)
	}
}

// Sftp is a convenience equal to OpenNewSession with subsystem=true,
// cmd="sftp", term="".
func (c *MuxConnection) Sftp(stdinFd, stdoutFd, stderrFd int) (*EstablishedSession, error) {
	return c.OpenNewSession(SftpSpec(), stdinFd, stdoutFd, stderrFd)
}

func readReasonResponse(body []byte) (responseID uint32, reason string, err error) {
	responseID, rest, err := wire.GetUint32(body)
	if err != nil {
		return 0, "", formatErr(err)
	}
	reasonBytes, _, err := wire.GetString(rest)
	if err != nil {
		return 0, "", formatErr(err)
	}
	return responseID, string(reasonBytes), nil
}

// okOrFailure reads an Ok|PermissionDenied|Failure response and validates
// its response id against requestID.
func (c *MuxConnection) okOrFailure(requestID uint32) error {
	resp, err := c.readResponse()
	if err != nil {
		return err
	}
	switch resp.msgType {
	case msgOk:
		responseID, _, err := wire.GetUint32(resp.body)
		if err != nil {
			return formatErr(err)
		}
		if responseID != requestID {
			return &Error{Kind: ErrUnmatchedRequestId}
		}
		return nil
	case msgPermDenied:
		responseID, reason, err := readReasonResponse(resp.body)
		if err != nil {
			return err
		}
		if responseID != requestID {
			return &Error{Kind: ErrUnmatchedRequestId}
		}
		return &Error{Kind: ErrPermissionDenied, Reason: reason}
	case msgFailure:
		responseID, reason, err := readReasonResponse(resp.body)
		if err != nil {
			return err
		}
		if responseID != requestID {
			return &Error{Kind: ErrUnmatchedRequestId}
		}
		return &Error{Kind: ErrRequestFailure, Reason: reason}
	default:
		return invalidResponse("Ok, PermissionDenied or Failure", resp.msgType)
	}
}

func (c *MuxConnection) writeFwdRequest(msgType uint32, requestID uint32, f ForwardSpec) error {
	body := wire.PutUint32(nil, msgType)
	body = wire.PutUint32(body, requestID)
	body = wire.PutUint32(body, f.fwdMode())
	body = f.Listen.serialize(body)
	body = f.connectSocket().serialize(body)
	return c.writeRequest(body)
}

// RequestPortForward asks the master to establish f.
func (c *MuxConnection) RequestPortForward(f ForwardSpec) error {
	if err := c.checkNotConsumed(); err != nil {
		return err
	}
	requestID := c.nextRequestID()
	if err := c.writeFwdRequest(msgOpenFwd, requestID, f); err != nil {
		return err
	}
	return c.okOrFailure(requestID)
}

// ClosePortForward asks the master to tear down f. Some masters do not
// implement CloseFwd and will reply Failure; callers should be prepared
// for that.
func (c *MuxConnection) ClosePortForward(f ForwardSpec) error {
	if err := c.checkNotConsumed(); err != nil {
		return err
	}
	requestID := c.nextRequestID()
	if err := c.writeFwdRequest(msgCloseFwd, requestID, f); err != nil {
		return err
	}
	return c.okOrFailure(requestID)
}

// RequestDynamicForward opens a dynamically-allocated remote listener on
// listen and returns the port the master chose.
func (c *MuxConnection) RequestDynamicForward(listen Socket) (remotePort uint32, err error) {
	if err := c.checkNotConsumed(); err != nil {
		return 0, err
	}
	requestID := c.nextRequestID()
	f := ForwardSpec{Kind: ForwardDynamic, Listen: listen}
	if err := c.writeFwdRequest(msgOpenFwd, requestID, f); err != nil {
		return 0, err
	}

	resp, err := c.readResponse()
	if err != nil {
		return 0, err
	}
	switch resp.msgType {
	case msgRemotePort:
		responseID, rest, err := wire.GetUint32(resp.body)
		if err != nil {
			return 0, formatErr(err)
		}
		if responseID != requestID {
			return 0, &Error{Kind: ErrUnmatchedRequestId}
		}
		port, _, err := wire.GetUint32(rest)
		if err != nil {
			return 0, formatErr(err)
		}
		if port == 0 {
			return 0, &Error{Kind: ErrInvalidPort}
		}
		return port, nil
	case msgPermDenied:
		responseID, reason, err := readReasonResponse(resp.body)
		if err != nil {
			return 0, err
		}
		if responseID != requestID {
			return 0, &Error{Kind: ErrUnmatchedRequestId}
		}
		return 0, &Error{Kind: ErrPermissionDenied, Reason: reason}
	case msgFailure:
		responseID, reason, err := readReasonResponse(resp.body)
		if err != nil {
			return 0, err
		}
		if responseID != requestID {
			return 0, &Error{Kind: ErrUnmatchedRequestId}
		}
		return 0, &Error{Kind: ErrRequestFailure, Reason: reason}
	default:
		return 0, invalidResponse("RemotePort, PermissionDenied or Failure", resp.msgType)
	}
}

// RequestStopListening asks the master to stop accepting new multiplexing
// connections and remove its listener socket.
func (c *MuxConnection) RequestStopListening() error {
	if err := c.checkNotConsumed(); err != nil {
		return err
	}
	requestID := c.nextRequestID()
	body := wire.PutUint32(nil, msgStopListening)
	body = wire.PutUint32(body, requestID)
	if err := c.writeRequest(body); err != nil {
		return err
	}
	return c.okOrFailure(requestID)
}
