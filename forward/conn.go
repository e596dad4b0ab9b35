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

// Package forward bridges a local listener to channels opened through a
// proxyclient.ProxyClient, the way the mux/ssh command-line layer bridges
// local listeners to an ssh.Client's channels, but aimed at a SOCKS5
// dynamic-forward front end instead of OpenSSH's -D/-L/-R flags.
package forward

import (
	"io"
	"net"
	"time"

	"github.com/trzsz/tsshmux/proxyclient"
)

// channelConn adapts a ChannelInput/ChannelOutput pair to the net.Conn
// interface so it can be handed to code (like go-socks5) that only knows
// how to drive a plain connection.
type channelConn struct {
	in  *proxyclient.ChannelInput
	out *proxyclient.ChannelOutput
	ref *proxyclient.ChannelRef

	leftover []byte
	eof      bool
}

func newChannelConn(in *proxyclient.ChannelInput, out *proxyclient.ChannelOutput, ref *proxyclient.ChannelRef) *channelConn {
	return &channelConn{in: in, out: out, ref: ref}
}

func (c *channelConn) Read(p []byte) (int, error) {
	if len(c.leftover) == 0 {
		if c.eof {
			return 0, io.EOF
		}
		data, isEOF := c.out.Read()
		if len(data) == 0 && isEOF {
			c.eof = true
			return 0, io.EOF
		}
		c.leftover = data
	}
	n := copy(p, c.leftover)
	c.leftover = c.leftover[n:]
	return n, nil
}

func (c *channelConn) Write(p []byte) (int, error) { return c.in.Write(p) }

func (c *channelConn) Close() error {
	_ = c.in.Close()
	_ = c.out.Close()
	c.ref.Release()
	return nil
}

func (c *channelConn) LocalAddr() net.Addr                { return forwardedAddr{} }
func (c *channelConn) RemoteAddr() net.Addr                { return forwardedAddr{} }
func (c *channelConn) SetDeadline(time.Time) error         { return nil }
func (c *channelConn) SetReadDeadline(time.Time) error     { return nil }
func (c *channelConn) SetWriteDeadline(time.Time) error    { return nil }

type forwardedAddr struct{}

func (forwardedAddr) Network() string { return "ssh-channel" }
func (forwardedAddr) String() string  { return "ssh-channel" }
