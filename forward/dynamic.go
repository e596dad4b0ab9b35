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

package forward

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	socks5 "github.com/trzsz/go-socks5"

	"github.com/trzsz/tsshmux/internal/wire"
	"github.com/trzsz/tsshmux/internal/xlog"
	"github.com/trzsz/tsshmux/proxyclient"
)

// directTCPIPChannelType is the RFC 4254 channel type for an outbound
// TCP/IP connection request, the only channel type a SOCKS5 dynamic
// forward ever opens.
const directTCPIPChannelType = "direct-tcpip"

// encodeDirectTCPIP builds the direct-tcpip channel-open extra data:
// destination host/port followed by the address the connection appears to
// originate from, as seen by whatever terminates the channel.
func encodeDirectTCPIP(destHost string, destPort uint32, originHost string, originPort uint32) []byte {
	var buf []byte
	buf = wire.PutString(buf, []byte(destHost))
	buf = wire.PutUint32(buf, destPort)
	buf = wire.PutString(buf, []byte(originHost))
	buf = wire.PutUint32(buf, originPort)
	return buf
}

type noopResolver struct{}

func (noopResolver) Resolve(ctx context.Context, name string) (context.Context, net.IP, error) {
	return ctx, net.IP{}, nil
}

// DynamicForward starts a SOCKS5 listener on listenAddr and, for every
// client connection, opens a direct-tcpip channel on client for the
// requested destination and bridges the two halves together. It returns
// the listener so the caller controls its lifetime (and can Close it to
// stop accepting new connections); in-flight connections are left to
// drain on their own.
func DynamicForward(client *proxyclient.ProxyClient, listenAddr string, timeout time.Duration) (net.Listener, error) {
	dialErr := errors.New("forward: dial failed " + uuid.NewString())

	server, err := socks5.New(&socks5.Config{
		Resolver: noopResolver{},
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, portStr, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, dialErr
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, dialErr
			}

			extra := encodeDirectTCPIP(host, uint32(port), "127.0.0.1", 0)
			in, out, ref, err := openChannelTimeout(client, directTCPIPChannelType, extra, timeout)
			if err != nil {
				xlog.Warningf("dynamic forward dial %s %s failed: %v", network, addr, err)
				return nil, dialErr
			}
			return newChannelConn(in, out, ref), nil
		},
		Logger: log.New(io.Discard, "", log.LstdFlags),
	})
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if isClosedError(err) {
					xlog.Debugf("dynamic forward listener on %s closed", listenAddr)
					return
				}
				xlog.Warningf("dynamic forward accept on %s failed: %v", listenAddr, err)
				return
			}
			go func() {
				if err := server.ServeConn(conn); err != nil && !isClosedError(err) {
					xlog.Debugf("dynamic forward serve failed: %v", err)
				}
			}()
		}
	}()

	return listener, nil
}

func isClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection")
}

// errChannelOpenTimeout is returned by openChannelTimeout when the peer
// does not confirm or reject the channel within the configured timeout.
var errChannelOpenTimeout = errors.New("forward: channel open timed out")

// openChannelTimeout is OpenChannel bounded by timeout (no bound if
// timeout <= 0), the equivalent of the teacher's client.DialTimeout for a
// channel multiplexer that has no native deadline support on OpenChannel
// itself. If the peer answers after the timeout has already been reported
// to the caller, the late channel is closed immediately so its slot isn't
// leaked.
func openChannelTimeout(client *proxyclient.ProxyClient, chanType string, extra []byte, timeout time.Duration) (*proxyclient.ChannelInput, *proxyclient.ChannelOutput, *proxyclient.ChannelRef, error) {
	if timeout <= 0 {
		return client.OpenChannel(chanType, extra)
	}

	type result struct {
		in  *proxyclient.ChannelInput
		out *proxyclient.ChannelOutput
		ref *proxyclient.ChannelRef
		err error
	}
	done := make(chan result, 1)
	go func() {
		in, out, ref, err := client.OpenChannel(chanType, extra)
		done <- result{in, out, ref, err}
	}()

	select {
	case r := <-done:
		return r.in, r.out, r.ref, r.err
	case <-time.After(timeout):
		go func() {
			if r := <-done; r.err == nil {
				_ = r.in.Close()
				_ = r.out.Close()
				r.ref.Release()
			}
		}()
		return nil, nil, nil, errChannelOpenTimeout
	}
}
