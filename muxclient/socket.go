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

import "github.com/trzsz/tsshmux/internal/wire"

// Socket is either a Unix-domain path or a TCP host/port endpoint, as used
// on both ends of a forwarding request.
type Socket struct {
	// Path is set for a Unix-domain socket; Host/Port are set for TCP.
	Path string
	Host string
	Port uint32

	unix bool
}

// UnixSocket builds a Socket addressing a Unix-domain path.
func UnixSocket(path string) Socket {
	return Socket{Path: path, unix: true}
}

// TcpSocket builds a Socket addressing a TCP host/port.
func TcpSocket(host string, port uint32) Socket {
	return Socket{Host: host, Port: port}
}

func emptyUnixSocket() Socket {
	return Socket{unix: true}
}

// serialize appends the wire form of s: a length-prefixed address string
// followed by a u32 port, where a Unix socket serializes its path and the
// sentinel port -2.
func (s Socket) serialize(buf []byte) []byte {
	if s.unix {
		buf = wire.PutString(buf, wire.NonZeroBytes([]byte(s.Path)))
		return wire.PutUint32(buf, unixSocketPort)
	}
	buf = wire.PutString(buf, wire.NonZeroBytes([]byte(s.Host)))
	return wire.PutUint32(buf, s.Port)
}

// ForwardKind selects which of the three OpenFwd/CloseFwd shapes a
// ForwardSpec represents.
type ForwardKind int

const (
	ForwardLocal ForwardKind = iota
	ForwardRemote
	ForwardDynamic
)

// ForwardSpec describes a port-forwarding request. Dynamic forwards only
// carry a Listen socket; Connect is padded with an empty Unix socket on
// the wire.
type ForwardSpec struct {
	Kind    ForwardKind
	Listen  Socket
	Connect Socket
}

func (f ForwardSpec) fwdMode() uint32 {
	switch f.Kind {
	case ForwardLocal:
		return FwdLocal
	case ForwardRemote:
		return FwdRemote
	default:
		return FwdDynamic
	}
}

func (f ForwardSpec) connectSocket() Socket {
	if f.Kind == ForwardDynamic {
		return emptyUnixSocket()
	}
	return f.Connect
}
