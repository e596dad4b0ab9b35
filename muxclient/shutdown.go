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

import "net"

// ShutdownSync performs the Hello + StopListening(request_id=0) exchange
// on a fresh connection to path, on the calling goroutine. It is meant for
// use from places an async call cannot reach, e.g. a finalizer or a
// deferred cleanup right before process exit, and reuses the exact same
// framing as the rest of this package so the two paths cannot drift.
func ShutdownSync(path string) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return ioErr(err)
	}
	defer func() { _ = conn.Close() }()
	return shutdownOverConn(conn)
}

// ShutdownSyncConn lets a caller that already owns a connected Unix-domain
// transport (for instance one it is about to close anyway) perform the same
// shutdown exchange without dialing again.
func ShutdownSyncConn(conn net.Conn) error {
	return shutdownOverConn(conn)
}

func shutdownOverConn(conn net.Conn) error {
	mc := &MuxConnection{conn: conn}
	if err := mc.exchangeHello(); err != nil {
		return err
	}
	return mc.RequestStopListening()
}
