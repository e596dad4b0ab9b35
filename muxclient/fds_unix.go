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
	"net"

	"golang.org/x/sys/unix"
)

var errNotUnixConn = errors.New("muxclient: OpenNewSession requires a *net.UnixConn transport for fd passing")

// sendFd sends fd to the peer as a single ancillary (SCM_RIGHTS) message
// carrying one data byte. WriteMsgUnix issues a single sendmsg, retrying
// only while the socket would block; a write that accepts zero of the one
// data byte, or not all of the control data, is reported as an error.
func sendFd(conn *net.UnixConn, fd int) error {
	oob := unix.UnixRights(fd)
	n, oobn, err := conn.WriteMsgUnix([]byte{0}, oob, nil)
	if err != nil {
		return err
	}
	if n == 0 || oobn != len(oob) {
		return errors.New("muxclient: short write while sending file descriptor")
	}
	return nil
}
