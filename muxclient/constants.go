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

// Package muxclient speaks the client side of OpenSSH's local control-socket
// multiplexing protocol (version 4): https://github.com/openssh/openssh-portable/blob/master/PROTOCOL.mux
package muxclient

// Protocol message type discriminants, both directions.
const (
	msgHello          = 0x00000001
	msgNewSession     = 0x10000002
	msgAliveCheck     = 0x10000004
	msgOpenFwd        = 0x10000006
	msgCloseFwd       = 0x10000007
	msgStopListening  = 0x10000009
	msgOk             = 0x80000001
	msgPermDenied     = 0x80000002
	msgFailure        = 0x80000003
	msgExitMessage    = 0x80000004
	msgAlive          = 0x80000005
	msgSessionOpened  = 0x80000006
	msgRemotePort     = 0x80000007
	msgTtyAllocFail   = 0x80000008
)

// ProtocolVersion is the only mux protocol version this client speaks.
const ProtocolVersion = 4

// Forward modes, as sent in an OpenFwd/CloseFwd request.
const (
	FwdLocal   = 1
	FwdRemote  = 2
	FwdDynamic = 3
)

// unixSocketPort is the sentinel port value (-2 as an unsigned 32-bit int)
// that marks a Socket as a Unix-domain path rather than a TCP endpoint.
const unixSocketPort = 0xFFFFFFFE

// DisableEscapeChar is the SessionSpec.EscapeChar value meaning "no escape
// character": U+10FFFF, the largest code point, which can never match a
// typed character.
const DisableEscapeChar = 0x0010FFFF
