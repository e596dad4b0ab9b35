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

// Package proxyclient speaks the SSH connection-layer protocol (RFC 4254
// channels) directly over a byte stream, multiplexing many logical
// channels over one transport with per-channel flow control and
// end-to-end backpressure.
package proxyclient

// SSH connection-layer packet type discriminants (u8).
const (
	MsgGlobalRequest          = 80
	MsgRequestSuccess         = 81
	MsgRequestFailure         = 82
	MsgChannelOpen            = 90
	MsgChannelOpenConfirm     = 91
	MsgChannelOpenFailure     = 92
	MsgChannelWindowAdjust    = 93
	MsgChannelData            = 94
	MsgChannelExtendedData    = 95
	MsgChannelEOF             = 96
	MsgChannelClose           = 97
	MsgChannelRequest         = 98
	MsgChannelSuccess         = 99
	MsgChannelFailure         = 100
)

// ExtendedDataStderr is the only extended-data type code this protocol
// defines.
const ExtendedDataStderr = 1

// Channel-open failure reason codes.
const (
	OpenAdministrativelyProhibited = 1
	OpenConnectFailed              = 2
	OpenUnknownChannelType         = 3
	OpenResourceShortage           = 4
)

func openFailureReasonString(code uint32) string {
	switch code {
	case OpenAdministrativelyProhibited:
		return "administratively prohibited"
	case OpenConnectFailed:
		return "connect failed"
	case OpenUnknownChannelType:
		return "unknown channel type"
	case OpenResourceShortage:
		return "resource shortage"
	default:
		return "unknown"
	}
}

// RegistrySize is the fixed channel-table capacity, matching the 64-slot
// concurrent arena this design was modeled on.
const RegistrySize = 64

// MaxWriteVectors caps how many buffered chunks the write task will hand
// to a single vectored-write syscall before looping again.
const MaxWriteVectors = 1024
