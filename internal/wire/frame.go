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

// Package wire holds the length-prefixed framing shared by the mux client
// and the proxy client: a big-endian u32 length followed by that many
// payload bytes. Everything past the declared fields is left for the
// caller to ignore, so that new payload fields can be added without
// breaking old readers.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameLen bounds how large a single incoming frame may be before it is
// rejected as malformed. OpenSSH mux frames and proxy channel packets are
// both well under this in practice.
const MaxFrameLen = 256 * 1024 * 1024

// ReadFrame reads one length-prefixed frame from r: a big-endian u32 byte
// count followed by that many bytes. It returns the payload with the
// length prefix stripped.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameLen {
		return nil, fmt.Errorf("wire: frame length %d exceeds maximum %d", n, MaxFrameLen)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload to w prefixed with its big-endian u32 length.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// PutUint32 appends the big-endian encoding of v to buf.
func PutUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

// GetUint32 reads a big-endian u32 from the front of buf, returning the
// value and the remaining bytes. It reports an error if buf is too short.
func GetUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, fmt.Errorf("wire: buffer too short to read uint32 (%d bytes)", len(buf))
	}
	return binary.BigEndian.Uint32(buf[:4]), buf[4:], nil
}

// PutString appends s as a length-prefixed byte string: a big-endian u32
// length followed by the raw bytes.
func PutString(buf []byte, s []byte) []byte {
	buf = PutUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// GetString reads a length-prefixed byte string from the front of buf,
// returning a view into buf and the remaining bytes.
func GetString(buf []byte) ([]byte, []byte, error) {
	n, rest, err := GetUint32(buf)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(rest)) < n {
		return nil, nil, fmt.Errorf("wire: buffer too short to read string of length %d", n)
	}
	return rest[:n], rest[n:], nil
}

// PutBool appends a single-byte boolean.
func PutBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// GetBool reads a single-byte boolean from the front of buf.
func GetBool(buf []byte) (bool, []byte, error) {
	if len(buf) < 1 {
		return false, nil, fmt.Errorf("wire: buffer too short to read bool")
	}
	return buf[0] != 0, buf[1:], nil
}
