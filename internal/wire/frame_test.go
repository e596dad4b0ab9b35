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

package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello mux")
	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFrameTrailingGarbageTolerated(t *testing.T) {
	body := PutUint32(nil, 0x80000001)
	body = PutUint32(body, 42)
	body = append(body, []byte("unexpected trailing bytes")...)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, body))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)

	typ, rest, err := GetUint32(got)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x80000001), typ)

	id, rest, err := GetUint32(rest)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), id)
	assert.NotEmpty(t, rest)
}

func TestFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(PutUint32(nil, MaxFrameLen+1))
	_, err := ReadFrame(&buf)
	assert.Error(t, err)
}

func TestStringRoundTrip(t *testing.T) {
	buf := PutString(nil, []byte("/tmp/mux.sock"))
	got, rest, err := GetString(buf)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/mux.sock", string(got))
	assert.Empty(t, rest)
}

func TestNonZeroBytesStripsNUL(t *testing.T) {
	assert.Equal(t, []byte("abc"), NonZeroBytes([]byte("a\x00b\x00c")))
	assert.Equal(t, []byte("abc"), NonZeroBytes([]byte("abc")))
}
