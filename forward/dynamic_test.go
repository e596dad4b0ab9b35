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
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trzsz/tsshmux/internal/wire"
)

func TestEncodeDirectTCPIP(t *testing.T) {
	extra := encodeDirectTCPIP("example.com", 443, "127.0.0.1", 5000)

	host, rest, err := wire.GetString(extra)
	require.NoError(t, err)
	require.Equal(t, "example.com", string(host))

	port, rest, err := wire.GetUint32(rest)
	require.NoError(t, err)
	require.EqualValues(t, 443, port)

	origin, rest, err := wire.GetString(rest)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", string(origin))

	originPort, _, err := wire.GetUint32(rest)
	require.NoError(t, err)
	require.EqualValues(t, 5000, originPort)
}
