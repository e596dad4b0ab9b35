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

package proxyclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySlotReuse(t *testing.T) {
	r := newRegistry()

	a := &ChannelData{}
	slot, ok := r.insert(a)
	require.True(t, ok)
	assert.Same(t, a, r.get(slot))

	r.remove(slot, a)
	assert.Nil(t, r.get(slot))

	b := &ChannelData{}
	slot2, ok := r.insert(b)
	require.True(t, ok)
	assert.Equal(t, slot, slot2)

	// A stale release of the previous occupant must not evict the new one.
	r.remove(slot, a)
	assert.Same(t, b, r.get(slot2))
}

func TestRegistryCapacityBound(t *testing.T) {
	r := newRegistry()
	for i := 0; i < RegistrySize; i++ {
		_, ok := r.insert(&ChannelData{})
		require.True(t, ok)
	}
	_, ok := r.insert(&ChannelData{})
	assert.False(t, ok)
}

func TestRegistryGetOutOfRange(t *testing.T) {
	r := newRegistry()
	assert.Nil(t, r.get(RegistrySize))
	assert.Nil(t, r.get(0xFFFFFFFF))
}
