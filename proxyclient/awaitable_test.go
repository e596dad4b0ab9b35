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
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitableCounterAddAndTake(t *testing.T) {
	c := newAwaitableCounter(0)
	require.NoError(t, c.add(5))
	require.NoError(t, c.add(7))
	assert.EqualValues(t, 12, c.take())
	assert.EqualValues(t, 0, c.take())
}

func TestAwaitableCounterOverflowIsError(t *testing.T) {
	c := newAwaitableCounter(0)
	require.NoError(t, c.add(math.MaxUint64))
	assert.Error(t, c.add(1))
}

func TestAwaitableCounterWaitWakesOnAdd(t *testing.T) {
	c := newAwaitableCounter(0)

	got := make(chan uint64, 1)
	go func() {
		v, err := c.waitUntilNonZero()
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.add(7))

	select {
	case v := <-got:
		assert.EqualValues(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by add")
	}
}

func TestAwaitableCounterShutdownReleasesWaiter(t *testing.T) {
	c := newAwaitableCounter(0)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.waitUntilNonZero()
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	c.shutdown()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was not released by shutdown")
	}

	// A writer giving back leftover window after shutdown must not panic.
	require.NoError(t, c.add(1))
	c.shutdown()
}
