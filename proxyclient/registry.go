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
	"sync"
)

// registry is a bounded concurrent slot table of fixed capacity
// RegistrySize, indexed by 32-bit slot numbers that double as the
// recipient_channel id we advertise to the peer. It is the only mutable
// global-per-connection structure and the coordination point between
// ChannelRef and the read task.
type registry struct {
	mu    sync.Mutex
	slots [RegistrySize]*ChannelData
	free  []uint32
}

func newRegistry() *registry {
	r := &registry{}
	r.free = make([]uint32, RegistrySize)
	for i := range r.free {
		r.free[i] = uint32(RegistrySize - 1 - i)
	}
	return r
}

// insert allocates a free slot for data and returns its slot number, or
// false if the registry is full.
func (r *registry) insert(data *ChannelData) (slot uint32, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.free) == 0 {
		return 0, false
	}
	slot = r.free[len(r.free)-1]
	r.free = r.free[:len(r.free)-1]
	r.slots[slot] = data
	data.slot = slot
	return slot, true
}

// get returns the ChannelData at slot, or nil if the slot is empty.
func (r *registry) get(slot uint32) *ChannelData {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot >= RegistrySize {
		return nil
	}
	return r.slots[slot]
}

// remove frees slot, but only while it still holds data: a slot number may
// have been freed and reused by a later insert, and a stale holder racing
// its release against that reuse must not evict the new occupant. After
// remove, get(slot) returns nil and the slot number may be reused.
func (r *registry) remove(slot uint32, data *ChannelData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot >= RegistrySize || r.slots[slot] != data {
		return
	}
	r.slots[slot] = nil
	r.free = append(r.free, slot)
}
