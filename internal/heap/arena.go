// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package heap

// Arena is a stack allocator over a byte slice, used where the TamaGo DMA
// allocator is not available (host builds of the emulator and tests).
//
// Releasing the most recent reservation returns its space to the arena,
// releasing anything else is a no-op until everything above it is released.
type Arena struct {
	start uint64
	mem   []byte
	top   int
	used  []span
}

type span struct {
	addr     uint
	from, to int
	released bool
}

// NewArena returns an allocator over mem, which starts at the physical
// address addr.
func NewArena(addr uint64, mem []byte) *Arena {
	return &Arena{start: addr, mem: mem}
}

// Reserve returns size bytes aligned to align, or a nil buffer if the arena
// is exhausted.
func (a *Arena) Reserve(size int, align int) (uint, []byte) {
	if size <= 0 {
		return 0, nil
	}

	off := a.top
	if align > 1 {
		if r := int((a.start + uint64(off)) % uint64(align)); r != 0 {
			off += align - r
		}
	}

	if off+size > len(a.mem) {
		return 0, nil
	}

	addr := uint(a.start) + uint(off)
	a.used = append(a.used, span{addr: addr, from: a.top, to: off + size})
	a.top = off + size

	buf := a.mem[off : off+size : off+size]
	for i := range buf {
		buf[i] = 0
	}

	return addr, buf
}

// Release frees the reservation at addr.
func (a *Arena) Release(addr uint) {
	for i := range a.used {
		if a.used[i].addr == addr {
			a.used[i].released = true
		}
	}

	for n := len(a.used); n > 0 && a.used[n-1].released; n = len(a.used) {
		a.top = a.used[n-1].from
		a.used = a.used[:n-1]
	}
}

// Used returns the number of bytes currently reserved, alignment padding
// included.
func (a *Arena) Used() int {
	return a.top
}
