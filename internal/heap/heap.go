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

// Package heap sets up a general purpose allocator over pages obtained from
// firmware.
//
// The heap lives in LoaderData pages and is only valid while boot services
// are active. It is never freed: firmware reclaims the pages, together with
// everything else it handed out, once boot services are exited.
package heap

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/google/stage0/internal/uefi"
)

// DefaultPages is the number of pages requested for the heap.
const DefaultPages = 10

// ErrExhausted is returned when the heap cannot satisfy a reservation.
var ErrExhausted = errors.New("heap exhausted")

// Region is an allocator managing a contiguous memory range.
//
// *dma.Region from github.com/usbarmory/tamago satisfies this interface.
type Region interface {
	Reserve(size int, align int) (addr uint, buf []byte)
	Release(addr uint)
}

// RegionFunc creates a Region over mem, which starts at the physical address
// addr.
type RegionFunc func(addr uint64, mem []byte) (Region, error)

// Heap is an allocator over firmware granted pages.
type Heap struct {
	start  uint64
	size   int
	region Region
}

// ReserveRuntime claims the memory of the Go runtime, which firmware knows
// nothing about, as LoaderData so that no later allocation can be placed
// inside it. It must run before any other page allocation.
func ReserveRuntime(fw uefi.Firmware, start uint64, size uint64) error {
	if start%uefi.PageSize != 0 || size == 0 {
		return fmt.Errorf("%w: invalid runtime range %#x+%#x", uefi.ErrAllocation, start, size)
	}

	pages := uefi.Pages(size)

	addr, err := fw.AllocatePages(uefi.AllocateAddress, uefi.LoaderData, int(pages), start)
	if err != nil {
		return fmt.Errorf("%w: runtime memory %#x+%#x is not available: %w", uefi.ErrAllocation, start, size, err)
	}
	if addr != start {
		return fmt.Errorf("%w: runtime memory granted at %#x instead of %#x", uefi.ErrAllocation, addr, start)
	}

	glog.V(1).Infof("heap: runtime memory %#x+%#x reserved", start, size)

	return nil
}

// Bootstrap requests pages of LoaderData memory from firmware and initializes
// an allocator over exactly that range. If newRegion is nil, the platform
// default allocator is used.
func Bootstrap(fw uefi.Firmware, pages int, newRegion RegionFunc) (*Heap, error) {
	if pages <= 0 {
		return nil, fmt.Errorf("invalid heap size of %d pages", pages)
	}

	if newRegion == nil {
		newRegion = defaultRegion
	}

	addr, err := fw.AllocatePages(uefi.AllocateAnyPages, uefi.LoaderData, pages, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %d heap pages: %w", uefi.ErrAllocation, pages, err)
	}

	size := pages * uefi.PageSize

	mem, err := fw.Slice(addr, uint64(size))
	if err != nil {
		return nil, fmt.Errorf("%w: heap at %#x is not addressable: %w", uefi.ErrAllocation, addr, err)
	}

	r, err := newRegion(addr, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize allocator at %#x: %w", addr, err)
	}

	glog.V(1).Infof("heap: %d pages at %#x", pages, addr)

	return &Heap{
		start:  addr,
		size:   size,
		region: r,
	}, nil
}

// Start returns the physical address of the heap.
func (h *Heap) Start() uint64 {
	return h.start
}

// Size returns the heap size in bytes.
func (h *Heap) Size() int {
	return h.size
}

// Alloc reserves size bytes aligned to align, 0 meaning no alignment
// requirement.
func (h *Heap) Alloc(size int, align int) (uint, []byte, error) {
	if size <= 0 || size > h.size {
		return 0, nil, fmt.Errorf("%w: cannot reserve %d bytes out of %d", ErrExhausted, size, h.size)
	}

	addr, buf := h.region.Reserve(size, align)
	if buf == nil {
		return 0, nil, fmt.Errorf("%w: cannot reserve %d bytes", ErrExhausted, size)
	}

	return addr, buf, nil
}

// Free releases a reservation made with Alloc.
func (h *Heap) Free(addr uint) {
	h.region.Release(addr)
}

// Scratch returns a heap over ordinary Go memory, for host tools which parse
// images outside of firmware.
func Scratch(size int) *Heap {
	return &Heap{
		size:   size,
		region: NewArena(0, make([]byte, size)),
	}
}
