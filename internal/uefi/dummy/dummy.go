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

// Package dummy provides a fake UEFI firmware to exercise stage0 on a host.
//
// Physical memory is simulated: every allocation is backed by a Go byte slice
// and addressed through the physical address firmware handed out, so the
// boot pipeline can run unmodified and its effects can be inspected
// afterwards.
package dummy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/golang/glog"
	"github.com/google/stage0/internal/uefi"
)

// DefaultRAM is the conventional memory exposed by New when no other layout
// is given: 1MiB up to 8GiB, which covers the usual stage-1 load address.
var DefaultRAM = []uefi.MemoryDescriptor{
	{
		Type:          uefi.ConventionalMemory,
		PhysicalStart: 0x100000,
		NumberOfPages: (0x200000000 - 0x100000) / uefi.PageSize,
	},
}

// block is a simulated allocation.
type block struct {
	start uint64
	typ   uefi.MemoryType
	mem   []byte
}

func (b *block) end() uint64 {
	return b.start + uint64(len(b.mem))
}

// Firmware is a fake implementation of uefi.Firmware.
type Firmware struct {
	ram    []uefi.MemoryDescriptor
	blocks []*block
	images map[uefi.Handle]*uefi.LoadedImage
	opened map[uefi.Handle]bool

	mapKey uint64
	exited bool

	staleExits int
	exitCalls  int
}

var _ uefi.Firmware = &Firmware{}

// Option configures the fake firmware.
type Option func(*Firmware)

// WithRAM replaces the conventional memory available for allocations.
func WithRAM(ram ...uefi.MemoryDescriptor) Option {
	return func(f *Firmware) {
		f.ram = ram
	}
}

// WithStaleMemoryMap makes the first n ExitBootServices calls fail as if the
// memory map changed after it was fetched.
func WithStaleMemoryMap(n int) Option {
	return func(f *Firmware) {
		f.staleExits = n
	}
}

// New creates a fake firmware instance.
func New(opts ...Option) *Firmware {
	f := &Firmware{
		ram:    DefaultRAM,
		images: make(map[uefi.Handle]*uefi.LoadedImage),
		opened: make(map[uefi.Handle]bool),
		mapKey: 1,
	}

	for _, o := range opts {
		o(f)
	}

	return f
}

// LoadImage places img at base as the firmware image loader would, and
// installs a loaded image protocol for it on h.
func (f *Firmware) LoadImage(h uefi.Handle, base uint64, img []byte) error {
	if base%uefi.PageSize != 0 {
		return fmt.Errorf("image base %#x is not page aligned", base)
	}

	pages := uefi.Pages(uint64(len(img)))

	if _, err := f.allocate(uefi.LoaderCode, base, pages); err != nil {
		return fmt.Errorf("failed to place image at %#x: %w", base, err)
	}

	mem, err := f.Slice(base, uint64(len(img)))
	if err != nil {
		return err
	}
	copy(mem, img)

	f.images[h] = &uefi.LoadedImage{
		ImageBase:     base,
		ImageSize:     uint64(len(img)),
		ImageCodeType: uefi.LoaderCode,
		ImageDataType: uefi.LoaderData,
	}

	return nil
}

// Reserve marks pages starting at addr as used by firmware.
func (f *Firmware) Reserve(addr uint64, pages uint64) error {
	_, err := f.allocate(uefi.BootServicesData, addr, pages)
	return err
}

// Exited reports whether boot services have been exited.
func (f *Firmware) Exited() bool {
	return f.exited
}

// ExitCalls returns the number of ExitBootServices calls received.
func (f *Firmware) ExitCalls() int {
	return f.exitCalls
}

// Allocations returns the simulated allocations sorted by address.
func (f *Firmware) Allocations() []uefi.MemoryDescriptor {
	var r []uefi.MemoryDescriptor
	for _, b := range f.blocks {
		r = append(r, uefi.MemoryDescriptor{
			Type:          b.typ,
			PhysicalStart: b.start,
			NumberOfPages: uint64(len(b.mem)) / uefi.PageSize,
		})
	}
	return r
}

// AllocatePages implements uefi.BootServices.
func (f *Firmware) AllocatePages(t uefi.AllocateType, m uefi.MemoryType, pages int, addr uint64) (uint64, error) {
	if f.exited {
		return 0, uefi.Unsupported
	}

	if pages <= 0 {
		return 0, uefi.InvalidParameter
	}

	n := uint64(pages)

	switch t {
	case uefi.AllocateAnyPages:
		start, ok := f.findFree(n, ^uint64(0))
		if !ok {
			return 0, uefi.OutOfResources
		}
		return f.allocate(m, start, n)
	case uefi.AllocateMaxAddress:
		start, ok := f.findFree(n, addr)
		if !ok {
			return 0, uefi.OutOfResources
		}
		return f.allocate(m, start, n)
	case uefi.AllocateAddress:
		if addr%uefi.PageSize != 0 {
			return 0, uefi.InvalidParameter
		}
		return f.allocate(m, addr, n)
	}

	return 0, uefi.InvalidParameter
}

// OpenLoadedImage implements uefi.BootServices.
func (f *Firmware) OpenLoadedImage(h uefi.Handle) (*uefi.LoadedImage, error) {
	if f.exited {
		return nil, uefi.Unsupported
	}

	li, ok := f.images[h]
	if !ok {
		return nil, uefi.Unsupported
	}

	if f.opened[h] {
		return nil, uefi.AccessDenied
	}
	f.opened[h] = true

	r := *li
	return &r, nil
}

// GetMemoryMap implements uefi.BootServices.
func (f *Firmware) GetMemoryMap() (*uefi.MemoryMap, error) {
	if f.exited {
		return nil, uefi.Unsupported
	}

	m := &uefi.MemoryMap{Key: f.mapKey}
	m.Descriptors = append(m.Descriptors, f.ram...)
	m.Descriptors = append(m.Descriptors, f.Allocations()...)

	return m, nil
}

// ExitBootServices implements uefi.BootServices.
func (f *Firmware) ExitBootServices(h uefi.Handle, mapKey uint64) error {
	f.exitCalls++

	if f.exited {
		return uefi.Unsupported
	}

	if _, ok := f.images[h]; !ok {
		return uefi.InvalidParameter
	}

	if f.staleExits > 0 {
		f.staleExits--
		f.mapKey++
		glog.V(2).Infof("dummy: memory map changed, key now %d", f.mapKey)
	}

	if mapKey != f.mapKey {
		return uefi.InvalidParameter
	}

	f.exited = true
	return nil
}

// Slice implements uefi.Memory, the requested range must be contained in a
// single allocation.
func (f *Firmware) Slice(addr uint64, size uint64) ([]byte, error) {
	end := addr + size
	if end < addr {
		return nil, fmt.Errorf("range %#x+%#x wraps", addr, size)
	}

	for _, b := range f.blocks {
		if addr >= b.start && end <= b.end() {
			return b.mem[addr-b.start : end-b.start], nil
		}
	}

	return nil, fmt.Errorf("range %#x-%#x is not allocated", addr, end)
}

func (f *Firmware) inRAM(start, end uint64) bool {
	for _, r := range f.ram {
		rs := r.PhysicalStart
		re := rs + r.NumberOfPages*uefi.PageSize
		if r.Type == uefi.ConventionalMemory && start >= rs && end <= re {
			return true
		}
	}
	return false
}

func (f *Firmware) overlaps(start, end uint64) bool {
	for _, b := range f.blocks {
		if start < b.end() && b.start < end {
			return true
		}
	}
	return false
}

// findFree returns the lowest page aligned address where n pages fit below
// limit.
func (f *Firmware) findFree(n uint64, limit uint64) (uint64, bool) {
	size := n * uefi.PageSize

	for _, r := range f.ram {
		if r.Type != uefi.ConventionalMemory {
			continue
		}

		start := r.PhysicalStart
		end := start + r.NumberOfPages*uefi.PageSize

		for start+size <= end && start+size-1 <= limit {
			if !f.overlaps(start, start+size) {
				return start, true
			}
			// skip past the block in the way
			for _, b := range f.blocks {
				if start < b.end() && b.start < start+size {
					start = b.end()
				}
			}
		}
	}

	return 0, false
}

func (f *Firmware) allocate(m uefi.MemoryType, start uint64, pages uint64) (uint64, error) {
	size := pages * uefi.PageSize
	end := start + size

	if pages == 0 || end < start {
		return 0, uefi.InvalidParameter
	}

	if !f.inRAM(start, end) || f.overlaps(start, end) {
		return 0, uefi.NotFound
	}

	f.blocks = append(f.blocks, &block{
		start: start,
		typ:   m,
		mem:   make([]byte, size),
	})

	sort.Slice(f.blocks, func(i, j int) bool {
		return f.blocks[i].start < f.blocks[j].start
	})

	f.mapKey++

	return start, nil
}

// ErrNotExited is returned by Departed when the pipeline did not exit boot
// services.
var ErrNotExited = errors.New("boot services were not exited")

// Departed checks that boot services have been exited and returns the bytes
// found at entry, as the next stage would see them.
func (f *Firmware) Departed(entry uint64, size uint64) ([]byte, error) {
	if !f.exited {
		return nil, ErrNotExited
	}
	return f.Slice(entry, size)
}
