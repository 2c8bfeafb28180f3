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

// Package load reserves the fixed destination of the next stage and copies
// it there.
package load

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/google/stage0/internal/uefi"
)

var (
	// ErrInvalidAddressFormat is returned when a load address is not a
	// 0x-prefixed hexadecimal number fitting in 64 bits.
	ErrInvalidAddressFormat = errors.New("invalid address format")
	// ErrOverlap is returned when the destination intersects a range which
	// must be preserved until handoff.
	ErrOverlap = errors.New("destination overlaps reserved range")
	// ErrTooLarge is returned when the source does not fit the destination.
	ErrTooLarge = errors.New("source exceeds destination")
)

// ParseAddress parses a 0x (or 0X) prefixed hexadecimal address.
func ParseAddress(s string) (uint64, error) {
	digits, ok := strings.CutPrefix(s, "0x")
	if !ok {
		digits, ok = strings.CutPrefix(s, "0X")
	}
	if !ok || len(digits) == 0 {
		return 0, fmt.Errorf("%w: %q lacks a 0x prefix", ErrInvalidAddressFormat, s)
	}

	addr, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAddressFormat, s, err)
	}

	return addr, nil
}

// Range is a physical address range.
type Range struct {
	Start uint64
	Size  uint64
}

// End returns the first address past r.
func (r Range) End() uint64 {
	return r.Start + r.Size
}

// Overlaps reports whether r and o share at least one byte.
func (r Range) Overlaps(o Range) bool {
	if r.Size == 0 || o.Size == 0 {
		return false
	}
	return r.Start < o.End() && o.Start < r.End()
}

func (r Range) String() string {
	return fmt.Sprintf("[%#x-%#x)", r.Start, r.End())
}

// Target is the fixed destination of the next stage.
type Target struct {
	// Address is the page aligned physical load address.
	Address uint64
	// Size is the number of bytes to load.
	Size uint64
	// Pages is the number of pages covering Size.
	Pages uint64
}

// NewTarget returns the destination for size bytes loaded at addr.
func NewTarget(addr uint64, size uint64) (Target, error) {
	if addr%uefi.PageSize != 0 {
		return Target{}, fmt.Errorf("%w: load address %#x is not page aligned", ErrInvalidAddressFormat, addr)
	}

	if size == 0 {
		return Target{}, errors.New("nothing to load")
	}

	pages := uefi.Pages(size)
	if addr+pages*uefi.PageSize < addr {
		return Target{}, fmt.Errorf("load range %#x+%#x wraps around", addr, size)
	}

	return Target{
		Address: addr,
		Size:    size,
		Pages:   pages,
	}, nil
}

// Range returns the pages covered by t.
func (t Target) Range() Range {
	return Range{Start: t.Address, Size: t.Pages * uefi.PageSize}
}

// Region is firmware memory reserved for the next stage.
type Region struct {
	addr uint64
	mem  []byte
}

// Address returns the physical address of r.
func (r *Region) Address() uint64 {
	return r.addr
}

// Cap returns the capacity of r in bytes.
func (r *Region) Cap() int {
	return len(r.mem)
}

// Bytes returns the contents of r.
func (r *Region) Bytes() []byte {
	return r.mem
}

// Allocate reserves the pages of t as LoaderData.
//
// The destination must not intersect any of the reserved ranges. Firmware is
// asked for exactly t.Address, there is no fallback to another address.
func Allocate(fw uefi.Firmware, t Target, reserved ...Range) (*Region, error) {
	want := t.Range()

	for _, r := range reserved {
		if want.Overlaps(r) {
			return nil, fmt.Errorf("%w: %w: %s and %s", uefi.ErrAllocation, ErrOverlap, want, r)
		}
	}

	addr, err := fw.AllocatePages(uefi.AllocateAddress, uefi.LoaderData, int(t.Pages), t.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %d pages at %#x: %w", uefi.ErrAllocation, t.Pages, t.Address, err)
	}

	if addr != t.Address {
		return nil, fmt.Errorf("%w: firmware returned %#x instead of %#x", uefi.ErrAllocation, addr, t.Address)
	}

	mem, err := fw.Slice(addr, want.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", uefi.ErrAllocation, err)
	}

	glog.V(1).Infof("load: reserved %d pages (%s) at %#x", t.Pages, humanize.IBytes(want.Size), addr)

	return &Region{addr: addr, mem: mem}, nil
}

// Relocate copies src verbatim to the start of dst and returns the number of
// bytes copied.
func Relocate(dst *Region, src []byte) (int, error) {
	if len(src) > dst.Cap() {
		return 0, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(src), dst.Cap())
	}

	n := copy(dst.mem, src)

	glog.V(1).Infof("load: copied %s to %#x", humanize.IBytes(uint64(n)), dst.addr)

	return n, nil
}
