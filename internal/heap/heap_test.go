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

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/stage0/internal/uefi"
	"github.com/google/stage0/internal/uefi/dummy"
	"github.com/google/stage0/internal/uefi/mock_uefi"
)

func TestBootstrap(t *testing.T) {
	fw := dummy.New()

	h, err := Bootstrap(fw, DefaultPages, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if got, want := h.Size(), DefaultPages*uefi.PageSize; got != want {
		t.Errorf("Size() = %d, want %d", got, want)
	}

	allocs := fw.Allocations()
	if len(allocs) != 1 {
		t.Fatalf("got %d allocations, want 1", len(allocs))
	}
	if a := allocs[0]; a.Type != uefi.LoaderData || a.PhysicalStart != h.Start() || a.NumberOfPages != DefaultPages {
		t.Errorf("got allocation %+v", a)
	}

	addr, buf, err := h.Alloc(100, 16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if addr%16 != 0 || len(buf) != 100 {
		t.Errorf("Alloc(100, 16) = %#x, %d bytes", addr, len(buf))
	}
	if uint64(addr) < h.Start() || uint64(addr)+100 > h.Start()+uint64(h.Size()) {
		t.Errorf("reservation %#x outside of heap", addr)
	}

	// heap memory is the firmware memory
	buf[0] = 0x5a
	mem, err := fw.Slice(uint64(addr), 1)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if mem[0] != 0x5a {
		t.Error("heap reservation is not backed by firmware pages")
	}
}

func TestBootstrapAllocationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	fw := mock_uefi.NewMockFirmware(ctrl)
	fw.EXPECT().AllocatePages(uefi.AllocateAnyPages, uefi.LoaderData, 10, uint64(0)).Return(uint64(0), uefi.OutOfResources)

	_, err := Bootstrap(fw, 10, nil)
	if !errors.Is(err, uefi.ErrAllocation) {
		t.Fatalf("Bootstrap = %v, want %v", err, uefi.ErrAllocation)
	}
	if !errors.Is(err, uefi.OutOfResources) {
		t.Errorf("Bootstrap = %v, want wrapped %v", err, uefi.OutOfResources)
	}
}

func TestBootstrapInvalidSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	fw := mock_uefi.NewMockFirmware(ctrl)

	if _, err := Bootstrap(fw, 0, nil); err == nil {
		t.Fatal("Bootstrap(0 pages) succeeded")
	}
}

func TestBootstrapRegionFunc(t *testing.T) {
	fw := dummy.New()
	var gotAddr uint64
	var gotLen int

	h, err := Bootstrap(fw, 2, func(addr uint64, mem []byte) (Region, error) {
		gotAddr, gotLen = addr, len(mem)
		return NewArena(addr, mem), nil
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if gotAddr != h.Start() || gotLen != 2*uefi.PageSize {
		t.Errorf("region created over %#x+%d, want %#x+%d", gotAddr, gotLen, h.Start(), 2*uefi.PageSize)
	}

	if _, err := Bootstrap(fw, 1, func(uint64, []byte) (Region, error) {
		return nil, errors.New("boom")
	}); err == nil {
		t.Error("Bootstrap with failing allocator succeeded")
	}
}

func TestAllocExhausted(t *testing.T) {
	h, err := Bootstrap(dummy.New(), 1, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if _, _, err := h.Alloc(uefi.PageSize+1, 0); !errors.Is(err, ErrExhausted) {
		t.Errorf("Alloc(too big) = %v, want %v", err, ErrExhausted)
	}

	addr, _, err := h.Alloc(uefi.PageSize, 0)
	if err != nil {
		t.Fatalf("Alloc(page): %v", err)
	}
	if _, _, err := h.Alloc(1, 0); !errors.Is(err, ErrExhausted) {
		t.Errorf("Alloc(full heap) = %v, want %v", err, ErrExhausted)
	}

	h.Free(addr)
	if _, _, err := h.Alloc(1, 0); err != nil {
		t.Errorf("Alloc after Free: %v", err)
	}
}

func TestReserveRuntime(t *testing.T) {
	const start, size = 0x100000, 16 * uefi.PageSize
	fw := dummy.New()

	if err := ReserveRuntime(fw, start, size); err != nil {
		t.Fatalf("ReserveRuntime: %v", err)
	}

	h, err := Bootstrap(fw, DefaultPages, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	// the lowest free pages would otherwise be picked for the heap
	if end := h.Start() + uint64(h.Size()); h.Start() < start+size && start < end {
		t.Errorf("heap %#x-%#x inside runtime memory %#x-%#x", h.Start(), end, start, start+size)
	}

	allocs := fw.Allocations()
	if len(allocs) != 2 {
		t.Fatalf("got %d allocations, want 2", len(allocs))
	}
	if a := allocs[0]; a.Type != uefi.LoaderData || a.PhysicalStart != start || a.NumberOfPages != 16 {
		t.Errorf("runtime allocation = %+v", a)
	}
}

func TestReserveRuntimeFailures(t *testing.T) {
	for _, test := range []struct {
		desc  string
		start uint64
		size  uint64
		taken bool
	}{
		{
			desc:  "taken",
			start: 0x100000,
			size:  uefi.PageSize,
			taken: true,
		}, {
			desc:  "outside RAM",
			start: 0x400000000,
			size:  uefi.PageSize,
		}, {
			desc:  "unaligned",
			start: 0x100010,
			size:  uefi.PageSize,
		}, {
			desc:  "empty",
			start: 0x100000,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			fw := dummy.New()
			if test.taken {
				if err := fw.Reserve(test.start, 1); err != nil {
					t.Fatalf("Reserve: %v", err)
				}
			}

			if err := ReserveRuntime(fw, test.start, test.size); !errors.Is(err, uefi.ErrAllocation) {
				t.Errorf("ReserveRuntime = %v, want %v", err, uefi.ErrAllocation)
			}
		})
	}
}
