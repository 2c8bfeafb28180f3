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
//go:build linux

package memmap

import (
	"fmt"

	"github.com/google/stage0/internal/load"
	"github.com/google/stage0/internal/uefi"
	"github.com/u-root/u-root/pkg/boot/kexec"
)

// rangeType maps firmware memory types onto the kexec ones, types kexec has
// no equivalent for keep their firmware name.
func rangeType(t uefi.MemoryType) kexec.RangeType {
	switch t {
	case uefi.ConventionalMemory:
		return kexec.RangeRAM
	case uefi.ACPIReclaimMemory:
		return kexec.RangeACPI
	case uefi.ACPIMemoryNVS:
		return kexec.RangeNVS
	case uefi.ReservedMemoryType, uefi.UnusableMemory:
		return kexec.RangeReserved
	}
	return kexec.RangeType(t.String())
}

// FromUEFI converts firmware memory descriptors. Where descriptors overlap
// the later one wins, so allocations listed after the RAM they were carved
// from take precedence.
func FromUEFI(descs []uefi.MemoryDescriptor) kexec.MemoryMap {
	var mm kexec.MemoryMap
	for _, d := range descs {
		if d.NumberOfPages == 0 {
			continue
		}
		mm.Insert(kexec.TypedRange{
			Range: kexec.Range{Start: uintptr(d.PhysicalStart), Size: uint(d.NumberOfPages * uefi.PageSize)},
			Type:  rangeType(d.Type),
		})
	}
	return mm
}

// Place reports where r falls within the memory described by descs.
func Place(descs []uefi.MemoryDescriptor, r load.Range) (*Placement, error) {
	mm := FromUEFI(descs)
	want := kexec.Range{Start: uintptr(r.Start), Size: uint(r.Size)}

	p := &Placement{Target: r}
	unmapped := kexec.Ranges{want}
	for _, tr := range mm {
		i := tr.Range.Intersect(want)
		if i == nil {
			continue
		}
		p.Regions = append(p.Regions, Region{
			Range: load.Range{Start: uint64(i.Start), Size: uint64(i.Size)},
			Type:  tr.Type.String(),
		})
		unmapped = unmapped.Minus(*i)
	}

	if len(unmapped) != 0 {
		return p, fmt.Errorf("%w: %s", ErrUnmapped, unmapped)
	}

	for _, ram := range mm.RAM() {
		if ram.IsSupersetOf(want) {
			p.Free = true
		}
	}

	return p, nil
}
