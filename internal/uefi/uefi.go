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

// Package uefi describes the subset of the UEFI boot services which stage0
// relies on.
//
// The BootServices and Memory interfaces are implemented by Services on
// GOOS=tamago builds, and by the dummy package for host testing.
package uefi

import (
	"errors"
	"fmt"
)

// PageSize is the UEFI page granularity used by AllocatePages.
const PageSize = 4096

var (
	// ErrProtocolUnavailable is returned when a protocol interface cannot be
	// opened on a handle.
	ErrProtocolUnavailable = errors.New("protocol unavailable")
	// ErrAllocation is returned when firmware cannot grant requested pages.
	ErrAllocation = errors.New("page allocation failed")
	// ErrExitServices is returned when boot services could not be exited.
	ErrExitServices = errors.New("exit boot services failed")
)

// Handle is an opaque EFI_HANDLE.
type Handle uint64

// AllocateType is EFI_ALLOCATE_TYPE.
type AllocateType uint32

const (
	AllocateAnyPages AllocateType = iota
	AllocateMaxAddress
	AllocateAddress
)

func (t AllocateType) String() string {
	switch t {
	case AllocateAnyPages:
		return "AllocateAnyPages"
	case AllocateMaxAddress:
		return "AllocateMaxAddress"
	case AllocateAddress:
		return "AllocateAddress"
	}
	return fmt.Sprintf("AllocateType(%d)", uint32(t))
}

// MemoryType is EFI_MEMORY_TYPE.
type MemoryType uint32

const (
	ReservedMemoryType MemoryType = iota
	LoaderCode
	LoaderData
	BootServicesCode
	BootServicesData
	RuntimeServicesCode
	RuntimeServicesData
	ConventionalMemory
	UnusableMemory
	ACPIReclaimMemory
	ACPIMemoryNVS
	MemoryMappedIO
	MemoryMappedIOPortSpace
	PalCode
	PersistentMemory
)

var memoryTypeNames = []string{
	"Reserved",
	"LoaderCode",
	"LoaderData",
	"BootServicesCode",
	"BootServicesData",
	"RuntimeServicesCode",
	"RuntimeServicesData",
	"Conventional",
	"Unusable",
	"ACPIReclaim",
	"ACPINVS",
	"MMIO",
	"MMIOPortSpace",
	"PalCode",
	"Persistent",
}

func (t MemoryType) String() string {
	if int(t) < len(memoryTypeNames) {
		return memoryTypeNames[t]
	}
	return fmt.Sprintf("MemoryType(%#x)", uint32(t))
}

// LoadedImage holds the fields of EFI_LOADED_IMAGE_PROTOCOL describing where
// firmware placed an image.
type LoadedImage struct {
	ImageBase     uint64
	ImageSize     uint64
	ImageCodeType MemoryType
	ImageDataType MemoryType
}

// MemoryDescriptor is an entry of the firmware memory map.
type MemoryDescriptor struct {
	Type          MemoryType
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

// MemoryMap is a snapshot of the firmware memory map together with the key
// identifying it.
type MemoryMap struct {
	Key         uint64
	Descriptors []MemoryDescriptor
}

//go:generate mockgen -destination mock_uefi/mock_uefi.go github.com/google/stage0/internal/uefi BootServices,Firmware

// BootServices is the set of EFI_BOOT_SERVICES calls used by stage0.
//
// None of these may be called once ExitBootServices has succeeded.
type BootServices interface {
	// AllocatePages requests pages of the given memory type. For
	// AllocateAddress, addr is the exact physical address requested.
	// The physical address of the first allocated page is returned.
	AllocatePages(t AllocateType, m MemoryType, pages int, addr uint64) (uint64, error)
	// OpenLoadedImage opens, with exclusive access, the loaded image
	// protocol installed on h.
	OpenLoadedImage(h Handle) (*LoadedImage, error)
	// GetMemoryMap returns the current memory map.
	GetMemoryMap() (*MemoryMap, error)
	// ExitBootServices terminates boot services, mapKey must be the key of
	// the latest memory map.
	ExitBootServices(h Handle, mapKey uint64) error
}

// Memory provides byte access to physical memory ranges.
type Memory interface {
	// Slice returns the size bytes starting at the physical address addr.
	Slice(addr uint64, size uint64) ([]byte, error)
}

// Firmware is a BootServices implementation which also gives access to the
// memory it manages.
type Firmware interface {
	BootServices
	Memory
}

// Pages returns the number of pages needed to hold size bytes.
func Pages(size uint64) uint64 {
	return (size + PageSize - 1) / PageSize
}
