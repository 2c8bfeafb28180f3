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

//go:build tamago && amd64

package uefi

import (
	"errors"
	"fmt"
	"unsafe"
)

// EFI System Table offsets
const (
	conOut       = 0x40
	bootServices = 0x60
)

// EFI Boot Services offsets
const (
	allocatePages    = 0x28
	getMemoryMap     = 0x38
	exit             = 0xd8
	exitBootServices = 0xe8
	openProtocol     = 0x118
)

// EFI Loaded Image Protocol offsets
const (
	imageBase     = 0x40
	imageSize     = 0x48
	imageCodeType = 0x50
	imageDataType = 0x54
)

const openProtocolExclusive = 0x20

// EFI_LOADED_IMAGE_PROTOCOL_GUID 5b1b31a1-9562-11d2-8e3f-00a0c969723b
var loadedImageProtocolGUID = [16]byte{
	0xa1, 0x31, 0x1b, 0x5b, 0x62, 0x95, 0xd2, 0x11,
	0x8e, 0x3f, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b,
}

// memoryDescriptorSlack is the number of extra descriptors reserved when
// sizing the memory map buffer, allocations made between sizing and fetching
// may split existing entries.
const memoryDescriptorSlack = 8

// defined in call_amd64.s
func callService(fn uint64, args *[6]uint64) uint64

// outputs holds every value passed to firmware by address. Firmware only
// sees integers, so these must never live on a goroutine stack, which may
// move: they are allocated once on the heap.
type outputs struct {
	guid        [16]byte
	addr        uint64
	iface       uint64
	size        uint64
	key         uint64
	descSize    uint64
	descVersion uint32
}

// Services implements Firmware by calling the UEFI boot services through the
// tables passed by firmware to the image entry point.
type Services struct {
	imageHandle uint64
	systemTable uint64
	base        uint64

	out    *outputs
	mapBuf []byte
	exited bool
}

// New returns the boot services reachable from the EFI System Table.
func New(imageHandle Handle, systemTable uint64) (*Services, error) {
	if imageHandle == 0 || systemTable == 0 {
		return nil, errors.New("invalid image handle or system table")
	}

	s := &Services{
		imageHandle: uint64(imageHandle),
		systemTable: systemTable,
		base:        read64(systemTable + bootServices),
		out:         new(outputs),
	}

	if s.base == 0 {
		return nil, errors.New("system table has no boot services")
	}

	return s, nil
}

func (s *Services) call(offset uint64, args ...uint64) uint64 {
	var a [6]uint64
	copy(a[:], args)
	return callService(s.base+offset, &a)
}

func (s *Services) check() error {
	if s.exited {
		return errors.New("boot services have been exited")
	}
	return nil
}

// AllocatePages calls EFI_BOOT_SERVICES.AllocatePages().
func (s *Services) AllocatePages(t AllocateType, m MemoryType, pages int, addr uint64) (uint64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}

	s.out.addr = addr
	status := s.call(allocatePages,
		uint64(t),
		uint64(m),
		uint64(pages),
		ptrval(unsafe.Pointer(&s.out.addr)),
	)

	return s.out.addr, parseStatus(status)
}

// OpenLoadedImage calls EFI_BOOT_SERVICES.OpenProtocol() for
// EFI_LOADED_IMAGE_PROTOCOL with EFI_OPEN_PROTOCOL_EXCLUSIVE.
func (s *Services) OpenLoadedImage(h Handle) (*LoadedImage, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	s.out.guid = loadedImageProtocolGUID
	s.out.iface = 0

	status := s.call(openProtocol,
		uint64(h),
		ptrval(unsafe.Pointer(&s.out.guid[0])),
		ptrval(unsafe.Pointer(&s.out.iface)),
		s.imageHandle,
		0,
		openProtocolExclusive,
	)

	if err := parseStatus(status); err != nil {
		return nil, err
	}

	iface := s.out.iface
	if iface == 0 {
		return nil, NotFound
	}

	return &LoadedImage{
		ImageBase:     read64(iface + imageBase),
		ImageSize:     read64(iface + imageSize),
		ImageCodeType: MemoryType(read32(iface + imageCodeType)),
		ImageDataType: MemoryType(read32(iface + imageDataType)),
	}, nil
}

// GetMemoryMap calls EFI_BOOT_SERVICES.GetMemoryMap().
//
// The buffer is owned by the Go runtime and reused across calls, so fetching
// the map again after a failed ExitBootServices() does not allocate firmware
// memory.
func (s *Services) GetMemoryMap() (*MemoryMap, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	out := s.out

	for {
		out.size = uint64(len(s.mapBuf))
		out.key, out.descSize, out.descVersion = 0, 0, 0

		var buf uint64
		if out.size > 0 {
			buf = ptrval(unsafe.Pointer(&s.mapBuf[0]))
		}

		status := s.call(getMemoryMap,
			ptrval(unsafe.Pointer(&out.size)),
			buf,
			ptrval(unsafe.Pointer(&out.key)),
			ptrval(unsafe.Pointer(&out.descSize)),
			ptrval(unsafe.Pointer(&out.descVersion)),
		)

		err := parseStatus(status)

		if errors.Is(err, BufferTooSmall) {
			s.mapBuf = make([]byte, out.size+memoryDescriptorSlack*out.descSize)
			continue
		}

		if err != nil {
			return nil, err
		}

		return decodeMemoryMap(s.mapBuf, out.size, out.key, out.descSize)
	}
}

// ExitBootServices calls EFI_BOOT_SERVICES.ExitBootServices().
func (s *Services) ExitBootServices(h Handle, mapKey uint64) error {
	if err := s.check(); err != nil {
		return err
	}

	status := s.call(exitBootServices, uint64(h), mapKey)

	if err := parseStatus(status); err != nil {
		return err
	}

	s.exited = true

	return nil
}

// Exit calls EFI_BOOT_SERVICES.Exit() returning control, and status, to the
// firmware.
func (s *Services) Exit(status Status) error {
	if err := s.check(); err != nil {
		return err
	}

	return parseStatus(s.call(exit, s.imageHandle, uint64(status), 0, 0))
}

// Slice returns a byte slice over physical memory, which is identity mapped
// while boot services are active.
func (s *Services) Slice(addr uint64, size uint64) ([]byte, error) {
	if addr == 0 {
		return nil, errors.New("invalid address")
	}

	if addr+size < addr || size > uint64(^uint(0)>>1) {
		return nil, fmt.Errorf("invalid range %#x+%#x", addr, size)
	}

	return unsafe.Slice((*byte)(physical(addr)), int(size)), nil
}

// ConsoleOut returns the address of EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.
func (s *Services) ConsoleOut() uint64 {
	return read64(s.systemTable + conOut)
}

func ptrval(p unsafe.Pointer) uint64 {
	return uint64(uintptr(p))
}

// physical returns a pointer to firmware memory at addr, which is identity
// mapped and never part of the Go heap.
func physical(addr uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr))
}

func read64(addr uint64) uint64 {
	return *(*uint64)(physical(addr))
}

func read32(addr uint64) uint32 {
	return *(*uint32)(physical(addr))
}
