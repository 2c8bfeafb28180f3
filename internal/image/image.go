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

// Package image locates the running stage0 image and scans its PE section
// table.
//
// The scanner works on the image as laid out in memory by the firmware
// loader: section contents are found at their virtual addresses, not at their
// file offsets.
package image

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/google/stage0/internal/uefi"
)

var (
	// ErrMalformedImage is returned when the PE headers are invalid or
	// inconsistent with the image size.
	ErrMalformedImage = errors.New("malformed image")
	// ErrSectionNotFound is returned when no section carries the requested
	// name.
	ErrSectionNotFound = errors.New("section not found")
)

const (
	dosHeaderSize      = 64
	fileHeaderSize     = 20
	sectionHeaderSize  = 40
	optionalHeaderMin  = 112
	optionalHeader64   = 0x20b
	sizeOfImageOffset  = 56
	imageBaseOffset    = 24
	entryPointOffset   = 16
	peSignature        = "PE\x00\x00"
	peOffsetFieldStart = 0x3c
)

// Arena provides scratch memory for parsing.
type Arena interface {
	Alloc(size int, align int) (uint, []byte, error)
	Free(addr uint)
}

// Section describes an entry of the PE section table.
type Section struct {
	// Name is the raw, NUL padded, section name.
	Name [8]byte
	// VirtualAddress is the offset of the section from the image base.
	VirtualAddress uint32
	// VirtualSize is the size of the section once loaded.
	VirtualSize uint32
	// Characteristics holds the IMAGE_SCN_* flags.
	Characteristics uint32
}

// NameString returns the section name without NUL padding.
func (s Section) NameString() string {
	return string(bytes.TrimRight(s.Name[:], "\x00"))
}

// Readable reports whether the section is flagged IMAGE_SCN_MEM_READ.
func (s Section) Readable() bool {
	return s.Characteristics&pe.IMAGE_SCN_MEM_READ != 0
}

// Executable reports whether the section is flagged IMAGE_SCN_MEM_EXECUTE.
func (s Section) Executable() bool {
	return s.Characteristics&pe.IMAGE_SCN_MEM_EXECUTE != 0
}

func (s Section) String() string {
	flags := []byte("--")
	if s.Readable() {
		flags[0] = 'r'
	}
	if s.Executable() {
		flags[1] = 'x'
	}
	return fmt.Sprintf("%-8s va:%#08x size:%#08x %s", s.NameString(), s.VirtualAddress, s.VirtualSize, flags)
}

// View is a read-only parsed view over a loaded PE32+ image.
type View struct {
	buf       []byte
	machine   uint16
	imageBase uint64
	entry     uint32
	sections  []Section
}

// Locate opens the loaded image protocol on h and returns where firmware
// placed the image.
func Locate(bs uefi.BootServices, h uefi.Handle) (*uefi.LoadedImage, error) {
	li, err := bs.OpenLoadedImage(h)
	if err != nil {
		return nil, fmt.Errorf("%w: loaded image protocol on handle %#x: %w", uefi.ErrProtocolUnavailable, uint64(h), err)
	}

	if li.ImageBase == 0 || li.ImageSize == 0 {
		return nil, fmt.Errorf("%w: empty loaded image at %#x+%#x", uefi.ErrProtocolUnavailable, li.ImageBase, li.ImageSize)
	}

	glog.V(1).Infof("image: loaded at %#x, %d bytes", li.ImageBase, li.ImageSize)

	return li, nil
}

// Parse validates the PE headers of the loaded image in buf and reads its
// section table.
//
// The headers are copied to scratch memory reserved from arena and parsed
// from there, the scratch memory is released before returning.
func Parse(buf []byte, arena Arena) (*View, error) {
	if len(buf) < dosHeaderSize || buf[0] != 'M' || buf[1] != 'Z' {
		return nil, fmt.Errorf("%w: missing DOS header", ErrMalformedImage)
	}

	peOff := uint64(binary.LittleEndian.Uint32(buf[peOffsetFieldStart:]))
	fhOff := peOff + uint64(len(peSignature))
	ohOff := fhOff + fileHeaderSize

	if ohOff > uint64(len(buf)) || string(buf[peOff:fhOff]) != peSignature {
		return nil, fmt.Errorf("%w: missing PE signature", ErrMalformedImage)
	}

	var fh pe.FileHeader
	if err := binary.Read(bytes.NewReader(buf[fhOff:ohOff]), binary.LittleEndian, &fh); err != nil {
		return nil, fmt.Errorf("%w: file header: %v", ErrMalformedImage, err)
	}

	if fh.SizeOfOptionalHeader < optionalHeaderMin {
		return nil, fmt.Errorf("%w: optional header too small (%d bytes)", ErrMalformedImage, fh.SizeOfOptionalHeader)
	}

	tableOff := ohOff + uint64(fh.SizeOfOptionalHeader)
	tableEnd := tableOff + uint64(fh.NumberOfSections)*sectionHeaderSize

	if tableEnd > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: section table exceeds image (%d > %d)", ErrMalformedImage, tableEnd, len(buf))
	}

	addr, hdr, err := arena.Alloc(int(tableEnd), 8)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve %d bytes for headers: %w", tableEnd, err)
	}
	defer arena.Free(addr)

	copy(hdr, buf[:tableEnd])

	oh := hdr[ohOff:tableOff]

	if magic := binary.LittleEndian.Uint16(oh); magic != optionalHeader64 {
		return nil, fmt.Errorf("%w: unsupported optional header magic %#x", ErrMalformedImage, magic)
	}

	if sizeOfImage := binary.LittleEndian.Uint32(oh[sizeOfImageOffset:]); uint64(sizeOfImage) > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: SizeOfImage %#x exceeds loaded size %#x", ErrMalformedImage, sizeOfImage, len(buf))
	}

	v := &View{
		buf:       buf,
		machine:   fh.Machine,
		imageBase: binary.LittleEndian.Uint64(oh[imageBaseOffset:]),
		entry:     binary.LittleEndian.Uint32(oh[entryPointOffset:]),
		sections:  make([]Section, 0, fh.NumberOfSections),
	}

	sh := make([]pe.SectionHeader32, fh.NumberOfSections)
	if err := binary.Read(bytes.NewReader(hdr[tableOff:tableEnd]), binary.LittleEndian, sh); err != nil {
		return nil, fmt.Errorf("%w: section table: %v", ErrMalformedImage, err)
	}

	for i, h := range sh {
		s := Section{
			Name:            h.Name,
			VirtualAddress:  h.VirtualAddress,
			VirtualSize:     h.VirtualSize,
			Characteristics: h.Characteristics,
		}

		if end := uint64(s.VirtualAddress) + uint64(s.VirtualSize); end > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: section %d (%q) ends at %#x, past image end %#x", ErrMalformedImage, i, s.NameString(), end, len(buf))
		}

		glog.V(2).Infof("image: section %d: %s", i, s)
		v.sections = append(v.sections, s)
	}

	return v, nil
}

// Machine returns the COFF machine type.
func (v *View) Machine() uint16 {
	return v.machine
}

// ImageBase returns the preferred load address from the optional header.
func (v *View) ImageBase() uint64 {
	return v.imageBase
}

// EntryPoint returns the entry point RVA.
func (v *View) EntryPoint() uint32 {
	return v.entry
}

// Sections returns the section table in on-disk order.
func (v *View) Sections() []Section {
	return append([]Section(nil), v.sections...)
}

// Find returns the section named name.
//
// The comparison is exact and case sensitive, after removing the NUL padding
// of the section name. More than one matching section is an error, no
// tie-break is applied.
func (v *View) Find(name string) (Section, error) {
	var found []Section

	for _, s := range v.sections {
		if bytes.Equal(bytes.TrimRight(s.Name[:], "\x00"), []byte(name)) {
			found = append(found, s)
		}
	}

	switch len(found) {
	case 0:
		return Section{}, fmt.Errorf("%w: %q", ErrSectionNotFound, name)
	case 1:
		return found[0], nil
	}

	return Section{}, fmt.Errorf("%w: %d sections named %q", ErrMalformedImage, len(found), name)
}

// Bytes returns the loaded contents of s, which must belong to v.
func (v *View) Bytes(s Section) []byte {
	return v.buf[s.VirtualAddress : s.VirtualAddress+s.VirtualSize : s.VirtualAddress+s.VirtualSize]
}
