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

// Package peimage builds synthetic PE32+ images for tests.
package peimage

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
)

const (
	// Offsets of the headers within the images built by this package.
	PEOffset            = 0x40
	OptionalHeaderStart = PEOffset + 4 + 20
	SectionTableStart   = OptionalHeaderStart + 240

	FileAlignment    = 0x200
	SectionAlignment = 0x1000

	// CodeCharacteristics marks a readable, executable code section.
	CodeCharacteristics = pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_EXECUTE
	// DataCharacteristics marks a readable, writable data section.
	DataCharacteristics = pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_WRITE
)

// Section describes a section to include in the image.
type Section struct {
	Name string
	Data []byte
	// VirtualSize defaults to len(Data).
	VirtualSize uint32
	// Characteristics defaults to CodeCharacteristics.
	Characteristics uint32
}

// Image is a synthetic PE image in both its on-disk and loaded layouts.
type Image struct {
	// File is the image as stored on disk.
	File []byte
	// Loaded is the image as placed in memory by a UEFI loader, sections
	// at their virtual addresses.
	Loaded []byte
	// Headers are the section headers, in table order.
	Headers []pe.SectionHeader32
}

// Options tweaks the generated image.
type Options struct {
	ImageBase uint64
	// FileSize pads the on-disk image to at least this size.
	FileSize int
	// Magic overrides the optional header magic.
	Magic uint16
}

// Build returns a PE32+ x86-64 EFI application containing the given sections,
// the first one starting at SectionAlignment.
func Build(opts Options, sections ...Section) *Image {
	if opts.ImageBase == 0 {
		opts.ImageBase = 0x140000000
	}
	if opts.Magic == 0 {
		opts.Magic = 0x20b
	}

	// leave room for one more section header
	sizeOfHeaders := align(uint32(SectionTableStart+40*(len(sections)+1)), FileAlignment)

	var headers []pe.SectionHeader32
	va := uint32(SectionAlignment)
	raw := sizeOfHeaders
	var sizeOfCode uint32

	for _, s := range sections {
		vs := s.VirtualSize
		if vs == 0 {
			vs = uint32(len(s.Data))
		}
		c := s.Characteristics
		if c == 0 {
			c = CodeCharacteristics
		}

		var name [8]uint8
		copy(name[:], s.Name)

		rawSize := align(uint32(len(s.Data)), FileAlignment)
		h := pe.SectionHeader32{
			Name:             name,
			VirtualSize:      vs,
			VirtualAddress:   va,
			SizeOfRawData:    rawSize,
			PointerToRawData: raw,
			Characteristics:  c,
		}
		if rawSize == 0 {
			h.PointerToRawData = 0
		}
		if c&pe.IMAGE_SCN_CNT_CODE != 0 {
			sizeOfCode += rawSize
		}
		headers = append(headers, h)

		raw += rawSize
		va += align(max(vs, 1), SectionAlignment)
	}

	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_AMD64,
		NumberOfSections:     uint16(len(sections)),
		SizeOfOptionalHeader: 240,
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_LARGE_ADDRESS_AWARE,
	}

	oh := pe.OptionalHeader64{
		Magic:               opts.Magic,
		SizeOfCode:          sizeOfCode,
		AddressOfEntryPoint: SectionAlignment,
		BaseOfCode:          SectionAlignment,
		ImageBase:           opts.ImageBase,
		SectionAlignment:    SectionAlignment,
		FileAlignment:       FileAlignment,
		SizeOfImage:         va,
		SizeOfHeaders:       sizeOfHeaders,
		Subsystem:           pe.IMAGE_SUBSYSTEM_EFI_APPLICATION,
		NumberOfRvaAndSizes: 16,
	}

	buf := new(bytes.Buffer)
	dos := make([]byte, PEOffset)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3c:], PEOffset)
	buf.Write(dos)
	buf.Write([]byte{'P', 'E', 0, 0})
	binary.Write(buf, binary.LittleEndian, fh)
	binary.Write(buf, binary.LittleEndian, oh)
	for _, h := range headers {
		binary.Write(buf, binary.LittleEndian, h)
	}

	file := make([]byte, max(int(raw), opts.FileSize))
	copy(file, buf.Bytes())

	loaded := make([]byte, va)
	copy(loaded, file[:sizeOfHeaders])

	for i, s := range sections {
		h := headers[i]
		copy(file[h.PointerToRawData:], s.Data)
		n := min(uint32(len(s.Data)), h.VirtualSize)
		copy(loaded[h.VirtualAddress:], s.Data[:n])
	}

	return &Image{
		File:    file,
		Loaded:  loaded,
		Headers: headers,
	}
}

// Pattern returns n bytes where byte i is i mod 256.
func Pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 256)
	}
	return b
}

func align(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}
