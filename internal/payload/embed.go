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

// Package payload places the next stage inside a stage0 PE image at build
// time, and inspects the result.
package payload

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/glog"
)

var (
	// ErrNotPE32Plus is returned for files which are not PE32+ images.
	ErrNotPE32Plus = errors.New("not a PE32+ image")
	// ErrSectionExists is returned when the image already has a section
	// with the requested name.
	ErrSectionExists = errors.New("section already exists")
	// ErrNoRoom is returned when the header area cannot hold another
	// section header.
	ErrNoRoom = errors.New("no room for another section header")
	// ErrSigned is returned for images carrying an Authenticode signature,
	// which embedding would invalidate.
	ErrSigned = errors.New("image is signed")
)

const (
	peOffsetField     = 0x3c
	fileHeaderSize    = 20
	sectionHeaderSize = 40
	maxNameLen        = 8

	// offsets within the file and optional headers
	numberOfSectionsOff = 2
	sizeOfCodeOff       = 4
	sizeOfImageOff      = 56
	checkSumOff         = 64

	// Characteristics is the flag set of an embedded section.
	Characteristics = pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_EXECUTE
)

// header locates the headers of a PE32+ file.
type header struct {
	f        *pe.File
	oh       *pe.OptionalHeader64
	fhOff    uint32
	ohOff    uint32
	tableEnd uint32
}

func parseHeader(img []byte) (*header, error) {
	f, err := pe.NewFile(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPE32Plus, err)
	}

	oh, ok := f.OptionalHeader.(*pe.OptionalHeader64)
	if !ok {
		return nil, fmt.Errorf("%w: optional header is %T", ErrNotPE32Plus, f.OptionalHeader)
	}

	fhOff := binary.LittleEndian.Uint32(img[peOffsetField:]) + 4
	ohOff := fhOff + fileHeaderSize
	tableEnd := ohOff + uint32(f.SizeOfOptionalHeader) + uint32(len(f.Sections))*sectionHeaderSize

	return &header{
		f:        f,
		oh:       oh,
		fhOff:    fhOff,
		ohOff:    ohOff,
		tableEnd: tableEnd,
	}, nil
}

// Embed returns a copy of stage0 with data appended as a new section called
// name, flagged as readable and executable code.
//
// The section is placed after every existing section, both in the file and
// in memory. The image checksum is cleared since it no longer matches.
func Embed(stage0 []byte, name string, data []byte) ([]byte, error) {
	if len(name) == 0 || len(name) > maxNameLen {
		return nil, fmt.Errorf("section name %q must be 1 to %d bytes", name, maxNameLen)
	}
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}

	h, err := parseHeader(stage0)
	if err != nil {
		return nil, err
	}

	if d := h.oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_SECURITY]; d.Size != 0 {
		return nil, fmt.Errorf("%w: certificate table at %#x", ErrSigned, d.VirtualAddress)
	}

	fileAlign, sectAlign := h.oh.FileAlignment, h.oh.SectionAlignment
	if fileAlign == 0 || sectAlign == 0 {
		return nil, fmt.Errorf("%w: zero alignment", ErrNotPE32Plus)
	}

	// the new header must not run into section contents
	headersEnd := h.oh.SizeOfHeaders
	va := align(h.oh.SizeOfImage, sectAlign)
	for _, s := range h.f.Sections {
		if s.Name == name {
			return nil, fmt.Errorf("%w: %q", ErrSectionExists, name)
		}
		if s.Size != 0 && s.Offset < headersEnd {
			headersEnd = s.Offset
		}
		va = max(va, align(s.VirtualAddress+max(s.VirtualSize, s.Size), sectAlign))
	}

	if h.tableEnd+sectionHeaderSize > headersEnd {
		return nil, fmt.Errorf("%w: section table ends at %#x, contents start at %#x", ErrNoRoom, h.tableEnd, headersEnd)
	}

	raw := align(uint32(len(stage0)), fileAlign)
	rawSize := align(uint32(len(data)), fileAlign)

	out := make([]byte, raw+rawSize)
	copy(out, stage0)
	copy(out[raw:], data)

	sh := pe.SectionHeader32{
		VirtualSize:      uint32(len(data)),
		VirtualAddress:   va,
		SizeOfRawData:    rawSize,
		PointerToRawData: raw,
		Characteristics:  Characteristics,
	}
	copy(sh.Name[:], name)

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, sh); err != nil {
		return nil, fmt.Errorf("failed to encode section header: %v", err)
	}
	copy(out[h.tableEnd:], buf.Bytes())

	le := binary.LittleEndian
	le.PutUint16(out[h.fhOff+numberOfSectionsOff:], uint16(len(h.f.Sections)+1))
	le.PutUint32(out[h.ohOff+sizeOfCodeOff:], h.oh.SizeOfCode+rawSize)
	le.PutUint32(out[h.ohOff+sizeOfImageOff:], align(va+uint32(len(data)), sectAlign))
	le.PutUint32(out[h.ohOff+checkSumOff:], 0)

	glog.V(1).Infof("payload: %s at rva %#x, file offset %#x, %d bytes", name, va, raw, len(data))

	return out, nil
}

// Layout returns the image as a UEFI loader maps it in memory: headers at
// offset zero and each section at its virtual address, zero filled up to
// SizeOfImage.
func Layout(img []byte) ([]byte, error) {
	h, err := parseHeader(img)
	if err != nil {
		return nil, err
	}

	mem := make([]byte, h.oh.SizeOfImage)
	copy(mem, img[:min(int(h.oh.SizeOfHeaders), len(img), len(mem))])

	for _, s := range h.f.Sections {
		n := min(s.Size, s.VirtualSize)
		if uint64(s.VirtualAddress)+uint64(s.VirtualSize) > uint64(len(mem)) {
			return nil, fmt.Errorf("section %q at %#x+%#x exceeds SizeOfImage %#x", s.Name, s.VirtualAddress, s.VirtualSize, len(mem))
		}
		if uint64(s.Offset)+uint64(n) > uint64(len(img)) {
			return nil, fmt.Errorf("section %q contents at %#x+%#x exceed file size %#x", s.Name, s.Offset, n, len(img))
		}
		copy(mem[s.VirtualAddress:], img[s.Offset:s.Offset+n])
	}

	return mem, nil
}

func align(v, a uint32) uint32 {
	return (v + a - 1) / a * a
}
