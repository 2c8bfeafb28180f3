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

package image

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/stage0/internal/heap"
	"github.com/google/stage0/internal/testonly/peimage"
	"github.com/google/stage0/internal/uefi"
	"github.com/google/stage0/internal/uefi/mock_uefi"
)

// testArena counts outstanding reservations.
type testArena struct {
	*heap.Arena
	allocs int
}

func (a *testArena) Alloc(size int, align int) (uint, []byte, error) {
	addr, buf := a.Reserve(size, align)
	if buf == nil {
		return 0, nil, heap.ErrExhausted
	}
	a.allocs++
	return addr, buf, nil
}

func (a *testArena) Free(addr uint) {
	a.allocs--
	a.Release(addr)
}

func scratch() *testArena {
	return &testArena{Arena: heap.NewArena(0x10000, make([]byte, 2*uefi.PageSize))}
}

func name(s string) [8]byte {
	var n [8]byte
	copy(n[:], s)
	return n
}

func TestParse(t *testing.T) {
	img := peimage.Build(peimage.Options{ImageBase: 0x400000},
		peimage.Section{Name: ".text", Data: peimage.Pattern(100)},
		peimage.Section{Name: ".data", Data: peimage.Pattern(10), VirtualSize: 0x1800, Characteristics: peimage.DataCharacteristics},
		peimage.Section{Name: ".mloader", Data: peimage.Pattern(512)},
	)

	a := scratch()
	v, err := Parse(img.Loaded, a)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if a.allocs != 0 {
		t.Errorf("%d scratch reservations leaked", a.allocs)
	}

	want := []Section{
		{Name: name(".text"), VirtualAddress: 0x1000, VirtualSize: 100, Characteristics: peimage.CodeCharacteristics},
		{Name: name(".data"), VirtualAddress: 0x2000, VirtualSize: 0x1800, Characteristics: peimage.DataCharacteristics},
		{Name: name(".mloader"), VirtualAddress: 0x4000, VirtualSize: 512, Characteristics: peimage.CodeCharacteristics},
	}
	if diff := cmp.Diff(want, v.Sections()); diff != "" {
		t.Errorf("Sections() diff (-want +got):\n%s", diff)
	}

	if got := v.Machine(); got != pe.IMAGE_FILE_MACHINE_AMD64 {
		t.Errorf("Machine() = %#x", got)
	}
	if got := v.ImageBase(); got != 0x400000 {
		t.Errorf("ImageBase() = %#x", got)
	}
	if got := v.EntryPoint(); got != 0x1000 {
		t.Errorf("EntryPoint() = %#x", got)
	}

	s := v.Sections()[2]
	if !s.Readable() || !s.Executable() {
		t.Errorf("%s: want readable and executable", s)
	}
	if d := v.Sections()[1]; d.Executable() {
		t.Errorf("%s: want not executable", d)
	}
	if !bytes.Equal(v.Bytes(s), peimage.Pattern(512)) {
		t.Error("section bytes differ from payload")
	}
}

func TestParseMalformed(t *testing.T) {
	good := peimage.Build(peimage.Options{}, peimage.Section{Name: ".mloader", Data: peimage.Pattern(512)})

	for _, test := range []struct {
		desc   string
		mutate func([]byte) []byte
	}{
		{
			desc:   "too short",
			mutate: func(b []byte) []byte { return b[:10] },
		}, {
			desc: "bad DOS magic",
			mutate: func(b []byte) []byte {
				b[0] = 'X'
				return b
			},
		}, {
			desc: "PE offset out of range",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint32(b[0x3c:], 0xfffffff0)
				return b
			},
		}, {
			desc: "bad PE signature",
			mutate: func(b []byte) []byte {
				b[peimage.PEOffset+1] = 'X'
				return b
			},
		}, {
			desc: "PE32 optional header",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint16(b[peimage.OptionalHeaderStart:], 0x10b)
				return b
			},
		}, {
			desc: "optional header too small",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint16(b[peimage.PEOffset+4+16:], 16)
				return b
			},
		}, {
			desc: "section table past end",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint16(b[peimage.PEOffset+4+2:], 0xffff)
				return b
			},
		}, {
			desc: "SizeOfImage past end",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint32(b[peimage.OptionalHeaderStart+56:], 0x100000)
				return b
			},
		}, {
			desc: "section extends past image",
			mutate: func(b []byte) []byte {
				// VirtualSize of the first section
				binary.LittleEndian.PutUint32(b[peimage.SectionTableStart+8:], 0x1001)
				return b
			},
		}, {
			desc: "section address wraps",
			mutate: func(b []byte) []byte {
				binary.LittleEndian.PutUint32(b[peimage.SectionTableStart+8:], 0xffffffff)
				binary.LittleEndian.PutUint32(b[peimage.SectionTableStart+12:], 0xffffffff)
				return b
			},
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			b := test.mutate(append([]byte(nil), good.Loaded...))
			if _, err := Parse(b, scratch()); !errors.Is(err, ErrMalformedImage) {
				t.Fatalf("Parse = %v, want %v", err, ErrMalformedImage)
			}
		})
	}
}

func TestParseScratchExhausted(t *testing.T) {
	img := peimage.Build(peimage.Options{}, peimage.Section{Name: ".mloader", Data: peimage.Pattern(16)})
	a := &testArena{Arena: heap.NewArena(0, make([]byte, 64))}

	if _, err := Parse(img.Loaded, a); !errors.Is(err, heap.ErrExhausted) {
		t.Fatalf("Parse = %v, want %v", err, heap.ErrExhausted)
	}
}

func TestFind(t *testing.T) {
	for _, test := range []struct {
		desc     string
		sections []peimage.Section
		find     string
		wantVA   uint32
		wantErr  error
	}{
		{
			desc: "single match",
			sections: []peimage.Section{
				{Name: ".text", Data: []byte{1}},
				{Name: ".mloader", Data: []byte{2}},
			},
			find:   ".mloader",
			wantVA: 0x2000,
		}, {
			desc: "short name",
			sections: []peimage.Section{
				{Name: ".ld", Data: []byte{1}},
			},
			find:   ".ld",
			wantVA: 0x1000,
		}, {
			desc: "absent",
			sections: []peimage.Section{
				{Name: ".text", Data: []byte{1}},
			},
			find:    ".mloader",
			wantErr: ErrSectionNotFound,
		}, {
			desc: "case sensitive",
			sections: []peimage.Section{
				{Name: ".MLOADER", Data: []byte{1}},
			},
			find:    ".mloader",
			wantErr: ErrSectionNotFound,
		}, {
			desc: "prefix is not a match",
			sections: []peimage.Section{
				{Name: ".mload", Data: []byte{1}},
			},
			find:    ".mloader",
			wantErr: ErrSectionNotFound,
		}, {
			desc: "duplicate",
			sections: []peimage.Section{
				{Name: ".mloader", Data: []byte{1}},
				{Name: ".mloader", Data: []byte{2}},
			},
			find:    ".mloader",
			wantErr: ErrMalformedImage,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			img := peimage.Build(peimage.Options{}, test.sections...)
			v, err := Parse(img.Loaded, scratch())
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}

			s, err := v.Find(test.find)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("Find(%q) = %v, want %v", test.find, err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Find(%q): %v", test.find, err)
			}
			if s.VirtualAddress != test.wantVA || s.NameString() != test.find {
				t.Errorf("Find(%q) = %s", test.find, s)
			}
		})
	}
}

func TestLocate(t *testing.T) {
	for _, test := range []struct {
		desc    string
		li      *uefi.LoadedImage
		err     error
		wantErr bool
	}{
		{
			desc: "ok",
			li:   &uefi.LoadedImage{ImageBase: 0x7f000000, ImageSize: 0x2000},
		}, {
			desc:    "already open",
			err:     uefi.AccessDenied,
			wantErr: true,
		}, {
			desc:    "empty image",
			li:      &uefi.LoadedImage{ImageBase: 0x7f000000},
			wantErr: true,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			bs := mock_uefi.NewMockBootServices(ctrl)
			bs.EXPECT().OpenLoadedImage(uefi.Handle(7)).Return(test.li, test.err)

			li, err := Locate(bs, 7)
			if test.wantErr {
				if !errors.Is(err, uefi.ErrProtocolUnavailable) {
					t.Fatalf("Locate = %v, want %v", err, uefi.ErrProtocolUnavailable)
				}
				if test.err != nil && !errors.Is(err, test.err) {
					t.Errorf("Locate = %v, want wrapped %v", err, test.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			if diff := cmp.Diff(test.li, li); diff != "" {
				t.Errorf("Locate diff (-want +got):\n%s", diff)
			}
		})
	}
}
