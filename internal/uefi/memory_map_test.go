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
package uefi

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// descriptors encodes ds with the given stride, the way firmware fills the
// GetMemoryMap() buffer.
func descriptors(stride int, ds ...MemoryDescriptor) []byte {
	buf := make([]byte, stride*len(ds))
	for i, d := range ds {
		b := buf[i*stride:]
		binary.LittleEndian.PutUint32(b[0:], uint32(d.Type))
		binary.LittleEndian.PutUint64(b[8:], d.PhysicalStart)
		binary.LittleEndian.PutUint64(b[16:], d.VirtualStart)
		binary.LittleEndian.PutUint64(b[24:], d.NumberOfPages)
		binary.LittleEndian.PutUint64(b[32:], d.Attribute)
	}
	return buf
}

func TestDecodeMemoryMap(t *testing.T) {
	ds := []MemoryDescriptor{
		{Type: ConventionalMemory, PhysicalStart: 0x100000, NumberOfPages: 0x7ff00, Attribute: 0xf},
		{Type: LoaderCode, PhysicalStart: 0x7f000000, NumberOfPages: 2},
		{Type: ACPIMemoryNVS, PhysicalStart: 0xfed00000, VirtualStart: 0xfed00000, NumberOfPages: 1, Attribute: 1 << 63},
	}

	for _, stride := range []int{40, 48} {
		// spare room past the map, as left by the sizing slack
		buf := append(descriptors(stride, ds...), make([]byte, 2*stride)...)

		m, err := decodeMemoryMap(buf, uint64(len(ds)*stride), 7, uint64(stride))
		if err != nil {
			t.Fatalf("stride %d: decodeMemoryMap: %v", stride, err)
		}
		if m.Key != 7 {
			t.Errorf("stride %d: Key = %d, want 7", stride, m.Key)
		}
		if diff := cmp.Diff(ds, m.Descriptors); diff != "" {
			t.Errorf("stride %d: descriptors diff (-want +got):\n%s", stride, diff)
		}
	}
}

func TestDecodeMemoryMapInvalid(t *testing.T) {
	buf := descriptors(48, MemoryDescriptor{Type: ConventionalMemory})

	for _, test := range []struct {
		desc     string
		size     uint64
		descSize uint64
	}{
		{desc: "no descriptor size", size: 48},
		{desc: "short descriptors", size: 48, descSize: 24},
		{desc: "size past buffer", size: 96, descSize: 48},
	} {
		t.Run(test.desc, func(t *testing.T) {
			if _, err := decodeMemoryMap(buf, test.size, 1, test.descSize); err == nil {
				t.Error("decodeMemoryMap succeeded")
			}
		})
	}
}
