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
	"fmt"
)

// memoryDescriptorSize is the size of EFI_MEMORY_DESCRIPTOR, firmware may
// use a larger stride.
const memoryDescriptorSize = 40

// decodeMemoryMap parses the first size bytes of buf, as filled in by
// GetMemoryMap() with descriptors descSize bytes apart.
func decodeMemoryMap(buf []byte, size, key, descSize uint64) (*MemoryMap, error) {
	if descSize < memoryDescriptorSize {
		return nil, fmt.Errorf("invalid descriptor size %d", descSize)
	}

	if size > uint64(len(buf)) {
		return nil, fmt.Errorf("memory map of %d bytes overflows its %d bytes buffer", size, len(buf))
	}

	m := &MemoryMap{Key: key}

	for off := uint64(0); off+descSize <= size; off += descSize {
		d := buf[off : off+descSize]
		m.Descriptors = append(m.Descriptors, MemoryDescriptor{
			Type:          MemoryType(binary.LittleEndian.Uint32(d[0:])),
			PhysicalStart: binary.LittleEndian.Uint64(d[8:]),
			VirtualStart:  binary.LittleEndian.Uint64(d[16:]),
			NumberOfPages: binary.LittleEndian.Uint64(d[24:]),
			Attribute:     binary.LittleEndian.Uint64(d[32:]),
		})
	}

	return m, nil
}
