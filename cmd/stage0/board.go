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

//go:build tamago && amd64 && linkramstart && linkcpuinit

package main

import (
	_ "unsafe"

	"github.com/usbarmory/tamago/amd64"
)

// The runtime memory range must be usable RAM in the firmware memory map
// and must not intersect the stage1 load address, it is reserved from the
// firmware before the heap is bootstrapped.
//
// ramStart overrides the amd64 package default (linkramstart), ramSize is
// otherwise provided by a board package and none is imported.

//go:linkname ramStart runtime.ramStart
var ramStart uint64 = 0x40000000

//go:linkname ramSize runtime.ramSize
var ramSize uint64 = 0x10000000

// AMD64 is the bootstrap processor.
var AMD64 = &amd64.CPU{}

//go:linkname nanotime1 runtime.nanotime1
func nanotime1() int64 {
	return int64(float64(AMD64.TimerFn())*AMD64.TimerMultiplier) + AMD64.TimerOffset
}

// hwinit takes care of the lower level initialization triggered early in
// runtime setup, the firmware has already configured everything else.
//
//go:linkname hwinit runtime.hwinit
func hwinit() {
	AMD64.Init()
}

//go:linkname printk runtime.printk
func printk(c byte) {
	if console != nil {
		console.WriteByte(c)
	}
}

// defined in entry_amd64.s
func halt()
