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

// emulator runs the stage0 boot pipeline against a simulated UEFI firmware.
//
// The stage0 image is mapped into simulated memory the way a UEFI loader
// would, and every step up to the exit of boot services runs unmodified.
// Instead of jumping into stage1, the emulator shows what it would have
// jumped to.
//
// Usage:
//   go run ./cmd/emulator --logtostderr --image=BOOTX64.EFI
package main

import (
	"flag"
	"strings"

	"github.com/golang/glog"
	"github.com/google/stage0/cmd/emulator/impl"
	"github.com/google/stage0/internal/config"
)

var (
	images      = flag.String("image", "", "Comma separated file paths of stage0 images, with stage1 embedded")
	imageBase   = flag.String("image_base", "0x7f000000", "Address the simulated firmware loads stage0 at")
	loadAddress = flag.String("load_address", config.DefaultLoadAddress, "Address stage1 is loaded at")
	section     = flag.String("section", config.DefaultSectionName, "Name of the section holding stage1")
	heapPages   = flag.String("heap_pages", "", "Number of heap pages, empty for the default")
	staleMaps   = flag.Int("stale_maps", 0, "Number of ExitBootServices calls which fail with a stale memory map")
	verbose     = flag.Bool("verbose", false, "Dump the first relocated bytes")
)

func main() {
	flag.Parse()

	if err := impl.Main(impl.EmulatorOpts{
		Images:      strings.Split(*images, ","),
		ImageBase:   *imageBase,
		LoadAddress: *loadAddress,
		Section:     *section,
		HeapPages:   *heapPages,
		StaleMaps:   *staleMaps,
		Verbose:     *verbose,
	}); err != nil {
		glog.Exit(err.Error())
	}
}
