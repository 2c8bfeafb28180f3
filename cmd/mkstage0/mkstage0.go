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

// mkstage0 embeds a stage1 loader into a stage0 UEFI application.
//
// Usage:
//   go run ./cmd/mkstage0 --logtostderr --stage0=stage0.efi --stage1=stage1.bin --out=BOOTX64.EFI
//
// With --inspect, the image given by --stage0 is checked instead and a
// description of its sections and payload is printed.
package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/google/stage0/cmd/mkstage0/impl"
	"github.com/google/stage0/internal/config"
)

var (
	stage0      = flag.String("stage0", "", "File path of the stage0 UEFI application")
	stage1      = flag.String("stage1", "", "File path of the stage1 loader to embed")
	stage1Disk  = flag.String("stage1_disk", "", "Disk image holding stage1 in an ext4 partition, --stage1 is then a path within it")
	stage1Off   = flag.Int64("stage1_offset", 0, "Byte offset of the ext4 partition within --stage1_disk")
	out         = flag.String("out", "", "File path to write the resulting image to")
	section     = flag.String("section", config.DefaultSectionName, "Name of the section to hold stage1")
	payloadSize = flag.Int("payload_size", config.PayloadSize, "Expected stage1 size in bytes, 0 to accept any size")
	loadAddress = flag.String("load_address", config.DefaultLoadAddress, "Address stage1 is loaded at")
	inspect     = flag.Bool("inspect", false, "Describe the stage0 image instead of building one")
)

func main() {
	flag.Parse()

	if err := impl.Main(impl.Opts{
		Stage0:       *stage0,
		Stage1:       *stage1,
		Stage1Disk:   *stage1Disk,
		Stage1Offset: *stage1Off,
		Out:          *out,
		Section:      *section,
		PayloadSize:  *payloadSize,
		LoadAddress:  *loadAddress,
		Inspect:      *inspect,
	}); err != nil {
		glog.Exit(err.Error())
	}
}
