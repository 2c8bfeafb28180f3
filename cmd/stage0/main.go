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

// stage0 is a UEFI application which loads the stage1 loader embedded in its
// own image at a fixed address, exits boot services and jumps to it.
//
// It is built with the TamaGo compiler and converted to a PE32+ image, then
// stage1 is added with mkstage0:
//
//	GOOS=tamago GOARCH=amd64 go build -tags linkramstart,linkcpuinit -ldflags "-E main.efiMain -X main.LoadAddress=0x100000000" -o stage0.elf ./cmd/stage0
//	objcopy --target efi-app-x86_64 stage0.elf stage0.efi
//	go run ./cmd/mkstage0 --stage0=stage0.efi --stage1=stage1.bin --out=BOOTX64.EFI
package main

import (
	"flag"
	"fmt"
	"log"
	"runtime"

	"github.com/google/stage0/internal/boot"
	"github.com/google/stage0/internal/config"
	"github.com/google/stage0/internal/uefi"
)

var Build string
var Revision string

// Build time configuration, see config.Build.
var (
	LoadAddress string
	SectionName string
	HeapPages   string
	Verbose     string
)

// set by efiMain from the firmware entry registers
var (
	imageHandle uint64
	systemTable uint64
)

var console *uefi.Console

func init() {
	log.SetFlags(0)

	// glog writes to stderr, which TamaGo routes through printk
	if err := flag.Set("logtostderr", "true"); err != nil {
		panic(fmt.Sprintf("cannot configure logging, %v\n", err))
	}
}

func main() {
	svc, err := uefi.New(uefi.Handle(imageHandle), systemTable)
	if err != nil {
		panic(fmt.Sprintf("invalid firmware entry, %v\n", err))
	}

	console = uefi.NewConsole(svc)
	log.SetOutput(console)

	log.Printf("stage0 • %s/%s (%s) • %s %s", runtime.GOOS, runtime.GOARCH, runtime.Version(), Revision, Build)

	l := boot.New(svc, uefi.Handle(imageHandle), config.Build{
		LoadAddress: LoadAddress,
		SectionName: SectionName,
		HeapPages:   HeapPages,
		Verbose:     Verbose,
	}, boot.ReserveRuntime(ramStart, ramSize), boot.BeforeExit(console.Detach))

	if err := l.Boot(); err != nil {
		log.Printf("stage0: %v", err)

		// once ExitBootServices was called, successfully or not, the
		// firmware cannot be returned to
		if l.FirmwareAvailable() {
			if err := svc.Exit(uefi.LoadError); err != nil {
				log.Printf("stage0: cannot return to firmware, %v", err)
			}
		}
	}

	halt()
}
