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

// Package impl is the implementation of the stage0 emulator.
package impl

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/golang/glog"
	"github.com/google/stage0/internal/boot"
	"github.com/google/stage0/internal/config"
	"github.com/google/stage0/internal/load"
	"github.com/google/stage0/internal/memmap"
	"github.com/google/stage0/internal/payload"
	"github.com/google/stage0/internal/uefi"
	"github.com/google/stage0/internal/uefi/dummy"
	"golang.org/x/sync/errgroup"
)

const (
	imageHandle = uefi.Handle(0x1)
	// disasmCount is the number of stage1 instructions shown.
	disasmCount = 8
)

// EmulatorOpts encapsulates the parameters for running the emulator.
type EmulatorOpts struct {
	// Images are booted independently, each on its own firmware.
	Images      []string
	ImageBase   string
	LoadAddress string
	Section     string
	HeapPages   string
	StaleMaps   int
	Verbose     bool
}

// Result describes a successful emulated boot.
type Result struct {
	// Entry is the address control would have been transferred to.
	Entry uint64
	// Code is the start of stage1, as found at Entry.
	Code []payload.Inst
	// ExitCalls is the number of ExitBootServices attempts.
	ExitCalls int
	// Placement describes the firmware memory stage1 was loaded over, as
	// it was before stage0 ran. It is nil where it cannot be computed.
	Placement *memmap.Placement
}

// Main is the entry point for the emulator.
func Main(opts EmulatorOpts) error {
	if len(opts.Images) == 0 {
		return errors.New("no image to boot")
	}

	results := make([]*Result, len(opts.Images))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range opts.Images {
		g.Go(func() error {
			r, err := Run(path, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, r := range results {
		if r.Placement != nil {
			glog.Infof("%s: destination %s", opts.Images[i], r.Placement)
		}
		glog.Infof("%s: stage0 would jump to %#x after %d ExitBootServices call(s):", opts.Images[i], r.Entry, r.ExitCalls)
		for _, inst := range r.Code {
			glog.Infof("  %s", inst)
		}
	}

	return nil
}

// Run boots the image at path on a fresh simulated firmware.
func Run(path string, opts EmulatorOpts) (*Result, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	base, err := load.ParseAddress(opts.ImageBase)
	if err != nil {
		return nil, fmt.Errorf("image_base: %w", err)
	}

	mem, err := payload.Layout(img)
	if err != nil {
		return nil, fmt.Errorf("failed to map image: %w", err)
	}

	fw := dummy.New(dummy.WithStaleMemoryMap(opts.StaleMaps))
	if err := fw.LoadImage(imageHandle, base, mem); err != nil {
		return nil, fmt.Errorf("firmware: %w", err)
	}

	build := config.Build{
		LoadAddress: opts.LoadAddress,
		SectionName: opts.Section,
		HeapPages:   opts.HeapPages,
		Verbose:     strconv.FormatBool(opts.Verbose),
	}

	// boot reports whatever makes the destination unusable, the placement
	// is only informational
	placement, err := place(fw, img, build)
	if err != nil {
		glog.V(1).Infof("emulator: destination not placed: %v", err)
	}

	d, err := boot.Run(fw, imageHandle, build, boot.BeforeExit(func() {
		glog.V(1).Info("emulator: console detached")
	}))
	if err != nil {
		return nil, fmt.Errorf("boot(): %w", err)
	}

	// the section size is not part of the departure, stage1 only gets an
	// address
	code, err := fw.Departed(d.Entry(), uefi.PageSize)
	if err != nil {
		return nil, fmt.Errorf("nothing mapped at entry %#x: %w", d.Entry(), err)
	}

	return &Result{
		Entry:     d.Entry(),
		Code:      payload.Disassemble(code, d.Entry(), disasmCount),
		ExitCalls: fw.ExitCalls(),
		Placement: placement,
	}, nil
}

// place locates the stage1 destination within the memory map of fw.
func place(fw *dummy.Firmware, img []byte, build config.Build) (*memmap.Placement, error) {
	cfg, err := build.Parse()
	if err != nil {
		return nil, err
	}

	r, err := payload.Inspect(img, cfg.SectionName, cfg.LoadAddress)
	if err != nil {
		return nil, err
	}

	mm, err := fw.GetMemoryMap()
	if err != nil {
		return nil, err
	}

	return memmap.Place(mm.Descriptors, r.Target.Range())
}
