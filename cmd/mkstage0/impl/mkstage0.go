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

// Package impl is the implementation of the mkstage0 tool.
package impl

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/google/stage0/internal/load"
	"github.com/google/stage0/internal/partition"
	"github.com/google/stage0/internal/payload"
)

// Opts encapsulates the mkstage0 parameters.
type Opts struct {
	Stage0 string
	// Stage1 is a file path, within the ext4 partition at Stage1Offset
	// of Stage1Disk if that is set.
	Stage1       string
	Stage1Disk   string
	Stage1Offset int64
	Out          string
	Section      string
	PayloadSize  int
	LoadAddress  string
	Inspect      bool

	// Output receives the inspection report, os.Stdout if nil.
	Output io.Writer
}

// Main is the entry point for mkstage0.
func Main(opts Opts) error {
	if opts.Stage0 == "" {
		return errors.New("stage0 must be set")
	}

	addr, err := load.ParseAddress(opts.LoadAddress)
	if err != nil {
		return fmt.Errorf("load_address: %w", err)
	}

	img, err := os.ReadFile(opts.Stage0)
	if err != nil {
		return fmt.Errorf("failed to read stage0: %w", err)
	}

	if opts.Inspect {
		return inspect(opts, img, addr)
	}

	if opts.Stage1 == "" || opts.Out == "" {
		return errors.New("stage1 and out must be set")
	}

	data, err := readStage1(opts)
	if err != nil {
		return fmt.Errorf("failed to read stage1: %w", err)
	}

	if opts.PayloadSize != 0 && len(data) != opts.PayloadSize {
		return fmt.Errorf("stage1 is %d bytes, expected %d", len(data), opts.PayloadSize)
	}

	out, err := payload.Embed(img, opts.Section, data)
	if err != nil {
		return fmt.Errorf("failed to embed stage1: %w", err)
	}

	// refuse to write an image stage0 would fail to boot
	r, err := payload.Inspect(out, opts.Section, addr)
	if err != nil {
		return fmt.Errorf("embedded image does not verify: %w", err)
	}
	if r.Overlap {
		glog.Warningf("stage1 destination %#x overlaps the preferred stage0 range, loading will fail unless firmware relocates stage0", addr)
	}

	if err := os.WriteFile(opts.Out, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", opts.Out, err)
	}

	glog.Infof("Wrote %s (%s) with %s of stage1 in %s", opts.Out, humanize.IBytes(uint64(len(out))), humanize.IBytes(uint64(len(data))), opts.Section)

	return nil
}

func readStage1(opts Opts) ([]byte, error) {
	if opts.Stage1Disk == "" {
		return os.ReadFile(opts.Stage1)
	}

	f, err := os.Open(opts.Stage1Disk)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	p := &partition.Partition{
		Disk:   f,
		Size:   st.Size(),
		Offset: opts.Stage1Offset,
	}
	return p.ReadFile(opts.Stage1)
}

func inspect(opts Opts, img []byte, addr uint64) error {
	r, err := payload.Inspect(img, opts.Section, addr)
	if err != nil {
		return fmt.Errorf("failed to inspect %q: %w", opts.Stage0, err)
	}

	w := opts.Output
	if w == nil {
		w = os.Stdout
	}
	return r.Write(w)
}
