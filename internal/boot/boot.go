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

// Package boot runs the stage0 pipeline: from firmware entry to the handoff
// to the next stage.
package boot

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/google/stage0/internal/config"
	"github.com/google/stage0/internal/handoff"
	"github.com/google/stage0/internal/heap"
	"github.com/google/stage0/internal/image"
	"github.com/google/stage0/internal/load"
	"github.com/google/stage0/internal/uefi"
)

// dumpSize is the number of relocated bytes shown in verbose mode.
const dumpSize = 100

// State is a step of the pipeline, states are reached in declaration order.
type State int

const (
	Init State = iota
	HeapReady
	ImageLocated
	SectionFound
	RegionAllocated
	Relocated
	ServicesExited
	HandedOff
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case HeapReady:
		return "HeapReady"
	case ImageLocated:
		return "ImageLocated"
	case SectionFound:
		return "SectionFound"
	case RegionAllocated:
		return "RegionAllocated"
	case Relocated:
		return "Relocated"
	case ServicesExited:
		return "ServicesExited"
	case HandedOff:
		return "HandedOff"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Error reports the state the pipeline was in when a step failed.
type Error struct {
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("boot failed in state %s: %v", e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Option configures a Loader.
type Option func(*Loader)

// WithRegion sets the allocator created over the heap pages.
func WithRegion(f heap.RegionFunc) Option {
	return func(l *Loader) {
		l.newRegion = f
	}
}

// ReserveRuntime has the memory range used by the Go runtime claimed from
// firmware before anything else is allocated.
func ReserveRuntime(start, size uint64) Option {
	return func(l *Loader) {
		l.runtime = &load.Range{Start: start, Size: size}
	}
}

// BeforeExit registers f to run right before boot services are exited, it
// is the last point where firmware services such as the console may be used.
func BeforeExit(f func()) Option {
	return func(l *Loader) {
		l.beforeExit = append(l.beforeExit, f)
	}
}

// Loader moves the next stage from the running image to its load address.
type Loader struct {
	fw    uefi.Firmware
	h     uefi.Handle
	build config.Build

	newRegion  heap.RegionFunc
	beforeExit []func()
	runtime    *load.Range

	state         State
	exitAttempted bool
}

// New creates a Loader for the image identified by h.
func New(fw uefi.Firmware, h uefi.Handle, build config.Build, opts ...Option) *Loader {
	l := &Loader{
		fw:    fw,
		h:     h,
		build: build,
	}

	for _, o := range opts {
		o(l)
	}

	return l
}

// State returns the last state reached.
func (l *Loader) State() State {
	return l.state
}

// FirmwareAvailable reports whether boot services may still be used, which
// stops being the case with the first ExitBootServices call, successful or
// not.
func (l *Loader) FirmwareAvailable() bool {
	return !l.exitAttempted
}

func (l *Loader) fail(err error) error {
	return &Error{State: l.state, Err: err}
}

func (l *Loader) reach(s State) {
	glog.V(1).Infof("boot: %s -> %s", l.state, s)
	l.state = s
}

// Run performs every step up to and including the exit of boot services.
//
// On success boot services are gone and the returned departure is the only
// thing left to use. On failure FirmwareAvailable tells whether the firmware
// can still be returned to.
func (l *Loader) Run() (*handoff.Departure, error) {
	cfg, err := l.build.Parse()
	if err != nil {
		return nil, l.fail(fmt.Errorf("invalid configuration: %w", err))
	}

	var reserved []load.Range
	if l.runtime != nil {
		if err := heap.ReserveRuntime(l.fw, l.runtime.Start, l.runtime.Size); err != nil {
			return nil, l.fail(err)
		}
		reserved = append(reserved, *l.runtime)
	}

	h, err := heap.Bootstrap(l.fw, cfg.HeapPages, l.newRegion)
	if err != nil {
		return nil, l.fail(err)
	}
	l.reach(HeapReady)

	li, err := image.Locate(l.fw, l.h)
	if err != nil {
		return nil, l.fail(err)
	}

	buf, err := l.fw.Slice(li.ImageBase, li.ImageSize)
	if err != nil {
		return nil, l.fail(fmt.Errorf("%w: cannot access image memory: %v", uefi.ErrProtocolUnavailable, err))
	}
	l.reach(ImageLocated)

	v, err := image.Parse(buf, h)
	if err != nil {
		return nil, l.fail(err)
	}

	s, err := v.Find(cfg.SectionName)
	if err != nil {
		return nil, l.fail(err)
	}

	if s.VirtualSize == 0 {
		return nil, l.fail(fmt.Errorf("%w: section %q is empty", image.ErrMalformedImage, cfg.SectionName))
	}

	if !s.Readable() || !s.Executable() {
		glog.Warningf("boot: section %s is not marked readable and executable", s)
	}
	l.reach(SectionFound)

	t, err := load.NewTarget(cfg.LoadAddress, uint64(s.VirtualSize))
	if err != nil {
		return nil, l.fail(err)
	}

	reserved = append(reserved, load.Range{Start: li.ImageBase, Size: li.ImageSize})

	region, err := load.Allocate(l.fw, t, reserved...)
	if err != nil {
		return nil, l.fail(err)
	}
	l.reach(RegionAllocated)

	n, err := load.Relocate(region, v.Bytes(s))
	if err != nil {
		return nil, l.fail(err)
	}
	l.reach(Relocated)

	glog.Infof("boot: %s loaded at %#x (%s)", cfg.SectionName, region.Address(), humanize.IBytes(uint64(n)))

	if cfg.Verbose {
		glog.Infof("boot: first bytes at %#x:\n%s", region.Address(), hex.Dump(region.Bytes()[:min(n, dumpSize)]))
	}

	d, err := handoff.Exit(l.fw, l.h, region.Address(), l.beforeExit...)
	if err != nil {
		var ee *handoff.ExitError
		l.exitAttempted = errors.As(err, &ee) && ee.Attempts > 0
		return nil, l.fail(err)
	}
	l.exitAttempted = true
	l.reach(ServicesExited)

	return d, nil
}

// Boot runs the pipeline and jumps to the next stage. It only returns on
// failure, or when the next stage itself returns.
func (l *Loader) Boot() error {
	d, err := l.Run()
	if err != nil {
		return err
	}

	l.state = HandedOff
	d.Jump()

	return nil
}

// Run is a shorthand for New(fw, h, build, opts...).Run().
func Run(fw uefi.Firmware, h uefi.Handle, build config.Build, opts ...Option) (*handoff.Departure, error) {
	return New(fw, h, build, opts...).Run()
}
