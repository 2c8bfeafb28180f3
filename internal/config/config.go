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

// Package config validates the build time configuration of stage0.
//
// The firmware binary has no command line or filesystem, its parameters are
// strings injected by the linker with -ldflags "-X main.Name=value".
package config

import (
	"fmt"
	"strconv"

	"github.com/google/stage0/internal/heap"
	"github.com/google/stage0/internal/load"
	"github.com/google/stage0/internal/uefi"
)

const (
	// DefaultLoadAddress is where the next stage expects to run.
	DefaultLoadAddress = "0x100000000"
	// DefaultSectionName is the PE section carrying the next stage.
	DefaultSectionName = ".mloader"
	// PayloadSize is the size of the stage-1 loader the firmware is built
	// around.
	PayloadSize = 2535424

	maxSectionName = 8
)

// Build holds the raw, linker provided, configuration strings. Empty fields
// take their default value.
type Build struct {
	LoadAddress string
	SectionName string
	HeapPages   string
	Verbose     string
}

// Config is a validated configuration.
type Config struct {
	// LoadAddress is the fixed physical address of the next stage.
	LoadAddress uint64
	// SectionName names the section holding the next stage.
	SectionName string
	// HeapPages is the number of pages reserved for the heap.
	HeapPages int
	// Verbose enables dumping of the relocated bytes.
	Verbose bool
}

// Defaults returns the build configuration used when nothing is injected.
func Defaults() Build {
	return Build{
		LoadAddress: DefaultLoadAddress,
		SectionName: DefaultSectionName,
		HeapPages:   strconv.Itoa(heap.DefaultPages),
	}
}

// Parse validates b.
func (b Build) Parse() (Config, error) {
	d := Defaults()
	if b.LoadAddress == "" {
		b.LoadAddress = d.LoadAddress
	}
	if b.SectionName == "" {
		b.SectionName = d.SectionName
	}
	if b.HeapPages == "" {
		b.HeapPages = d.HeapPages
	}

	var c Config
	var err error

	if c.LoadAddress, err = load.ParseAddress(b.LoadAddress); err != nil {
		return Config{}, fmt.Errorf("load address: %w", err)
	}
	if c.LoadAddress%uefi.PageSize != 0 {
		return Config{}, fmt.Errorf("load address: %w: %#x is not page aligned", load.ErrInvalidAddressFormat, c.LoadAddress)
	}

	if len(b.SectionName) > maxSectionName {
		return Config{}, fmt.Errorf("section name %q longer than %d bytes", b.SectionName, maxSectionName)
	}
	c.SectionName = b.SectionName

	if c.HeapPages, err = strconv.Atoi(b.HeapPages); err != nil || c.HeapPages <= 0 {
		return Config{}, fmt.Errorf("invalid heap page count %q", b.HeapPages)
	}

	if b.Verbose != "" {
		if c.Verbose, err = strconv.ParseBool(b.Verbose); err != nil {
			return Config{}, fmt.Errorf("invalid verbose flag %q: %v", b.Verbose, err)
		}
	}

	return c, nil
}
