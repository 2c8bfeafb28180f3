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
// Package memmap explains where a physical range falls within a firmware
// memory map.
package memmap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/stage0/internal/load"
)

// ErrUnmapped is returned when part of a range is not described by the
// memory map at all.
var ErrUnmapped = errors.New("range not covered by the memory map")

// Region is the part of a placed range lying in memory of a single type.
type Region struct {
	load.Range
	Type string
}

// Placement describes the memory a range falls in.
type Placement struct {
	Target load.Range
	// Regions are the intersections of Target with the memory map, in
	// address order.
	Regions []Region
	// Free is set when Target lies entirely in unallocated RAM.
	Free bool
}

func (p *Placement) String() string {
	var s []string
	for _, r := range p.Regions {
		s = append(s, fmt.Sprintf("%s (%s)", r.Range, r.Type))
	}
	free := "in use"
	if p.Free {
		free = "free"
	}
	return fmt.Sprintf("%s is %s: %s", p.Target, free, strings.Join(s, ", "))
}
