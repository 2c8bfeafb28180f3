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
//go:build !linux

package memmap

import (
	"errors"

	"github.com/google/stage0/internal/load"
	"github.com/google/stage0/internal/uefi"
)

// Place is only implemented on linux.
func Place(descs []uefi.MemoryDescriptor, r load.Range) (*Placement, error) {
	return nil, errors.ErrUnsupported
}
