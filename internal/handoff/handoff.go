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

// Package handoff exits firmware boot services and transfers control to the
// next stage.
package handoff

import (
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	"github.com/google/stage0/internal/uefi"
)

// Departure is the only value which survives ExitBootServices.
//
// It holds the entry address of the next stage and nothing else: no firmware
// services, handles or memory reservations can be reached from it.
type Departure struct {
	entry uint64
}

// Entry returns the address control is transferred to.
func (d *Departure) Entry() uint64 {
	return d.entry
}

// Jump calls the next stage as a function without arguments. On hardware it
// does not return.
func (d *Departure) Jump() {
	transfer(d.entry)
}

// ExitError is returned by Exit.
type ExitError struct {
	// Attempts is the number of ExitBootServices calls made. Once it is
	// non-zero the firmware may have released part of its services, only
	// halting is safe.
	Attempts int
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v after %d attempt(s): %v", uefi.ErrExitServices, e.Attempts, e.Err)
}

func (e *ExitError) Unwrap() []error {
	return []error{uefi.ErrExitServices, e.Err}
}

// Exit terminates boot services and returns the departure to entry.
//
// The hooks are run once, before the memory map is first fetched: nothing
// which may allocate firmware memory runs between GetMemoryMap and
// ExitBootServices. If firmware rejects the memory map key as stale the map
// is fetched again and the exit is retried exactly once, any other failure
// is returned immediately. Errors are of type *ExitError.
func Exit(bs uefi.BootServices, h uefi.Handle, entry uint64, beforeExit ...func()) (*Departure, error) {
	attempts := 0
	hooksRun := false

	op := func() error {
		glog.V(1).Infof("handoff: exiting boot services, attempt %d", attempts+1)

		if !hooksRun {
			for _, f := range beforeExit {
				f()
			}
			hooksRun = true
		}

		mm, err := bs.GetMemoryMap()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to get memory map: %w", err))
		}

		attempts++
		err = bs.ExitBootServices(h, mm.Key)
		if err == nil {
			return nil
		}

		if errors.Is(err, uefi.InvalidParameter) {
			return fmt.Errorf("stale memory map key %#x: %w", mm.Key, err)
		}

		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)); err != nil {
		return nil, &ExitError{Attempts: attempts, Err: err}
	}

	return &Departure{entry: entry}, nil
}
