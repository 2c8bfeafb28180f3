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

package uefi

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseStatus(t *testing.T) {
	for _, test := range []struct {
		desc    string
		status  uint64
		wantErr error
	}{
		{
			desc:   "success",
			status: 0,
		}, {
			desc:   "warning",
			status: 4, // EFI_WARN_BUFFER_TOO_SMALL
		}, {
			desc:    "invalid parameter",
			status:  1<<63 | 2,
			wantErr: InvalidParameter,
		}, {
			desc:    "not found",
			status:  1<<63 | 14,
			wantErr: NotFound,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			err := parseStatus(test.status)
			if test.wantErr == nil {
				if err != nil {
					t.Fatalf("parseStatus(%#x) = %v, want nil", test.status, err)
				}
				return
			}
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("parseStatus(%#x) = %v, want %v", test.status, err, test.wantErr)
			}
		})
	}
}

func TestStatusWrapping(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrExitServices, InvalidParameter)
	if !errors.Is(err, InvalidParameter) {
		t.Errorf("errors.Is(%v, InvalidParameter) = false", err)
	}
	if !errors.Is(err, ErrExitServices) {
		t.Errorf("errors.Is(%v, ErrExitServices) = false", err)
	}
	if got, want := err.Error(), "exit boot services failed: EFI_INVALID_PARAMETER"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStatusString(t *testing.T) {
	for _, test := range []struct {
		s    Status
		want string
	}{
		{s: AccessDenied, want: "EFI_ACCESS_DENIED"},
		{s: Status(1<<63 | 0x99), want: "EFI error 0x99"},
		{s: Status(3), want: "EFI warning 0x3"},
	} {
		if got := test.s.Error(); got != test.want {
			t.Errorf("Status(%#x).Error() = %q, want %q", uint64(test.s), got, test.want)
		}
	}
}

func TestPages(t *testing.T) {
	for _, test := range []struct {
		size uint64
		want uint64
	}{
		{size: 0, want: 0},
		{size: 1, want: 1},
		{size: 4096, want: 1},
		{size: 4097, want: 2},
		{size: 2535424, want: 619},
	} {
		if got := Pages(test.size); got != test.want {
			t.Errorf("Pages(%d) = %d, want %d", test.size, got, test.want)
		}
	}
}
