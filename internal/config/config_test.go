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

package config

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/stage0/internal/load"
)

func TestParse(t *testing.T) {
	for _, test := range []struct {
		desc    string
		build   Build
		want    Config
		wantErr error
	}{
		{
			desc:  "defaults",
			build: Build{},
			want:  Config{LoadAddress: 0x100000000, SectionName: ".mloader", HeapPages: 10},
		}, {
			desc:  "explicit defaults",
			build: Defaults(),
			want:  Config{LoadAddress: 0x100000000, SectionName: ".mloader", HeapPages: 10},
		}, {
			desc:  "overrides",
			build: Build{LoadAddress: "0X200000", SectionName: ".stage1", HeapPages: "4", Verbose: "true"},
			want:  Config{LoadAddress: 0x200000, SectionName: ".stage1", HeapPages: 4, Verbose: true},
		}, {
			desc:    "bad address",
			build:   Build{LoadAddress: "not-hex"},
			wantErr: load.ErrInvalidAddressFormat,
		}, {
			desc:    "decimal address",
			build:   Build{LoadAddress: "4294967296"},
			wantErr: load.ErrInvalidAddressFormat,
		}, {
			desc:    "unaligned address",
			build:   Build{LoadAddress: "0x100000010"},
			wantErr: load.ErrInvalidAddressFormat,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			got, err := test.build.Parse()
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("Parse = %v, want %v", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("Parse diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, b := range []Build{
		{SectionName: ".toolongname"},
		{HeapPages: "0"},
		{HeapPages: "-1"},
		{HeapPages: "ten"},
		{Verbose: "maybe"},
	} {
		if _, err := b.Parse(); err == nil {
			t.Errorf("%+v: Parse succeeded", b)
		}
	}
}
