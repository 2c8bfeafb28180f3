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
package impl

import (
	"testing"

	"github.com/google/stage0/internal/load"
	"github.com/google/stage0/internal/uefi"
)

func TestRunPlacement(t *testing.T) {
	for _, test := range []struct {
		desc     string
		address  string
		wantFree bool
		wantType string
	}{
		{
			desc:     "above 4GB",
			address:  "0x100000000",
			wantFree: true,
			wantType: "System RAM",
		}, {
			desc:     "low memory",
			address:  "0x200000",
			wantFree: true,
			wantType: "System RAM",
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			o := opts()
			o.LoadAddress = test.address

			r, err := Run(writeImage(t, []byte{0xf4}), o)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			p := r.Placement
			if p == nil {
				t.Fatal("no placement reported")
			}
			if want := (load.Range{Start: r.Entry, Size: uefi.PageSize}); p.Target != want {
				t.Errorf("Target = %s, want %s", p.Target, want)
			}
			if p.Free != test.wantFree {
				t.Errorf("Free = %t, want %t", p.Free, test.wantFree)
			}
			if len(p.Regions) != 1 || p.Regions[0].Type != test.wantType {
				t.Errorf("Regions = %v, want a single %q region", p.Regions, test.wantType)
			}
		})
	}
}
