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

//go:build tamago

package heap

import (
	"github.com/usbarmory/tamago/dma"
)

// defaultRegion manages the firmware pages with a TamaGo DMA region. The
// pages must lie outside of the Go runtime memory, see ReserveRuntime.
func defaultRegion(addr uint64, mem []byte) (Region, error) {
	return dma.NewRegion(uint(addr), len(mem), false)
}
