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

package payload

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/stage0/internal/heap"
	"github.com/google/stage0/internal/image"
	"github.com/google/stage0/internal/load"
	"github.com/google/stage0/internal/uefi"
	"golang.org/x/arch/x86/x86asm"
)

// disasmCount is the number of payload instructions decoded by Inspect.
const disasmCount = 4

// Inst is a decoded instruction.
type Inst struct {
	Addr uint64
	Raw  []byte
	Text string
}

func (i Inst) String() string {
	return fmt.Sprintf("%#010x  %-24x  %s", i.Addr, i.Raw, i.Text)
}

// Report describes a stage0 image and where its payload will run.
type Report struct {
	// ImageBase and SizeOfImage give the preferred location of stage0.
	ImageBase   uint64
	SizeOfImage uint64
	Sections    []image.Section
	// Payload is the section holding the next stage.
	Payload image.Section
	// Target is the fixed destination of the payload.
	Target load.Target
	// Overlap is set when the preferred stage0 range and the destination
	// intersect.
	Overlap bool
	// Code holds the first instructions of the payload.
	Code []Inst
}

// Inspect checks that img carries a payload in the section called name, and
// describes what stage0 will do with it when loaded at loadAddr.
func Inspect(img []byte, name string, loadAddr uint64) (*Report, error) {
	mem, err := Layout(img)
	if err != nil {
		return nil, err
	}

	v, err := image.Parse(mem, heap.Scratch(heap.DefaultPages*uefi.PageSize))
	if err != nil {
		return nil, err
	}

	s, err := v.Find(name)
	if err != nil {
		return nil, err
	}

	t, err := load.NewTarget(loadAddr, uint64(s.VirtualSize))
	if err != nil {
		return nil, err
	}

	self := load.Range{Start: v.ImageBase(), Size: uint64(len(mem))}

	return &Report{
		ImageBase:   v.ImageBase(),
		SizeOfImage: uint64(len(mem)),
		Sections:    v.Sections(),
		Payload:     s,
		Target:      t,
		Overlap:     self.Overlaps(t.Range()),
		Code:        Disassemble(v.Bytes(s), loadAddr, disasmCount),
	}, nil
}

// Disassemble decodes up to n x86-64 instructions from code, which is
// located at addr. Undecodable bytes are rendered as .byte directives.
func Disassemble(code []byte, addr uint64, n int) []Inst {
	var r []Inst
	for off := 0; off < len(code) && len(r) < n; {
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			r = append(r, Inst{Addr: addr + uint64(off), Raw: code[off : off+1], Text: fmt.Sprintf(".byte %#02x", code[off])})
			off++
			continue
		}
		r = append(r, Inst{
			Addr: addr + uint64(off),
			Raw:  code[off : off+inst.Len],
			Text: x86asm.IntelSyntax(inst, addr+uint64(off), nil),
		})
		off += inst.Len
	}
	return r
}

// Write prints r in a human readable form.
func (r *Report) Write(w io.Writer) error {
	b := &strings.Builder{}

	fmt.Fprintf(b, "image base %#x, %s in memory\n", r.ImageBase, humanize.IBytes(r.SizeOfImage))
	for _, s := range r.Sections {
		fmt.Fprintf(b, "  %s (%s)\n", s, humanize.IBytes(uint64(s.VirtualSize)))
	}

	fmt.Fprintf(b, "payload %s: %s, %d pages at %#x\n", r.Payload.NameString(), humanize.IBytes(r.Target.Size), r.Target.Pages, r.Target.Address)
	if !r.Payload.Executable() {
		fmt.Fprintf(b, "warning: %s is not executable\n", r.Payload.NameString())
	}
	if r.Overlap {
		fmt.Fprintf(b, "warning: destination %s overlaps the preferred stage0 range %s\n", r.Target.Range(), load.Range{Start: r.ImageBase, Size: r.SizeOfImage})
	}

	for _, i := range r.Code {
		fmt.Fprintf(b, "  %s\n", i)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
