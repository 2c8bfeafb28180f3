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

//go:build tamago && amd64

package uefi

import (
	"sync/atomic"
	"unicode/utf16"
	"unsafe"
)

// EFI Simple Text Output Protocol offsets
const outputString = 0x08

// Console writes to EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.
//
// Once detached all writes are silently discarded, as the protocol must not
// be used after boot services have been exited.
type Console struct {
	conOut   uint64
	detached atomic.Bool
	line     []byte
	// UTF-16 output, kept in the Console so that firmware is never handed
	// a stack address
	text []uint16
}

// NewConsole returns the firmware console output of s.
func NewConsole(s *Services) *Console {
	return &Console{conOut: s.ConsoleOut()}
}

// Detach permanently disables the console.
func (c *Console) Detach() {
	c.detached.Store(true)
}

// WriteByte buffers c until a newline is seen, it is meant to back
// runtime.printk.
func (c *Console) WriteByte(b byte) error {
	c.line = append(c.line, b)

	if b == '\n' {
		c.Write(c.line)
		c.line = c.line[:0]
	}

	return nil
}

// Write implements io.Writer.
func (c *Console) Write(p []byte) (int, error) {
	if c.detached.Load() || c.conOut == 0 {
		return len(p), nil
	}

	s := c.text[:0]

	for _, r := range string(p) {
		if r == '\n' {
			s = append(s, '\r')
		}
		s = utf16.AppendRune(s, r)
	}

	s = append(s, 0)
	c.text = s

	var a [6]uint64
	a[0] = c.conOut
	a[1] = ptrval(unsafe.Pointer(&c.text[0]))
	callService(c.conOut+outputString, &a)

	return len(p), nil
}
