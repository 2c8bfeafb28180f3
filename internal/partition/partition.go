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

// Package partition reads files out of ext4 partitions in disk images, so
// stage1 can be taken straight from the image it is built into.
package partition

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dsoprea/go-ext4"
)

// ErrNotFound is returned when the requested path does not exist.
var ErrNotFound = errors.New("file not found")

// Partition is an ext4 filesystem starting at Offset within a disk image.
type Partition struct {
	// Disk is the disk image, of Size bytes.
	Disk io.ReaderAt
	Size int64
	// Offset is the start of the partition within Disk.
	Offset int64

	pos int64
}

// Read implements io.Reader.
func (p *Partition) Read(b []byte) (int, error) {
	n, err := p.Disk.ReadAt(b, p.pos)
	p.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Seek implements io.Seeker, offsets are relative to the partition start.
func (p *Partition) Seek(offset int64, whence int) (int64, error) {
	var pos int64

	switch whence {
	case io.SeekStart:
		pos = p.Offset + offset
	case io.SeekCurrent:
		pos = p.pos + offset
	case io.SeekEnd:
		pos = p.Size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	if pos > p.Size || pos < p.Offset {
		return 0, fmt.Errorf("invalid offset %d (%d)", pos, offset)
	}

	p.pos = pos

	return pos - p.Offset, nil
}

func (p *Partition) blockGroupDescriptor(inode int) (*ext4.BlockGroupDescriptor, error) {
	if _, err := p.Seek(ext4.Superblock0Offset, io.SeekStart); err != nil {
		return nil, err
	}

	sb, err := ext4.NewSuperblockWithReader(p)
	if err != nil {
		return nil, fmt.Errorf("superblock: %w", err)
	}

	bgdl, err := ext4.NewBlockGroupDescriptorListWithReadSeeker(p, sb)
	if err != nil {
		return nil, fmt.Errorf("block group descriptors: %w", err)
	}

	return bgdl.GetWithAbsoluteInode(inode)
}

// ReadFile returns the contents of the file at fullPath.
func (p *Partition) ReadFile(fullPath string) (buf []byte, err error) {
	// go-ext4 reports malformed structures by panicking
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("corrupted filesystem: %v", r)
		}
	}()

	path := strings.Split(strings.TrimPrefix(fullPath, "/"), "/")

	bgd, err := p.blockGroupDescriptor(ext4.InodeRootDirectory)
	if err != nil {
		return nil, err
	}

	dw, err := ext4.NewDirectoryWalk(p, bgd, ext4.InodeRootDirectory)
	if err != nil {
		return nil, err
	}

	var i, inodeNumber int

	for inodeNumber == 0 {
		name, de, err := dw.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		if name != path[i] {
			continue
		}

		deInode := int(de.Data().Inode)

		if bgd, err = p.blockGroupDescriptor(deInode); err != nil {
			return nil, err
		}

		if i == len(path)-1 {
			inodeNumber = deInode
			break
		}

		if dw, err = ext4.NewDirectoryWalk(p, bgd, deInode); err != nil {
			return nil, err
		}
		i++
	}

	if inodeNumber == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fullPath)
	}

	inode, err := ext4.NewInodeWithReadSeeker(bgd, p, inodeNumber)
	if err != nil {
		return nil, err
	}

	en := ext4.NewExtentNavigatorWithReadSeeker(p, inode)

	return io.ReadAll(ext4.NewInodeReader(en))
}
