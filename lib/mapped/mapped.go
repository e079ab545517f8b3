// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

// Package mapped provides read-only memory-mapped file access.
//
// Both archive formats Blockzilla works with (the content-addressed
// input archive and the compact epoch output) are read through memory
// maps: readers hand out byte slices that alias the mapping directly,
// so there is no copy and no syscall on the hot path. The mapping is
// PROT_READ — any write through a returned slice faults.
package mapped

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// File is a file opened through a read-only memory mapping.
//
// A File is safe for concurrent reads. All slices returned by Bytes
// alias the mapping and become invalid when Close is called — callers
// that hold views must keep the File open for the lifetime of those
// views.
type File struct {
	fd   int
	data []byte
	size int64
}

// Open memory-maps the file at path read-only. An empty file is valid
// and yields a zero-length mapping.
func Open(path string) (*File, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stating %s: %w", path, err)
	}

	if stat.Size == 0 {
		return &File{fd: fd}, nil
	}

	data, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("memory-mapping %s: %w", path, err)
	}

	return &File{fd: fd, data: data, size: stat.Size}, nil
}

// Bytes returns the full mapped contents. The slice aliases the
// mapping; it must not be written to and must not outlive the File.
func (f *File) Bytes() []byte {
	return f.data
}

// Len returns the mapped file size in bytes.
func (f *File) Len() int64 {
	return f.size
}

// Close unmaps the file and closes the descriptor. All slices
// previously returned by Bytes are invalid after Close.
func (f *File) Close() error {
	var firstErr error
	if f.data != nil {
		if err := unix.Munmap(f.data); err != nil {
			firstErr = fmt.Errorf("unmapping: %w", err)
		}
		f.data = nil
	}
	if f.fd >= 0 {
		if err := unix.Close(f.fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing: %w", err)
		}
		f.fd = -1
	}
	return firstErr
}
