// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pagedarray provides a fixed-size record array stored in a
// container dataset of which only one page is held in memory at a time.
//
// All genome arrays (DNA, top segments, bottom segments) are accessed through
// an Array.  Accesses outside the resident page flush it if it was modified
// and then read the page containing the requested index.  Pages are aligned
// to the chunk size of the dataset, so sequential scans touch each storage
// chunk once.
package pagedarray

import (
	"errors"
	"fmt"
	"path"

	"github.com/googlegenomics/hal/internal/container"
	"github.com/googlegenomics/hal/internal/metrics"
)

var (
	// ErrInvalidLayout is returned for chunk sizes of one or chunk sizes
	// larger than the array.
	ErrInvalidLayout = errors.New("invalid array layout")

	// ErrOutOfRange is returned for indexes beyond the end of the array.
	ErrOutOfRange = errors.New("index out of range")

	// ErrClosed is returned when an array is used after Close.
	ErrClosed = errors.New("array is closed")
)

// Stats counts the container I/O performed by an Array.
type Stats struct {
	PageLoads int
	Flushes   int
}

// Array is a paged view of a container dataset.  It is not safe for
// concurrent use.
type Array struct {
	ds       container.Dataset
	label    string
	size     uint64
	elemSize int
	chunk    uint64
	pageSize uint64

	// The resident page covers elements [bufStart, bufEnd).
	bufStart uint64
	bufEnd   uint64
	buf      []byte
	dirty    bool
	closed   bool

	stats Stats
}

func checkChunk(chunk, n uint64) error {
	if chunk == 1 {
		return fmt.Errorf("chunk size of 1: %w", ErrInvalidLayout)
	}
	if chunk > n {
		return fmt.Errorf("chunk size %d exceeds array size %d: %w", chunk, n, ErrInvalidLayout)
	}
	return nil
}

func newArray(ds container.Dataset, label string, chunk uint64) *Array {
	layout := ds.Layout()
	a := &Array{
		ds:       ds,
		label:    label,
		size:     layout.Length,
		elemSize: layout.ElementSize,
		chunk:    chunk,
		pageSize: chunk,
	}
	if chunk == 0 {
		a.pageSize = layout.Length
	}
	a.bufEnd = a.clamp(a.pageSize)
	a.buf = make([]byte, int(a.pageSize)*a.elemSize)
	return a
}

func (a *Array) clamp(end uint64) uint64 {
	if end > a.size {
		return a.size
	}
	return end
}

// Create creates a zero-filled dataset of n records of elementSize bytes at
// path and returns an array over it.  A chunkHint of zero requests an
// unchunked dataset, which is paged in as a whole.
func Create(c container.Container, p string, elementSize int, n, chunkHint uint64) (*Array, error) {
	if err := checkChunk(chunkHint, n); err != nil {
		return nil, fmt.Errorf("creating %s: %w", p, err)
	}
	ds, err := c.CreateDataset(p, elementSize, n, chunkHint)
	if err != nil {
		return nil, err
	}
	return newArray(ds, path.Base(p), chunkHint), nil
}

// Load opens the existing dataset at path.  The resident page spans
// pagesPerBuffer storage chunks.
func Load(c container.Container, p string, pagesPerBuffer uint64) (*Array, error) {
	ds, err := c.OpenDataset(p)
	if err != nil {
		return nil, err
	}
	return load(ds, path.Base(p), pagesPerBuffer)
}

// LoadDataset is like Load for an already opened dataset.  The name labels
// the paging metrics of the array.
func LoadDataset(ds container.Dataset, name string, pagesPerBuffer uint64) (*Array, error) {
	return load(ds, name, pagesPerBuffer)
}

// FitPagesPerBuffer returns the largest multiplier no greater than
// pagesPerBuffer that yields a valid page size for layout.
func FitPagesPerBuffer(layout container.Layout, pagesPerBuffer uint64) uint64 {
	if pagesPerBuffer == 0 {
		pagesPerBuffer = 1
	}
	if layout.ChunkSize == 0 {
		return 1
	}
	if max := layout.Length / layout.ChunkSize; pagesPerBuffer > max {
		pagesPerBuffer = max
	}
	if pagesPerBuffer == 0 {
		pagesPerBuffer = 1
	}
	return pagesPerBuffer
}

func load(ds container.Dataset, label string, pagesPerBuffer uint64) (*Array, error) {
	if pagesPerBuffer == 0 {
		pagesPerBuffer = 1
	}
	layout := ds.Layout()
	chunk := layout.ChunkSize * pagesPerBuffer
	if err := checkChunk(chunk, layout.Length); err != nil {
		return nil, fmt.Errorf("loading %s: %w", label, err)
	}
	a := newArray(ds, label, chunk)
	if a.size > 0 {
		if err := a.page(0); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Len returns the number of records in the array.
func (a *Array) Len() uint64 { return a.size }

// ElementSize returns the size of each record in bytes.
func (a *Array) ElementSize() int { return a.elemSize }

// ChunkSize returns the number of records per page, or zero if the array is
// paged in as a whole.
func (a *Array) ChunkSize() uint64 { return a.chunk }

// Stats returns the I/O counts of the array.
func (a *Array) Stats() Stats { return a.stats }

func (a *Array) locate(i uint64) ([]byte, error) {
	if a.closed {
		return nil, ErrClosed
	}
	if i >= a.size {
		return nil, fmt.Errorf("%s[%d] of %d: %w", a.label, i, a.size, ErrOutOfRange)
	}
	if i < a.bufStart || i >= a.bufEnd {
		if err := a.page(i); err != nil {
			return nil, err
		}
	}
	off := int(i-a.bufStart) * a.elemSize
	return a.buf[off : off+a.elemSize : off+a.elemSize], nil
}

// Get returns record i.  The slice aliases the resident page and is only
// valid until the next access to the array.
func (a *Array) Get(i uint64) ([]byte, error) {
	return a.locate(i)
}

// Update returns a mutable view of record i and marks the page dirty.
func (a *Array) Update(i uint64) ([]byte, error) {
	rec, err := a.locate(i)
	if err != nil {
		return nil, err
	}
	a.dirty = true
	return rec, nil
}

// Set replaces record i.
func (a *Array) Set(i uint64, rec []byte) error {
	if len(rec) != a.elemSize {
		return fmt.Errorf("record of %d bytes for %s with element size %d", len(rec), a.label, a.elemSize)
	}
	dst, err := a.Update(i)
	if err != nil {
		return err
	}
	copy(dst, rec)
	return nil
}

// Write flushes the resident page if it was modified.
func (a *Array) Write() error {
	if a.closed {
		return ErrClosed
	}
	if !a.dirty {
		return nil
	}
	n := int(a.bufEnd-a.bufStart) * a.elemSize
	if err := a.ds.WriteAt(a.buf[:n], a.bufStart); err != nil {
		return err
	}
	a.dirty = false
	a.stats.Flushes++
	metrics.PageFlushes.WithLabelValues(a.label).Inc()
	return nil
}

// page makes the page containing i resident.
func (a *Array) page(i uint64) error {
	if err := a.Write(); err != nil {
		return err
	}
	start := (i / a.pageSize) * a.pageSize
	end := a.clamp(start + a.pageSize)
	n := int(end-start) * a.elemSize
	if err := a.ds.ReadAt(a.buf[:n], start); err != nil {
		return err
	}
	a.bufStart, a.bufEnd = start, end
	a.dirty = false
	a.stats.PageLoads++
	metrics.PageLoads.WithLabelValues(a.label).Inc()
	return nil
}

// Close flushes the resident page and releases it.  The array cannot be
// used afterwards.
func (a *Array) Close() error {
	if a.closed {
		return nil
	}
	err := a.Write()
	a.closed = true
	a.buf = nil
	return err
}
