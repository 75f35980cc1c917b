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

// Package container defines the capability interface of the hierarchical
// binary store that persists alignment arrays and metadata groups, along
// with shared helpers used by the concrete backends.
//
// A container holds named, typed, optionally chunked one-dimensional
// datasets of fixed-size records, and named groups of string attributes.
// Paths are slash separated ("genomes/human/dna").  Backends must return
// zero-filled records for any range of a freshly created dataset that has
// not been written yet.
package container

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a dataset does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("storage error")

	// ErrReadOnly is returned by mutating calls on a read-only container.
	ErrReadOnly = errors.New("container is read-only")
)

// Dataset is a one-dimensional array of fixed-size records.
type Dataset interface {
	// Layout returns the element size, length and chunking of the dataset.
	Layout() Layout

	// ReadAt fills buf with len(buf)/ElementSize records starting at
	// element index start.
	ReadAt(buf []byte, start uint64) error

	// WriteAt stores the records in buf starting at element index start.
	WriteAt(buf []byte, start uint64) error
}

// Container is the capability interface implemented by storage backends.
type Container interface {
	// CreateDataset creates (or replaces) a zero-filled dataset at path.  A
	// chunk size of zero requests an unchunked layout.
	CreateDataset(path string, elementSize int, length, chunkSize uint64) (Dataset, error)

	// OpenDataset opens an existing dataset.  The error wraps ErrNotFound if
	// there is no dataset at path.
	OpenDataset(path string) (Dataset, error)

	// Remove deletes the dataset or group at path and everything below it.
	Remove(path string) error

	// Attributes returns a copy of the attributes stored for group.  A group
	// that was never written has no attributes.
	Attributes(group string) (map[string]string, error)

	// SetAttributes replaces the attributes stored for group.
	SetAttributes(group string, attrs map[string]string) error

	// Flush persists any buffered state.
	Flush() error

	// Close flushes and releases the container.
	Close() error
}

// Layout describes the shape of a dataset.
type Layout struct {
	ElementSize int    `json:"elementSize"`
	Length      uint64 `json:"length"`
	ChunkSize   uint64 `json:"chunkSize"`
}

// Validate checks that the layout is well formed.  Chunk size policy is
// enforced by the paged array, not here.
func (l Layout) Validate() error {
	if l.ElementSize <= 0 {
		return fmt.Errorf("invalid element size %d", l.ElementSize)
	}
	return nil
}

// CheckRange verifies that buf holds a whole number of records and that the
// records starting at start fit inside the dataset.  It returns the number of
// records covered by buf.
func (l Layout) CheckRange(buf []byte, start uint64) (uint64, error) {
	if len(buf)%l.ElementSize != 0 {
		return 0, fmt.Errorf("buffer of %d bytes is not a multiple of element size %d", len(buf), l.ElementSize)
	}
	count := uint64(len(buf) / l.ElementSize)
	if start+count > l.Length {
		return 0, fmt.Errorf("range [%d, %d) exceeds dataset length %d", start, start+count, l.Length)
	}
	return count, nil
}

// StorageError records a failed operation against the backing store.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// NewStorageError wraps err as a *StorageError unless it is nil.
func NewStorageError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Path: path, Err: err}
}

// CleanPath normalises a dataset or group path.
func CleanPath(path string) string {
	return strings.Trim(path, "/")
}

// EncodeAttributes serialises an attribute group.
func EncodeAttributes(attrs map[string]string) ([]byte, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return json.Marshal(attrs)
}

// DecodeAttributes parses the output of EncodeAttributes.
func DecodeAttributes(data []byte) (map[string]string, error) {
	attrs := make(map[string]string)
	if len(data) == 0 {
		return attrs, nil
	}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("decoding attributes: %v", err)
	}
	return attrs, nil
}

// CopyAttributes returns a shallow copy of attrs that is never nil.
func CopyAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
