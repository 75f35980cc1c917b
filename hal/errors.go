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

package hal

import (
	"errors"

	"github.com/googlegenomics/hal/internal/container"
	"github.com/googlegenomics/hal/internal/pagedarray"
)

// NullIndex marks an absent segment link.
const NullIndex int64 = -1

var (
	// ErrInvalidLayout is returned for illegal array chunking.
	ErrInvalidLayout = pagedarray.ErrInvalidLayout

	// ErrOutOfRange is returned for indexes or positions beyond the end of
	// an array, genome or iteration.
	ErrOutOfRange = pagedarray.ErrOutOfRange

	// ErrStorage matches every failure of the backing container.
	ErrStorage = container.ErrStorage

	// ErrNotFound is returned when a named genome, sequence or dataset does
	// not exist.
	ErrNotFound = container.ErrNotFound

	// ErrReadOnly is returned by mutating calls on a read-only alignment.
	ErrReadOnly = container.ErrReadOnly

	// ErrInconsistentTopology is returned when the genome tree would not be
	// a tree, or when stored records disagree with it.
	ErrInconsistentTopology = errors.New("inconsistent topology")

	// ErrStaleIterator is returned by iterators used after the dimensions of
	// their genome changed.
	ErrStaleIterator = errors.New("genome changed under iterator")
)

// StorageError describes a failed container operation.
type StorageError = container.StorageError
