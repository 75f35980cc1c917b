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

// Package memstore provides an in-memory container, used for scratch
// alignments and tests.
package memstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/googlegenomics/hal/internal/container"
)

// Store is an in-memory container.BlockStore.  It counts the calls made to
// it so that callers can observe I/O patterns.
type Store struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// Gets and Puts count successful Get and Put calls.
	Gets, Puts int
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// New returns an empty in-memory container.
func New() *container.BlockContainer {
	return container.NewBlockContainer(NewStore(), container.BlockOptions{})
}

// Get implements container.BlockStore.
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, container.ErrNotFound)
	}
	s.Gets++
	return append([]byte(nil), data...), nil
}

// Put implements container.BlockStore.
func (s *Store) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	s.Puts++
	return nil
}

// DeletePrefix implements container.BlockStore.
func (s *Store) DeletePrefix(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			delete(s.blobs, key)
		}
	}
	return nil
}

// Close implements container.BlockStore.
func (s *Store) Close() error {
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.blobs))
	for key := range s.blobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
