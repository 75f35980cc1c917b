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
	"fmt"
	"sort"

	"github.com/googlegenomics/hal/internal/container"
)

// Metadata is a string key/value store kept in a container attribute group.
// Changes are buffered until Write.
type Metadata struct {
	c        container.Container
	group    string
	readOnly bool
	values   map[string]string
	dirty    bool
}

func loadMetadata(c container.Container, group string, readOnly bool) (*Metadata, error) {
	values, err := c.Attributes(group)
	if err != nil {
		return nil, err
	}
	return &Metadata{c: c, group: group, readOnly: readOnly, values: values}, nil
}

// Get returns the value stored for key.
func (m *Metadata) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set stores value for key.
func (m *Metadata) Set(key, value string) error {
	if m.readOnly {
		return fmt.Errorf("setting metadata %q: %w", key, ErrReadOnly)
	}
	if old, ok := m.values[key]; ok && old == value {
		return nil
	}
	m.values[key] = value
	m.dirty = true
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *Metadata) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Write persists pending changes.
func (m *Metadata) Write() error {
	if !m.dirty {
		return nil
	}
	if err := m.c.SetAttributes(m.group, m.values); err != nil {
		return err
	}
	m.dirty = false
	return nil
}
