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

package badgerstore

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/hal/internal/container"
)

func TestStore_GetPut(t *testing.T) {
	s, err := OpenStore(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get("missing")
	assert.True(t, errors.Is(err, container.ErrNotFound), "got %v", err)

	require.NoError(t, s.Put("a/1", []byte("one")))
	require.NoError(t, s.Put("a/2", []byte("two")))
	require.NoError(t, s.Put("b/1", []byte("three")))

	got, err := s.Get("a/2")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	require.NoError(t, s.DeletePrefix("a/"))
	_, err = s.Get("a/1")
	assert.True(t, errors.Is(err, container.ErrNotFound))
	got, err = s.Get("b/1")
	require.NoError(t, err)
	assert.Equal(t, []byte("three"), got)
}

func TestOpen_Container(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.Compression = "zstd"
	c, err := Open(cfg)
	require.NoError(t, err)
	defer c.Close()

	ds, err := c.CreateDataset("genomes/mouse/dna", 1, 1000, 100)
	require.NoError(t, err)
	data := bytes.Repeat([]byte("ACGTN"), 200)
	require.NoError(t, ds.WriteAt(data, 0))

	ds, err = c.OpenDataset("genomes/mouse/dna")
	require.NoError(t, err)
	got := make([]byte, 250)
	require.NoError(t, ds.ReadAt(got, 375))
	assert.Equal(t, data[375:625], got)
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, c.SetAttributes("meta", map[string]string{"version": "2.2"}))
	require.NoError(t, c.Close())

	cfg := DefaultConfig(dir)
	cfg.ReadOnly = true
	c, err = Open(cfg)
	require.NoError(t, err)
	defer c.Close()

	attrs, err := c.Attributes("meta")
	require.NoError(t, err)
	assert.Equal(t, "2.2", attrs["version"])
	assert.True(t, errors.Is(c.SetAttributes("meta", nil), container.ErrReadOnly))
}

func TestOpen_BadCompression(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.Compression = "brotli"
	_, err := Open(cfg)
	assert.Error(t, err)
}
