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

package container_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/hal/internal/container"
	"github.com/googlegenomics/hal/internal/container/memstore"
)

func TestBlockDataset_ZeroFilled(t *testing.T) {
	c := memstore.New()
	ds, err := c.CreateDataset("g/dna", 2, 10, 4)
	require.NoError(t, err)

	buf := bytes.Repeat([]byte{0xff}, 20)
	require.NoError(t, ds.ReadAt(buf, 0))
	assert.Equal(t, make([]byte, 20), buf)
}

func TestBlockDataset_ReadWriteAcrossBlocks(t *testing.T) {
	testCases := []struct {
		name  string
		chunk uint64
		start uint64
		count int
	}{
		{"inside one block", 4, 1, 2},
		{"spanning blocks", 4, 3, 6},
		{"whole dataset", 4, 0, 10},
		{"trailing short block", 4, 8, 2},
		{"unchunked", 0, 2, 7},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := memstore.New()
			ds, err := c.CreateDataset("d", 3, 10, tc.chunk)
			require.NoError(t, err)

			data := make([]byte, tc.count*3)
			for i := range data {
				data[i] = byte(i + 1)
			}
			require.NoError(t, ds.WriteAt(data, tc.start))

			all := make([]byte, 30)
			require.NoError(t, ds.ReadAt(all, 0))
			want := make([]byte, 30)
			copy(want[tc.start*3:], data)
			assert.Equal(t, want, all)
		})
	}
}

func TestBlockDataset_RangeErrors(t *testing.T) {
	c := memstore.New()
	ds, err := c.CreateDataset("d", 4, 8, 0)
	require.NoError(t, err)

	err = ds.ReadAt(make([]byte, 8), 7)
	assert.True(t, errors.Is(err, container.ErrStorage), "got %v", err)

	err = ds.WriteAt(make([]byte, 3), 0)
	assert.True(t, errors.Is(err, container.ErrStorage), "got %v", err)

	var storageErr *container.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "d", storageErr.Path)
}

func TestBlockContainer_OpenDataset(t *testing.T) {
	c := memstore.New()
	_, err := c.OpenDataset("missing")
	assert.True(t, errors.Is(err, container.ErrNotFound), "got %v", err)

	_, err = c.CreateDataset("/a/b/", 8, 5, 2)
	require.NoError(t, err)
	ds, err := c.OpenDataset("a/b")
	require.NoError(t, err)
	assert.Equal(t, container.Layout{ElementSize: 8, Length: 5, ChunkSize: 2}, ds.Layout())
}

func TestBlockContainer_CreateReplaces(t *testing.T) {
	c := memstore.New()
	ds, err := c.CreateDataset("d", 1, 4, 0)
	require.NoError(t, err)
	require.NoError(t, ds.WriteAt([]byte("ACGT"), 0))

	ds, err = c.CreateDataset("d", 1, 4, 0)
	require.NoError(t, err)
	buf := make([]byte, 4)
	require.NoError(t, ds.ReadAt(buf, 0))
	assert.Equal(t, make([]byte, 4), buf)
}

func TestBlockContainer_Attributes(t *testing.T) {
	c := memstore.New()
	attrs, err := c.Attributes("genomes/human")
	require.NoError(t, err)
	assert.Empty(t, attrs)

	require.NoError(t, c.SetAttributes("genomes/human", map[string]string{"species": "Homo sapiens"}))
	attrs, err = c.Attributes("genomes/human")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"species": "Homo sapiens"}, attrs)

	require.NoError(t, c.Remove("genomes"))
	attrs, err = c.Attributes("genomes/human")
	require.NoError(t, err)
	assert.Empty(t, attrs)
}

func TestBlockContainer_ReadOnly(t *testing.T) {
	store := memstore.NewStore()
	rw := container.NewBlockContainer(store, container.BlockOptions{})
	_, err := rw.CreateDataset("d", 1, 4, 0)
	require.NoError(t, err)

	ro := container.NewBlockContainer(store, container.BlockOptions{ReadOnly: true})
	_, err = ro.CreateDataset("e", 1, 4, 0)
	assert.True(t, errors.Is(err, container.ErrReadOnly))
	assert.True(t, errors.Is(ro.SetAttributes("g", nil), container.ErrReadOnly))
	assert.True(t, errors.Is(ro.Remove("d"), container.ErrReadOnly))

	ds, err := ro.OpenDataset("d")
	require.NoError(t, err)
	assert.True(t, errors.Is(ds.WriteAt([]byte{1}, 0), container.ErrReadOnly))
}

func TestZstdCodec(t *testing.T) {
	codec, err := container.CodecByName("zstd")
	require.NoError(t, err)

	store := memstore.NewStore()
	c := container.NewBlockContainer(store, container.BlockOptions{Codec: codec})
	ds, err := c.CreateDataset("dna", 1, 4096, 1024)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("ACGT"), 1024)
	require.NoError(t, ds.WriteAt(data, 0))

	stored, err := store.Get("dna/000000000000")
	require.NoError(t, err)
	assert.Less(t, len(stored), 1024)

	got := make([]byte, len(data))
	require.NoError(t, ds.ReadAt(got, 0))
	assert.Equal(t, data, got)

	_, err = container.CodecByName("lz4")
	assert.Error(t, err)
}

func TestCodecByName(t *testing.T) {
	testCases := []struct {
		name string
		want string
	}{
		{"", "raw"},
		{"raw", "raw"},
		{"none", "raw"},
		{"zstd", "zstd"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			codec, err := container.CodecByName(tc.name)
			require.NoError(t, err)
			got, want := codec.Name(), tc.want
			assert.Equal(t, want, got)
		})
	}
}

func TestBlockContainer_DatasetKeepsCodec(t *testing.T) {
	zstd, err := container.CodecByName("zstd")
	require.NoError(t, err)

	store := memstore.NewStore()
	w := container.NewBlockContainer(store, container.BlockOptions{Codec: zstd})
	ds, err := w.CreateDataset("dna", 1, 4096, 1024)
	require.NoError(t, err)
	data := bytes.Repeat([]byte("ACGT"), 1024)
	require.NoError(t, ds.WriteAt(data, 0))

	layout, err := store.Get("dna/.layout")
	require.NoError(t, err)
	assert.Contains(t, string(layout), `"codec":"zstd"`)

	// A container configured without compression still decodes the
	// dataset, and datasets it creates stay raw.
	r := container.NewBlockContainer(store, container.BlockOptions{})
	ds, err = r.OpenDataset("dna")
	require.NoError(t, err)
	got := make([]byte, len(data))
	require.NoError(t, ds.ReadAt(got, 0))
	assert.Equal(t, data, got)

	raw, err := r.CreateDataset("bases", 1, 4, 4)
	require.NoError(t, err)
	require.NoError(t, raw.WriteAt([]byte("ACGT"), 0))
	stored, err := store.Get("bases/000000000000")
	require.NoError(t, err)
	assert.Equal(t, "ACGT", string(stored))

	require.NoError(t, store.Put("bad/.layout", []byte(`{"elementSize":1,"length":4,"chunkSize":4,"codec":"lz4"}`)))
	_, err = r.OpenDataset("bad")
	assert.Error(t, err)
}
