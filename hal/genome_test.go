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

package hal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/container"
	"github.com/googlegenomics/hal/internal/container/filestore"
	"github.com/googlegenomics/hal/internal/container/memstore"
	"github.com/googlegenomics/hal/internal/haltest"
)

func TestSetDimensions(t *testing.T) {
	a, err := hal.Create(memstore.New(), hal.Options{PagesPerBuffer: 2, ChunkSize: 3})
	require.NoError(t, err)
	g, err := a.AddRootGenome("R")
	require.NoError(t, err)

	assert.Equal(t, int64(0), g.Length())
	assert.Equal(t, 0, g.NumSequences())

	require.NoError(t, g.SetDimensions([]hal.SequenceInfo{
		{Name: "chr1", Length: 6, NumBottom: 2},
		{Name: "chr2", Length: 4, NumBottom: 1},
	}))
	assert.Equal(t, int64(10), g.Length())
	assert.Equal(t, int64(3), g.NumBottomSegments())
	assert.Equal(t, int64(0), g.NumTopSegments())

	chr2, err := g.SequenceByName("chr2")
	require.NoError(t, err)
	assert.Equal(t, int64(6), chr2.Start())
	assert.Equal(t, int64(10), chr2.End())
	assert.Equal(t, int64(2), chr2.BottomSegmentStart())
	assert.Equal(t, "R.chr2", chr2.FullName())

	b, err := g.BottomSegment(2)
	require.NoError(t, err)
	assert.Equal(t, int64(6), b.Start, "segments start at their sequence")
	assert.Equal(t, hal.NullIndex, b.TopParseIndex)

	testCases := []struct {
		pos  int64
		want string
	}{
		{0, "chr1"},
		{5, "chr1"},
		{6, "chr2"},
		{9, "chr2"},
	}
	for _, tc := range testCases {
		s, err := g.SequenceBySite(tc.pos)
		require.NoError(t, err)
		assert.Equal(t, tc.want, s.Name(), "position %d", tc.pos)
	}
	_, err = g.SequenceBySite(10)
	assert.ErrorIs(t, err, hal.ErrOutOfRange)
	_, err = g.SequenceByName("chrX")
	assert.ErrorIs(t, err, hal.ErrNotFound)

	invalid := [][]hal.SequenceInfo{
		{{Name: "", Length: 1}},
		{{Name: "a", Length: 1}, {Name: "a", Length: 2}},
		{{Name: "a", Length: -1}},
		{{Name: "a", Length: 0, NumTop: 1}},
	}
	for _, seqs := range invalid {
		assert.Error(t, g.SetDimensions(seqs), "%+v", seqs)
	}
}

func TestUpdateDimensions(t *testing.T) {
	a := haltest.Build(t, haltest.StarTree()...)
	g := openGenomes(t, a, "A")[0]

	it := g.TopSegmentIterator(0)
	dna := g.DNAIterator(3)

	seqs := []hal.SequenceInfo{{Name: "a1", Length: 10, NumTop: 2, NumBottom: 1}}
	require.NoError(t, g.UpdateTopDimensions(seqs))
	assert.Equal(t, int64(2), g.NumTopSegments())

	_, err := it.Segment()
	assert.ErrorIs(t, err, hal.ErrStaleIterator)
	_, err = dna.Base()
	assert.ErrorIs(t, err, hal.ErrStaleIterator)

	got, err := g.DNAString(0, 10)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGTAC", got, "bases survive")

	b, err := g.BottomSegment(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Children[0].Index, "bottom segments survive")

	err = g.UpdateBottomDimensions([]hal.SequenceInfo{{Name: "a1", Length: 11}})
	assert.Error(t, err, "sequence lengths must not change")
}

func TestGenomePersists(t *testing.T) {
	testCases := []struct {
		name string
		open func(t *testing.T) (func() container.Container, func() container.Container)
	}{
		{
			name: "memstore",
			open: func(t *testing.T) (func() container.Container, func() container.Container) {
				store := memstore.NewStore()
				codec, err := container.CodecByName("zstd")
				require.NoError(t, err)
				c := func() container.Container {
					return container.NewBlockContainer(store, container.BlockOptions{Codec: codec})
				}
				return c, c
			},
		},
		{
			name: "filestore",
			open: func(t *testing.T) (func() container.Container, func() container.Container) {
				dir := t.TempDir()
				rw := func() container.Container {
					c, err := filestore.Open(dir, filestore.Options{})
					require.NoError(t, err)
					return c
				}
				ro := func() container.Container {
					c, err := filestore.Open(dir, filestore.Options{ReadOnly: true})
					require.NoError(t, err)
					return c
				}
				return rw, ro
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rw, ro := tc.open(t)
			a := haltest.BuildIn(t, rw(), haltest.StarTree()...)
			c := openGenomes(t, a, "C")[0]
			require.NoError(t, c.Metadata().Set("species", "C. elegans"))
			require.NoError(t, a.Metadata().Set("source", "test"))
			require.NoError(t, a.Close())

			b, err := hal.Open(ro(), hal.Options{ReadOnly: true, PagesPerBuffer: 1})
			require.NoError(t, err)
			defer b.Close()

			assert.Equal(t, []string{"R", "A", "C", "B"}, b.GenomeNames())
			v, ok := b.Metadata().Get("source")
			assert.True(t, ok)
			assert.Equal(t, "test", v)

			for _, fg := range haltest.StarTree() {
				g, err := b.OpenGenome(fg.Name)
				require.NoError(t, err)
				got, err := g.DNAString(0, g.Length())
				require.NoError(t, err)
				assert.Equal(t, fg.DNA, got, fg.Name)
				for i, want := range fg.Top {
					got, err := g.TopSegment(int64(i))
					require.NoError(t, err)
					assert.Equal(t, want, got, "%s top %d", fg.Name, i)
				}
				for i, want := range fg.Bottom {
					got, err := g.BottomSegment(int64(i))
					require.NoError(t, err)
					assert.Equal(t, want, got, "%s bottom %d", fg.Name, i)
				}
			}

			g, err := b.OpenGenome("C")
			require.NoError(t, err)
			v, ok = g.Metadata().Get("species")
			assert.True(t, ok)
			assert.Equal(t, "C. elegans", v)
			assert.ErrorIs(t, g.Metadata().Set("species", "x"), hal.ErrReadOnly)
			assert.ErrorIs(t, g.SetBase(0, 'A'), hal.ErrReadOnly)
		})
	}
}

func TestOpenEmptyContainer(t *testing.T) {
	_, err := hal.Open(memstore.New(), hal.DefaultOptions())
	assert.ErrorIs(t, err, hal.ErrNotFound)
}

func TestSegmentRecords(t *testing.T) {
	a := haltest.Build(t, haltest.StarTree()...)
	r, c := openGenomes(t, a, "R", "C")[0], openGenomes(t, a, "C")[0]

	_, err := r.TopSegment(0)
	assert.ErrorIs(t, err, hal.ErrOutOfRange, "root has no top segments")
	_, err = c.BottomSegment(0)
	assert.ErrorIs(t, err, hal.ErrOutOfRange)

	err = r.SetBottomSegment(0, hal.NewBottomSegment(0, 1))
	assert.ErrorIs(t, err, hal.ErrInconsistentTopology, "one link per child")

	lo, hi, err := r.BottomSegmentIterator(0).Interval()
	require.NoError(t, err)
	assert.Equal(t, [2]int64{0, 10}, [2]int64{lo, hi})
}

func TestBase(t *testing.T) {
	a := haltest.Build(t, haltest.StarTree()...)
	c := openGenomes(t, a, "C")[0]

	got, err := c.Base(5)
	require.NoError(t, err)
	assert.Equal(t, byte('T'), got)

	_, err = c.Base(10)
	assert.ErrorIs(t, err, hal.ErrOutOfRange)
	assert.ErrorIs(t, c.SetBase(-1, 'A'), hal.ErrOutOfRange)
	assert.Error(t, c.SetString("ACGT"))

	seq := c.Sequences()[0]
	dna, err := seq.DNAString()
	require.NoError(t, err)
	assert.Equal(t, "ACGTATGTAC", dna)
}
