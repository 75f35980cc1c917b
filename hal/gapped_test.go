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
	"github.com/googlegenomics/hal/internal/haltest"
)

// gapTree has a child G that starts with two unaligned bases before a copy
// of its ten base parent.
func gapTree() []haltest.Genome {
	tops := haltest.Tops(haltest.Link{Start: 0, Parent: hal.NullIndex, Reversed: false}, haltest.Link{Start: 2, Parent: 0, Reversed: false})
	return []haltest.Genome{
		{
			Name:      "P",
			Sequences: []hal.SequenceInfo{{Name: "p1", Length: 10, NumBottom: 1}},
			DNA:       "ACGTACGTAC",
			Bottom:    haltest.Bottoms([]int64{0}, tops),
		},
		{
			Name:      "G",
			Parent:    "P",
			Sequences: []hal.SequenceInfo{{Name: "g1", Length: 12, NumTop: 2}},
			DNA:       "TTACGTACGTAC",
			Top:       tops,
		},
	}
}

// translocationTree has a child G whose halves come from different parent
// sequences.
func translocationTree() []haltest.Genome {
	tops := haltest.Tops(haltest.Link{Start: 0, Parent: 0, Reversed: false}, haltest.Link{Start: 5, Parent: 2, Reversed: false})
	return []haltest.Genome{
		{
			Name: "P",
			Sequences: []hal.SequenceInfo{
				{Name: "p1", Length: 10, NumBottom: 2},
				{Name: "p2", Length: 10, NumBottom: 2},
			},
			DNA:    "AAAAACCCCCGGGGGTTTTT",
			Bottom: haltest.Bottoms([]int64{0, 5, 10, 15}, tops),
		},
		{
			Name:      "G",
			Parent:    "P",
			Sequences: []hal.SequenceInfo{{Name: "g1", Length: 10, NumTop: 2}},
			DNA:       "AAAAAGGGGG",
			Top:       tops,
		},
	}
}

type gappedRun struct {
	first, last int64
	aligned     bool
	kind        hal.RearrangementKind
}

func TestDetectRearrangements(t *testing.T) {
	f, r := false, true
	testCases := []struct {
		name      string
		genomes   []haltest.Genome
		threshold int64
		want      []gappedRun
	}{
		{
			name:    "collinear",
			genomes: pairTree(20, haltest.Link{Start: 0, Parent: 0, Reversed: f}, haltest.Link{Start: 5, Parent: 1, Reversed: f}, haltest.Link{Start: 10, Parent: 2, Reversed: f}, haltest.Link{Start: 15, Parent: 3, Reversed: f}),
			want:    []gappedRun{{0, 3, true, hal.Nothing}},
		},
		{
			name:    "deletion",
			genomes: pairTree(15, haltest.Link{Start: 0, Parent: 0, Reversed: f}, haltest.Link{Start: 5, Parent: 1, Reversed: f}, haltest.Link{Start: 10, Parent: 3, Reversed: f}),
			want:    []gappedRun{{0, 1, true, hal.Nothing}, {2, 2, true, hal.Deletion}},
		},
		{
			name:      "deletion within threshold",
			genomes:   pairTree(15, haltest.Link{Start: 0, Parent: 0, Reversed: f}, haltest.Link{Start: 5, Parent: 1, Reversed: f}, haltest.Link{Start: 10, Parent: 3, Reversed: f}),
			threshold: 5,
			want:      []gappedRun{{0, 2, true, hal.Nothing}},
		},
		{
			name:    "insertion",
			genomes: pairTree(25, haltest.Link{Start: 0, Parent: 0, Reversed: f}, haltest.Link{Start: 5, Parent: 1, Reversed: f}, haltest.Link{Start: 10, Parent: hal.NullIndex, Reversed: f}, haltest.Link{Start: 15, Parent: 2, Reversed: f}, haltest.Link{Start: 20, Parent: 3, Reversed: f}),
			want: []gappedRun{
				{0, 1, true, hal.Nothing},
				{2, 2, false, hal.Insertion},
				{3, 4, true, hal.Nothing},
			},
		},
		{
			name:      "insertion within threshold",
			genomes:   pairTree(25, haltest.Link{Start: 0, Parent: 0, Reversed: f}, haltest.Link{Start: 5, Parent: 1, Reversed: f}, haltest.Link{Start: 10, Parent: hal.NullIndex, Reversed: f}, haltest.Link{Start: 15, Parent: 2, Reversed: f}, haltest.Link{Start: 20, Parent: 3, Reversed: f}),
			threshold: 5,
			want:      []gappedRun{{0, 4, true, hal.Nothing}},
		},
		{
			name:    "transposition",
			genomes: pairTree(20, haltest.Link{Start: 0, Parent: 0, Reversed: f}, haltest.Link{Start: 5, Parent: 2, Reversed: f}, haltest.Link{Start: 10, Parent: 1, Reversed: f}, haltest.Link{Start: 15, Parent: 3, Reversed: f}),
			want: []gappedRun{
				{0, 0, true, hal.Nothing},
				{1, 1, true, hal.Transposition},
				{2, 2, true, hal.Transposition},
				{3, 3, true, hal.Transposition},
			},
		},
		{
			name:    "duplication",
			genomes: pairTree(20, haltest.Link{Start: 0, Parent: 0, Reversed: f}, haltest.Link{Start: 5, Parent: 1, Reversed: f}, haltest.Link{Start: 10, Parent: 1, Reversed: f}, haltest.Link{Start: 15, Parent: 3, Reversed: f}),
			want: []gappedRun{
				{0, 1, true, hal.Duplication},
				{2, 2, true, hal.Duplication},
				{3, 3, true, hal.Deletion},
			},
		},
		{
			name:    "inversion",
			genomes: pairTree(20, haltest.Link{Start: 0, Parent: 0, Reversed: f}, haltest.Link{Start: 5, Parent: 2, Reversed: r}, haltest.Link{Start: 10, Parent: 1, Reversed: r}, haltest.Link{Start: 15, Parent: 3, Reversed: f}),
			want: []gappedRun{
				{0, 0, true, hal.Nothing},
				{1, 2, true, hal.Inversion},
				{3, 3, true, hal.Inversion},
			},
		},
		{
			name:    "complex",
			genomes: pairTree(15, haltest.Link{Start: 0, Parent: 0, Reversed: f}, haltest.Link{Start: 5, Parent: hal.NullIndex, Reversed: f}, haltest.Link{Start: 10, Parent: 3, Reversed: f}),
			want: []gappedRun{
				{0, 0, true, hal.Nothing},
				{1, 1, false, hal.Complex},
				{2, 2, true, hal.Deletion},
			},
		},
		{
			name:      "gap",
			genomes:   gapTree(),
			threshold: 2,
			want:      []gappedRun{{0, 0, false, hal.Gap}, {1, 1, true, hal.Nothing}},
		},
		{
			name:      "insertion at sequence start",
			genomes:   gapTree(),
			threshold: 1,
			want:      []gappedRun{{0, 0, false, hal.Insertion}, {1, 1, true, hal.Nothing}},
		},
		{
			name:    "translocation",
			genomes: translocationTree(),
			want:    []gappedRun{{0, 0, true, hal.Nothing}, {1, 1, true, hal.Translocation}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := haltest.Build(t, tc.genomes...)
			g := openGenomes(t, a, "G")[0]
			found, err := hal.DetectRearrangements(g, tc.threshold)
			require.NoError(t, err)
			var got []gappedRun
			for _, r := range found {
				got = append(got, gappedRun{r.Segment.First, r.Segment.Last, r.Segment.Aligned, r.Kind})
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGappedTopIterator(t *testing.T) {
	a := haltest.Build(t, pairTree(25, haltest.Link{Start: 0, Parent: 0, Reversed: false}, haltest.Link{Start: 5, Parent: 1, Reversed: false}, haltest.Link{Start: 10, Parent: hal.NullIndex, Reversed: false}, haltest.Link{Start: 15, Parent: 2, Reversed: false}, haltest.Link{Start: 20, Parent: 3, Reversed: false})...)
	g := openGenomes(t, a, "G")[0]

	it, err := g.GappedTopIterator(0, 0)
	require.NoError(t, err)
	var got []hal.GappedSegment
	for ; it.Valid(); require.NoError(t, it.ToRight()) {
		got = append(got, it.Segment())
	}
	require.Len(t, got, 3)
	assert.Equal(t, [2]int64{0, 10}, [2]int64{got[0].Start, got[0].End})
	assert.Equal(t, [2]int64{0, 1}, [2]int64{got[0].PartnerFirst, got[0].PartnerLast})
	assert.Equal(t, "g1", got[0].Sequence.Name())
	assert.Equal(t, "p1", got[0].PartnerSequence.Name())
	assert.Equal(t, int64(5), got[1].Length())
	assert.Equal(t, hal.NullIndex, got[1].PartnerFirst)
	assert.Equal(t, [2]int64{15, 25}, [2]int64{got[2].Start, got[2].End})
	assert.ErrorIs(t, it.ToRight(), hal.ErrOutOfRange)

	it, err = g.GappedTopIterator(3, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), it.Segment().Last)

	it, err = g.GappedTopIterator(5, 0)
	require.NoError(t, err)
	assert.False(t, it.Valid())
	_, err = g.GappedTopIterator(-1, 0)
	assert.ErrorIs(t, err, hal.ErrOutOfRange)

	p := openGenomes(t, a, "P")[0]
	_, err = p.GappedTopIterator(0, 0)
	assert.ErrorIs(t, err, hal.ErrNotFound, "root has no parent")
	found, err := hal.DetectRearrangements(p, 0)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestGappedBottomIterator(t *testing.T) {
	testCases := []struct {
		name      string
		threshold int64
		want      [][2]int64
	}{
		{"strict", 0, [][2]int64{{0, 1}, {2, 2}, {3, 3}}},
		{"tolerant", 5, [][2]int64{{0, 3}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := haltest.Build(t, pairTree(15, haltest.Link{Start: 0, Parent: 0, Reversed: false}, haltest.Link{Start: 5, Parent: 1, Reversed: false}, haltest.Link{Start: 10, Parent: 3, Reversed: false})...)
			p := openGenomes(t, a, "P")[0]
			it, err := p.GappedBottomIterator(0, 0, tc.threshold)
			require.NoError(t, err)
			var got [][2]int64
			for ; it.Valid(); require.NoError(t, it.ToRight()) {
				got = append(got, [2]int64{it.Segment().First, it.Segment().Last})
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGappedIteratorGoesStale(t *testing.T) {
	a := haltest.Build(t, pairTree(15, haltest.Link{Start: 0, Parent: 0, Reversed: false}, haltest.Link{Start: 5, Parent: 1, Reversed: false}, haltest.Link{Start: 10, Parent: 3, Reversed: false})...)
	g := openGenomes(t, a, "G")[0]
	it, err := g.GappedTopIterator(0, 0)
	require.NoError(t, err)
	require.NoError(t, g.UpdateTopDimensions([]hal.SequenceInfo{{Name: "g1", Length: 15, NumTop: 1}}))
	assert.ErrorIs(t, it.ToRight(), hal.ErrStaleIterator)
}

func TestRearrangementKindString(t *testing.T) {
	assert.Equal(t, "Translocation", hal.Translocation.String())
	assert.Equal(t, "RearrangementKind(42)", hal.RearrangementKind(42).String())
}
