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

// Package haltest builds small in-memory alignments for tests.
package haltest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/container"
	"github.com/googlegenomics/hal/internal/container/memstore"
)

// Link describes a top segment starting at Start and aligned to bottom
// segment Parent of the parent genome (hal.NullIndex for none).
type Link struct {
	Start    int64
	Parent   int64
	Reversed bool
}

// Tops returns top segment records for links, chaining segments that share
// a parent segment into paralogy rings.
func Tops(links ...Link) []hal.TopSegment {
	tops := make([]hal.TopSegment, len(links))
	rings := make(map[int64][]int64)
	var parents []int64
	for i, l := range links {
		tops[i] = hal.NewTopSegment(l.Start)
		tops[i].ParentIndex = l.Parent
		tops[i].ParentReversed = l.Reversed
		if l.Parent == hal.NullIndex {
			continue
		}
		if _, ok := rings[l.Parent]; !ok {
			parents = append(parents, l.Parent)
		}
		rings[l.Parent] = append(rings[l.Parent], int64(i))
	}
	for _, p := range parents {
		ring := rings[p]
		if len(ring) < 2 {
			continue
		}
		for j, i := range ring {
			tops[i].NextParalogyIndex = ring[(j+1)%len(ring)]
		}
	}
	return tops
}

// Bottoms returns bottom segment records starting at starts, linked to the
// first top segment of each child that points at them.
func Bottoms(starts []int64, children ...[]hal.TopSegment) []hal.BottomSegment {
	bottoms := make([]hal.BottomSegment, len(starts))
	for i, s := range starts {
		bottoms[i] = hal.NewBottomSegment(s, len(children))
	}
	for slot, tops := range children {
		for i, t := range tops {
			if t.ParentIndex == hal.NullIndex {
				continue
			}
			if l := &bottoms[t.ParentIndex].Children[slot]; l.Index == hal.NullIndex {
				l.Index, l.Reversed = int64(i), t.ParentReversed
			}
		}
	}
	return bottoms
}

// Genome describes one genome of a test alignment.  Genomes must be listed
// parents first.
type Genome struct {
	Name      string
	Parent    string
	Sequences []hal.SequenceInfo
	DNA       string
	Top       []hal.TopSegment
	Bottom    []hal.BottomSegment
}

// Build creates an in-memory alignment holding genomes.  The alignment is
// closed when the test ends.
func Build(t testing.TB, genomes ...Genome) *hal.Alignment {
	t.Helper()
	a := BuildIn(t, memstore.New(), genomes...)
	t.Cleanup(func() { a.Close() })
	return a
}

// Store writes genomes to a new in-memory store and returns it, so that
// tests can open several independent views of the same alignment.
func Store(t testing.TB, genomes ...Genome) *memstore.Store {
	t.Helper()
	store := memstore.NewStore()
	a := BuildIn(t, container.NewBlockContainer(store, container.BlockOptions{}), genomes...)
	require.NoError(t, a.Close())
	return store
}

// Open opens a read-only view of the alignment in store.
func Open(store *memstore.Store) (*hal.Alignment, error) {
	opts := hal.DefaultOptions()
	opts.ReadOnly = true
	return hal.Open(container.NewBlockContainer(store, container.BlockOptions{ReadOnly: true}), opts)
}

// BuildIn creates an alignment holding genomes in c.  The caller closes it.
func BuildIn(t testing.TB, c container.Container, genomes ...Genome) *hal.Alignment {
	t.Helper()
	a, err := hal.Create(c, hal.Options{PagesPerBuffer: 2, ChunkSize: 4})
	require.NoError(t, err)

	for _, g := range genomes {
		if g.Parent == "" {
			_, err = a.AddRootGenome(g.Name)
		} else {
			_, err = a.AddLeafGenome(g.Name, g.Parent, 0.5)
		}
		require.NoError(t, err, "adding %s", g.Name)
	}
	for _, spec := range genomes {
		g, err := a.OpenGenome(spec.Name)
		require.NoError(t, err)
		require.NoError(t, g.SetDimensions(spec.Sequences))
		require.NoError(t, g.SetString(spec.DNA))
		for i, top := range spec.Top {
			require.NoError(t, g.SetTopSegment(int64(i), top))
		}
		for i, bottom := range spec.Bottom {
			require.NoError(t, g.SetBottomSegment(int64(i), bottom))
		}
	}
	return a
}

// StarTree describes a root R with children A and B, and C below A.  Every
// genome is one sequence of ten bases aligned end to end; C differs from the
// others at position 5.
func StarTree() []Genome {
	single := Tops(Link{0, 0, false})
	return []Genome{
		{
			Name:      "R",
			Sequences: []hal.SequenceInfo{{Name: "r1", Length: 10, NumBottom: 1}},
			DNA:       "ACGTACGTAC",
			Bottom:    Bottoms([]int64{0}, single, single),
		},
		{
			Name:      "A",
			Parent:    "R",
			Sequences: []hal.SequenceInfo{{Name: "a1", Length: 10, NumTop: 1, NumBottom: 1}},
			DNA:       "ACGTACGTAC",
			Top:       single,
			Bottom:    Bottoms([]int64{0}, single),
		},
		{
			Name:      "B",
			Parent:    "R",
			Sequences: []hal.SequenceInfo{{Name: "b1", Length: 10, NumTop: 1}},
			DNA:       "ACGTACGTAC",
			Top:       single,
		},
		{
			Name:      "C",
			Parent:    "A",
			Sequences: []hal.SequenceInfo{{Name: "c1", Length: 10, NumTop: 1}},
			DNA:       "ACGTATGTAC",
			Top:       single,
		},
	}
}

// DuplicationTree describes a root R of five bases whose only child A
// carries two copies of it, the second reverse complemented.
func DuplicationTree() []Genome {
	tops := Tops(Link{0, 0, false}, Link{5, 0, true})
	return []Genome{
		{
			Name:      "R",
			Sequences: []hal.SequenceInfo{{Name: "r1", Length: 5, NumBottom: 1}},
			DNA:       "AACGT",
			Bottom:    Bottoms([]int64{0}, tops),
		},
		{
			Name:      "A",
			Parent:    "R",
			Sequences: []hal.SequenceInfo{{Name: "a1", Length: 10, NumTop: 2}},
			DNA:       "AACGTACGTT",
			Top:       tops,
		},
	}
}
