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

	"github.com/googlegenomics/hal/internal/metrics"
)

// ColumnOptions configures a ColumnIterator.
type ColumnOptions struct {
	// Targets restricts the traversal to the spanning tree of the targets
	// and the reference genome, and the column to those genomes.  Empty
	// means every genome.
	Targets []*Genome
	// Start is the first reference position.
	Start int64
	// Last is the last reference position; negative means the end of the
	// reference genome.
	Last int64
	// FollowDuplicates reports every paralogous copy.  Without it each
	// genome contributes at most one base per column.
	FollowDuplicates bool
	// FollowAncestors reports the ancestors of the reference genome.  They
	// are traversed either way.
	FollowAncestors bool
	// Unique reports each base of every genome in at most one column.
	Unique bool
}

// Column is the set of bases homologous to one reference position, grouped
// by sequence.
type Column struct {
	bases map[*Sequence][]*DNAIterator
}

// Sequences returns the sequences with bases in the column, ordered by
// genome name and sequence index.
func (c *Column) Sequences() []*Sequence {
	seqs := make([]*Sequence, 0, len(c.bases))
	for s := range c.bases {
		seqs = append(seqs, s)
	}
	sort.Slice(seqs, func(i, j int) bool {
		a, b := seqs[i], seqs[j]
		if a.genome.name != b.genome.name {
			return a.genome.name < b.genome.name
		}
		return a.index < b.index
	})
	return seqs
}

// Bases returns the bases of s in the column ordered by position.
func (c *Column) Bases(s *Sequence) []*DNAIterator { return c.bases[s] }

// Genomes returns the genomes with bases in the column ordered by name.
func (c *Column) Genomes() []*Genome {
	var out []*Genome
	seen := make(map[*Genome]bool)
	for _, s := range c.Sequences() {
		if !seen[s.genome] {
			seen[s.genome] = true
			out = append(out, s.genome)
		}
	}
	return out
}

// GenomeBases returns the bases of g in the column ordered by position.
func (c *Column) GenomeBases(g *Genome) []*DNAIterator {
	var out []*DNAIterator
	for _, s := range c.Sequences() {
		if s.genome == g {
			out = append(out, c.bases[s]...)
		}
	}
	return out
}

// Len returns the number of bases in the column.
func (c *Column) Len() int {
	n := 0
	for _, b := range c.bases {
		n += len(b)
	}
	return n
}

func (c *Column) add(s *Sequence, it *DNAIterator) {
	bases := append(c.bases[s], it)
	sort.Slice(bases, func(i, j int) bool { return bases[i].pos < bases[j].pos })
	c.bases[s] = bases
}

// ColumnIterator walks the reference genome one position at a time and
// computes, for each position, the homologous bases in the other genomes by
// breadth first search over the segment links.
type ColumnIterator struct {
	ref  *Genome
	opts ColumnOptions

	genomes   map[int]*Genome
	report    map[int]bool
	ancestors map[int]bool
	snapshot  map[int]uint64

	pos    int64
	last   int64
	cache  map[int]*positionCache
	column *Column

	topHint    map[int]int64
	bottomHint map[int]int64
}

// ColumnIterator returns an iterator positioned at the first column.
func (g *Genome) ColumnIterator(opts ColumnOptions) (*ColumnIterator, error) {
	a := g.aln
	ci := &ColumnIterator{
		ref:        g,
		opts:       opts,
		genomes:    make(map[int]*Genome),
		report:     make(map[int]bool),
		ancestors:  a.tree.ancestors(g.id),
		snapshot:   make(map[int]uint64),
		cache:      make(map[int]*positionCache),
		topHint:    make(map[int]int64),
		bottomHint: make(map[int]int64),
	}

	scope := make(map[int]bool)
	if len(opts.Targets) == 0 {
		for _, id := range a.tree.live() {
			scope[id] = true
			ci.report[id] = true
		}
	} else {
		ids := []int{g.id}
		ci.report[g.id] = true
		for _, t := range opts.Targets {
			if t.aln != a {
				return nil, fmt.Errorf("target %q belongs to another alignment: %w", t.name, ErrNotFound)
			}
			ids = append(ids, t.id)
			ci.report[t.id] = true
		}
		scope = a.tree.spanning(ids)
	}
	for id := range scope {
		genome, err := a.openGenome(id)
		if err != nil {
			return nil, err
		}
		ci.genomes[id] = genome
		ci.snapshot[id] = genome.generation
		ci.cache[id] = newPositionCache()
	}

	last := opts.Last
	if last < 0 {
		last = g.length - 1
	}
	if err := ci.ToSite(opts.Start, last, false); err != nil {
		return nil, err
	}
	return ci, nil
}

func (ci *ColumnIterator) check() error {
	for id, gen := range ci.snapshot {
		if g := ci.genomes[id]; g.generation != gen {
			return fmt.Errorf("column iterator over %q: %w", g.name, ErrStaleIterator)
		}
	}
	return nil
}

// ReferenceGenome returns the reference genome.
func (ci *ColumnIterator) ReferenceGenome() *Genome { return ci.ref }

// Position returns the current reference genome position.
func (ci *ColumnIterator) Position() int64 { return ci.pos }

// ReferenceSequence returns the reference sequence at the current position.
func (ci *ColumnIterator) ReferenceSequence() (*Sequence, error) {
	return ci.ref.SequenceBySite(ci.pos)
}

// Column returns the current column.
func (ci *ColumnIterator) Column() *Column { return ci.column }

// LastColumn reports whether every reference position after the current one
// up to the last position has already been reported.
func (ci *ColumnIterator) LastColumn() bool {
	cache := ci.cache[ci.ref.id]
	for p := ci.pos + 1; p <= ci.last; p++ {
		if !cache.contains(p) {
			return false
		}
	}
	return true
}

// ToRight advances to the next reference position that has not been
// reported yet.  It fails with ErrOutOfRange at the last column.
func (ci *ColumnIterator) ToRight() error {
	if err := ci.check(); err != nil {
		return err
	}
	if ci.LastColumn() {
		return fmt.Errorf("column iterator past %d: %w", ci.last, ErrOutOfRange)
	}
	cache := ci.cache[ci.ref.id]
	p := ci.pos + 1
	for cache.contains(p) {
		p++
	}
	ci.pos = p
	return ci.compute()
}

// ToSite moves to reference position pos and sets the last position.  With
// clearCache the record of reported bases is dropped, so bases reached again
// are reported again.
func (ci *ColumnIterator) ToSite(pos, last int64, clearCache bool) error {
	if err := ci.check(); err != nil {
		return err
	}
	if pos < 0 || pos >= ci.ref.length || last < pos || last >= ci.ref.length {
		return fmt.Errorf("column range [%d,%d] in %q of length %d: %w", pos, last, ci.ref.name, ci.ref.length, ErrOutOfRange)
	}
	if clearCache {
		for _, c := range ci.cache {
			c.clear()
		}
	}
	ci.pos, ci.last = pos, last
	return ci.compute()
}

// Defragment compacts the record of reported bases.
func (ci *ColumnIterator) Defragment() {
	for id, c := range ci.cache {
		if id == ci.ref.id {
			c.dropBelow(ci.pos)
		}
		c.defragment()
	}
}

type visit struct {
	genome   *Genome
	pos      int64
	reversed bool
}

type columnSearch struct {
	ci    *ColumnIterator
	seen  map[int]map[int64]bool
	queue []visit
}

func (s *columnSearch) push(g *Genome, pos int64, reversed bool) {
	seen := s.seen[g.id]
	if seen[pos] {
		return
	}
	if !s.ci.opts.FollowDuplicates && len(seen) > 0 {
		return
	}
	if s.ci.opts.Unique && g != s.ci.ref && s.ci.cache[g.id].contains(pos) {
		return
	}
	if seen == nil {
		seen = make(map[int64]bool)
		s.seen[g.id] = seen
	}
	seen[pos] = true
	s.queue = append(s.queue, visit{g, pos, reversed})
}

func (ci *ColumnIterator) reportable(id int) bool {
	return ci.report[id] && (ci.opts.FollowAncestors || !ci.ancestors[id])
}

func (ci *ColumnIterator) compute() error {
	col := &Column{bases: make(map[*Sequence][]*DNAIterator)}
	s := &columnSearch{ci: ci, seen: make(map[int]map[int64]bool)}
	s.push(ci.ref, ci.pos, false)
	for len(s.queue) > 0 {
		v := s.queue[0]
		s.queue = s.queue[1:]

		g := v.genome
		if ci.reportable(g.id) {
			seq, err := g.SequenceBySite(v.pos)
			if err != nil {
				return err
			}
			col.add(seq, &DNAIterator{genome: g, pos: v.pos, reversed: v.reversed, generation: g.generation})
			if g == ci.ref || ci.opts.Unique {
				ci.cache[g.id].insert(v.pos)
			}
		}
		if err := ci.visitUp(s, v); err != nil {
			return err
		}
		if err := ci.visitDown(s, v); err != nil {
			return err
		}
	}
	ci.column = col
	metrics.Columns.Inc()
	return nil
}

// visitUp follows the top segment at v to the parent and, when duplicates
// are followed, to the other members of its paralogy ring.
func (ci *ColumnIterator) visitUp(s *columnSearch, v visit) error {
	g := v.genome
	if g.numTop == 0 || g.parentID == noNode {
		return nil
	}
	ti, err := g.topIndexAt(v.pos, ci.topHint[g.id])
	if err != nil {
		return err
	}
	ci.topHint[g.id] = ti
	t, err := g.topRecord(ti)
	if err != nil || t.ParentIndex == NullIndex {
		return err
	}
	start, length, err := g.topBounds(ti)
	if err != nil {
		return err
	}
	offset := v.pos - start
	parentOffset := offset
	if t.ParentReversed {
		parentOffset = length - 1 - offset
	}

	if parent, ok := ci.genomes[g.parentID]; ok {
		pstart, plength, err := parent.bottomBounds(t.ParentIndex)
		if err != nil {
			return err
		}
		if plength != length {
			return fmt.Errorf("top segment %d of %q and bottom segment %d of %q differ in length: %w", ti, g.name, t.ParentIndex, parent.name, ErrInconsistentTopology)
		}
		s.push(parent, pstart+parentOffset, v.reversed != t.ParentReversed)
	}

	if !ci.opts.FollowDuplicates {
		return nil
	}
	for m, steps := t.NextParalogyIndex, int64(0); m != NullIndex && m != ti; steps++ {
		if steps > g.numTop {
			return fmt.Errorf("paralogy ring of top segment %d of %q does not close: %w", ti, g.name, ErrInconsistentTopology)
		}
		mt, err := g.topRecord(m)
		if err != nil {
			return err
		}
		mstart, mlength, err := g.topBounds(m)
		if err != nil {
			return err
		}
		if mlength != length {
			return fmt.Errorf("paralogous top segments %d and %d of %q differ in length: %w", ti, m, g.name, ErrInconsistentTopology)
		}
		moffset := parentOffset
		if mt.ParentReversed {
			moffset = length - 1 - parentOffset
		}
		s.push(g, mstart+moffset, v.reversed != (t.ParentReversed != mt.ParentReversed))
		m = mt.NextParalogyIndex
	}
	return nil
}

// visitDown follows the bottom segment at v to every child in scope.
func (ci *ColumnIterator) visitDown(s *columnSearch, v visit) error {
	g := v.genome
	if g.numBottom == 0 || len(g.childIDs) == 0 {
		return nil
	}
	var b BottomSegment
	var start, length int64
	loaded := false
	for slot, cid := range g.childIDs {
		child, ok := ci.genomes[cid]
		if !ok {
			continue
		}
		if !loaded {
			bi, err := g.bottomIndexAt(v.pos, ci.bottomHint[g.id])
			if err != nil {
				return err
			}
			ci.bottomHint[g.id] = bi
			if b, err = g.bottomRecord(bi); err != nil {
				return err
			}
			if start, length, err = g.bottomBounds(bi); err != nil {
				return err
			}
			loaded = true
		}
		link := b.Children[slot]
		if link.Index == NullIndex {
			continue
		}
		cstart, clength, err := child.topBounds(link.Index)
		if err != nil {
			return err
		}
		if clength != length {
			return fmt.Errorf("bottom segment of %q and top segment %d of %q differ in length: %w", g.name, link.Index, child.name, ErrInconsistentTopology)
		}
		offset := v.pos - start
		if link.Reversed {
			offset = length - 1 - offset
		}
		s.push(child, cstart+offset, v.reversed != link.Reversed)
	}
	return nil
}
