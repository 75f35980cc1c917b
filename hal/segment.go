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

import "fmt"

// segmentIterator is the state shared by top and bottom segment iterators.
// Offsets trim the segment in traversal order: startOffset bases from the
// first base visited and endOffset bases from the last.
type segmentIterator struct {
	genome      *Genome
	top         bool
	index       int64
	startOffset int64
	endOffset   int64
	reversed    bool
	generation  uint64
}

func (it *segmentIterator) kind() string {
	if it.top {
		return "top"
	}
	return "bottom"
}

func (it *segmentIterator) check() error {
	if it.generation != it.genome.generation {
		return fmt.Errorf("%s segment iterator over %q: %w", it.kind(), it.genome.name, ErrStaleIterator)
	}
	return nil
}

func (it *segmentIterator) count() int64 {
	if it.top {
		return it.genome.numTop
	}
	return it.genome.numBottom
}

func (it *segmentIterator) bounds() (int64, int64, error) {
	if err := it.check(); err != nil {
		return 0, 0, err
	}
	if it.top {
		return it.genome.topBounds(it.index)
	}
	return it.genome.bottomBounds(it.index)
}

// trims returns the bases cut from the left and right of the segment in
// genome coordinates.
func (it *segmentIterator) trims() (left, right int64) {
	if it.reversed {
		return it.endOffset, it.startOffset
	}
	return it.startOffset, it.endOffset
}

func (it *segmentIterator) setTrims(left, right int64) {
	if it.reversed {
		it.startOffset, it.endOffset = right, left
	} else {
		it.startOffset, it.endOffset = left, right
	}
}

// Genome returns the genome being iterated.
func (it *segmentIterator) Genome() *Genome { return it.genome }

// Index returns the current segment index.
func (it *segmentIterator) Index() int64 { return it.index }

// Reversed reports whether the segment is traversed right to left.
func (it *segmentIterator) Reversed() bool { return it.reversed }

// StartOffset returns the bases trimmed from the start of the segment.
func (it *segmentIterator) StartOffset() int64 { return it.startOffset }

// EndOffset returns the bases trimmed from the end of the segment.
func (it *segmentIterator) EndOffset() int64 { return it.endOffset }

// Valid reports whether the iterator is at a segment of its genome.
func (it *segmentIterator) Valid() bool { return it.index >= 0 && it.index < it.count() }

// Interval returns the half-open genome range covered by the (sliced)
// segment.
func (it *segmentIterator) Interval() (int64, int64, error) {
	start, length, err := it.bounds()
	if err != nil {
		return 0, 0, err
	}
	left, right := it.trims()
	return start + left, start + length - right, nil
}

// Start returns the first position visited in traversal order.
func (it *segmentIterator) Start() (int64, error) {
	lo, hi, err := it.Interval()
	if err != nil {
		return 0, err
	}
	if it.reversed {
		return hi - 1, nil
	}
	return lo, nil
}

// Length returns the number of bases covered by the (sliced) segment.
func (it *segmentIterator) Length() (int64, error) {
	lo, hi, err := it.Interval()
	return hi - lo, err
}

// Slice trims the current segment.
func (it *segmentIterator) Slice(startOffset, endOffset int64) error {
	_, length, err := it.bounds()
	if err != nil {
		return err
	}
	if startOffset < 0 || endOffset < 0 || startOffset+endOffset > length {
		return fmt.Errorf("slicing %d+%d bases from segment of length %d: %w", startOffset, endOffset, length, ErrOutOfRange)
	}
	it.startOffset, it.endOffset = startOffset, endOffset
	return nil
}

// ToReverse switches the traversal direction, keeping the covered range.
func (it *segmentIterator) ToReverse() {
	it.reversed = !it.reversed
	it.startOffset, it.endOffset = it.endOffset, it.startOffset
}

// ToRight moves to the next segment in traversal order and clears any
// slicing.  The iterator may step one past either end, after which it is
// not Valid.
func (it *segmentIterator) ToRight() error {
	return it.step(1)
}

// ToLeft moves to the previous segment in traversal order.
func (it *segmentIterator) ToLeft() error {
	return it.step(-1)
}

func (it *segmentIterator) step(d int64) error {
	if err := it.check(); err != nil {
		return err
	}
	if it.reversed {
		d = -d
	}
	next := it.index + d
	if next < -1 || next > it.count() {
		return fmt.Errorf("moving past %s segment %d of %q: %w", it.kind(), it.index, it.genome.name, ErrOutOfRange)
	}
	it.index = next
	it.startOffset, it.endOffset = 0, 0
	return nil
}

// ToSite moves to the segment containing genome position pos.  If slice is
// set the segment is trimmed to that single base.
func (it *segmentIterator) ToSite(pos int64, slice bool) error {
	if err := it.check(); err != nil {
		return err
	}
	var i int64
	var err error
	if it.top {
		i, err = it.genome.topIndexAt(pos, it.index)
	} else {
		i, err = it.genome.bottomIndexAt(pos, it.index)
	}
	if err != nil {
		return err
	}
	it.index = i
	it.startOffset, it.endOffset = 0, 0
	if !slice {
		return nil
	}
	start, length, err := it.bounds()
	if err != nil {
		return err
	}
	it.setTrims(pos-start, start+length-1-pos)
	return nil
}

func (it *segmentIterator) String() string {
	strand := '+'
	if it.reversed {
		strand = '-'
	}
	lo, hi, err := it.Interval()
	if err != nil {
		return fmt.Sprintf("%s[%d] of %s: %v", it.kind(), it.index, it.genome.name, err)
	}
	return fmt.Sprintf("%s[%d] of %s [%d,%d)%c", it.kind(), it.index, it.genome.name, lo, hi, strand)
}

// mapTrims carries the left and right trims of a segment onto its
// homologous segment, which is aligned on the opposite strand if flip is set.
func mapTrims(left, right int64, flip bool) (int64, int64) {
	if flip {
		return right, left
	}
	return left, right
}

func checkLengths(from *segmentIterator, fromLength int64, to *Genome, kind string, index, length int64) error {
	if fromLength != length {
		return fmt.Errorf("%s segment %d of %q has length %d, homologous %s segment %d of %q has length %d: %w",
			from.kind(), from.index, from.genome.name, fromLength, kind, index, to.name, length, ErrInconsistentTopology)
	}
	return nil
}

// TopSegmentIterator is a cursor over the top segments of a genome.
type TopSegmentIterator struct {
	segmentIterator
}

// TopSegmentIterator returns an iterator at top segment i.
func (g *Genome) TopSegmentIterator(i int64) *TopSegmentIterator {
	return &TopSegmentIterator{segmentIterator{genome: g, top: true, index: i, generation: g.generation}}
}

// Copy returns an independent iterator in the same state.
func (it *TopSegmentIterator) Copy() *TopSegmentIterator {
	c := *it
	return &c
}

// Segment returns the stored record of the current segment.
func (it *TopSegmentIterator) Segment() (TopSegment, error) {
	if err := it.check(); err != nil {
		return TopSegment{}, err
	}
	return it.genome.TopSegment(it.index)
}

// HasParent reports whether the segment is linked to the parent genome.
func (it *TopSegmentIterator) HasParent() (bool, error) {
	t, err := it.Segment()
	return err == nil && t.ParentIndex != NullIndex && it.genome.parentID != noNode, err
}

// ToParent returns an iterator over the homologous parent bottom segment,
// covering the same bases.  It returns nil if there is no homology.
func (it *TopSegmentIterator) ToParent() (*BottomSegmentIterator, error) {
	t, err := it.Segment()
	if err != nil || t.ParentIndex == NullIndex {
		return nil, err
	}
	parent, err := it.genome.Parent()
	if err != nil || parent == nil {
		return nil, err
	}
	_, length, err := it.bounds()
	if err != nil {
		return nil, err
	}
	out := parent.BottomSegmentIterator(t.ParentIndex)
	_, plength, err := out.bounds()
	if err != nil {
		return nil, err
	}
	if err := checkLengths(&it.segmentIterator, length, parent, "bottom", t.ParentIndex, plength); err != nil {
		return nil, err
	}
	out.reversed = it.reversed != t.ParentReversed
	left, right := it.trims()
	out.setTrims(mapTrims(left, right, t.ParentReversed))
	return out, nil
}

// ToParseDown returns an iterator over the bottom segment of the same genome
// containing the start of this segment, sliced to their overlap.  The stored
// parse index is only a search hint since slicing moves the start.  It returns
// nil if the genome has no bottom segments.
func (it *TopSegmentIterator) ToParseDown() (*BottomSegmentIterator, error) {
	t, err := it.Segment()
	if err != nil || it.genome.numBottom == 0 {
		return nil, err
	}
	lo, hi, err := it.Interval()
	if err != nil {
		return nil, err
	}
	index, err := it.genome.bottomIndexAt(lo, t.BottomParseIndex)
	if err != nil {
		return nil, err
	}
	out := it.genome.BottomSegmentIterator(index)
	out.reversed = it.reversed
	start, length, err := out.bounds()
	if err != nil {
		return nil, err
	}
	out.setTrims(overlapTrims(lo, hi, start, length))
	return out, nil
}

// overlapTrims returns the trims of segment [start, start+length) that keep
// only its overlap with [lo, hi).
func overlapTrims(lo, hi, start, length int64) (int64, int64) {
	left, right := int64(0), int64(0)
	if lo > start {
		left = lo - start
	}
	if end := start + length; hi < end {
		right = end - hi
	}
	if left+right > length {
		right = length - left
	}
	return left, right
}

// IsCanonicalParalog reports whether the parent segment links back to this
// segment rather than to another member of its paralogy ring.
func (it *TopSegmentIterator) IsCanonicalParalog() (bool, error) {
	p, err := it.ToParent()
	if err != nil || p == nil {
		return false, err
	}
	b, err := p.Segment()
	if err != nil {
		return false, err
	}
	parent := p.genome
	slot := parent.ChildIndex(it.genome)
	return slot >= 0 && b.Children[slot].Index == it.index, nil
}

// ToNextParalogy moves to the next segment descending from the same parent
// segment, keeping the slice aligned to the same parent bases.  It reports
// false, without moving, if the segment has no paralogs.
func (it *TopSegmentIterator) ToNextParalogy() (bool, error) {
	t, err := it.Segment()
	if err != nil || t.NextParalogyIndex == NullIndex || t.NextParalogyIndex == it.index {
		return false, err
	}
	next, err := it.genome.TopSegment(t.NextParalogyIndex)
	if err != nil {
		return false, err
	}
	left, right := it.trims()
	left, right = mapTrims(left, right, t.ParentReversed)
	left, right = mapTrims(left, right, next.ParentReversed)
	it.index = t.NextParalogyIndex
	it.reversed = it.reversed != (t.ParentReversed != next.ParentReversed)
	it.setTrims(left, right)
	return true, nil
}

func (it *TopSegmentIterator) String() string { return it.segmentIterator.String() }

// BottomSegmentIterator is a cursor over the bottom segments of a genome.
type BottomSegmentIterator struct {
	segmentIterator
}

// BottomSegmentIterator returns an iterator at bottom segment i.
func (g *Genome) BottomSegmentIterator(i int64) *BottomSegmentIterator {
	return &BottomSegmentIterator{segmentIterator{genome: g, index: i, generation: g.generation}}
}

// Copy returns an independent iterator in the same state.
func (it *BottomSegmentIterator) Copy() *BottomSegmentIterator {
	c := *it
	return &c
}

// Segment returns the stored record of the current segment.
func (it *BottomSegmentIterator) Segment() (BottomSegment, error) {
	if err := it.check(); err != nil {
		return BottomSegment{}, err
	}
	return it.genome.BottomSegment(it.index)
}

// NumChildren returns the number of child link slots.
func (it *BottomSegmentIterator) NumChildren() int { return it.genome.NumChildren() }

// HasChild reports whether the segment is linked to child slot i.
func (it *BottomSegmentIterator) HasChild(i int) (bool, error) {
	b, err := it.Segment()
	if err != nil {
		return false, err
	}
	if i < 0 || i >= len(b.Children) {
		return false, fmt.Errorf("child slot %d of %q: %w", i, it.genome.name, ErrOutOfRange)
	}
	return b.Children[i].Index != NullIndex, nil
}

// ToChild returns an iterator over the top segment of child i linked to
// this segment, covering the same bases.  It returns nil if there is no
// homology.
func (it *BottomSegmentIterator) ToChild(i int) (*TopSegmentIterator, error) {
	b, err := it.Segment()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(b.Children) {
		return nil, fmt.Errorf("child slot %d of %q: %w", i, it.genome.name, ErrOutOfRange)
	}
	link := b.Children[i]
	if link.Index == NullIndex {
		return nil, nil
	}
	child, err := it.genome.Child(i)
	if err != nil {
		return nil, err
	}
	_, length, err := it.bounds()
	if err != nil {
		return nil, err
	}
	out := child.TopSegmentIterator(link.Index)
	_, clength, err := out.bounds()
	if err != nil {
		return nil, err
	}
	if err := checkLengths(&it.segmentIterator, length, child, "top", link.Index, clength); err != nil {
		return nil, err
	}
	out.reversed = it.reversed != link.Reversed
	left, right := it.trims()
	out.setTrims(mapTrims(left, right, link.Reversed))
	return out, nil
}

// ToParseUp returns an iterator over the top segment of the same genome
// containing the start of this segment, sliced to their overlap.  It
// returns nil if the genome has no top segments.
func (it *BottomSegmentIterator) ToParseUp() (*TopSegmentIterator, error) {
	b, err := it.Segment()
	if err != nil || it.genome.numTop == 0 {
		return nil, err
	}
	lo, hi, err := it.Interval()
	if err != nil {
		return nil, err
	}
	index, err := it.genome.topIndexAt(lo, b.TopParseIndex)
	if err != nil {
		return nil, err
	}
	out := it.genome.TopSegmentIterator(index)
	out.reversed = it.reversed
	start, length, err := out.bounds()
	if err != nil {
		return nil, err
	}
	out.setTrims(overlapTrims(lo, hi, start, length))
	return out, nil
}

func (it *BottomSegmentIterator) String() string { return it.segmentIterator.String() }
