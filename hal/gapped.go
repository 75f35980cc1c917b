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

// GappedSegment is a run of consecutive segments whose partners in the
// adjacent genome are also consecutive and equally oriented, allowing
// unaligned segments of up to the gap threshold on either side.  A run of
// unaligned segments that could not be absorbed forms its own gapped
// segment with Aligned unset.
type GappedSegment struct {
	// First and Last are the inclusive range of segment indexes.
	First, Last int64
	// Start and End are the half-open genome range covered.
	Start, End int64
	Aligned    bool
	// PartnerFirst and PartnerLast are the partners of First and Last.
	PartnerFirst, PartnerLast int64
	Reversed                  bool
	Sequence                  *Sequence
	PartnerSequence           *Sequence
}

// Length returns the number of bases covered.
func (s GappedSegment) Length() int64 { return s.End - s.Start }

// linkedArray is one side of the links between a genome and one of its
// neighbours in the tree: the top segments of a child, or the bottom
// segments of a parent for one child slot.
type linkedArray interface {
	genome() *Genome
	partnerGenome() *Genome
	count() int64
	bounds(i int64) (int64, int64, error)
	link(i int64) (int64, bool, error)
	paralogous(i int64) (bool, error)
	partnerCount() int64
	partnerBounds(j int64) (int64, int64, error)
	partnerLinked(j int64) (bool, error)
}

type topSide struct {
	child, parent *Genome
	slot          int
}

func (s topSide) genome() *Genome        { return s.child }
func (s topSide) partnerGenome() *Genome { return s.parent }
func (s topSide) count() int64           { return s.child.numTop }
func (s topSide) partnerCount() int64    { return s.parent.numBottom }

func (s topSide) bounds(i int64) (int64, int64, error) { return s.child.topBounds(i) }

func (s topSide) link(i int64) (int64, bool, error) {
	t, err := s.child.topRecord(i)
	return t.ParentIndex, t.ParentReversed, err
}

func (s topSide) paralogous(i int64) (bool, error) {
	t, err := s.child.topRecord(i)
	return t.NextParalogyIndex != NullIndex && t.NextParalogyIndex != i, err
}

func (s topSide) partnerBounds(j int64) (int64, int64, error) { return s.parent.bottomBounds(j) }

func (s topSide) partnerLinked(j int64) (bool, error) {
	b, err := s.parent.bottomRecord(j)
	if err != nil {
		return false, err
	}
	return b.Children[s.slot].Index != NullIndex, nil
}

type bottomSide struct {
	parent, child *Genome
	slot          int
}

func (s bottomSide) genome() *Genome        { return s.parent }
func (s bottomSide) partnerGenome() *Genome { return s.child }
func (s bottomSide) count() int64           { return s.parent.numBottom }
func (s bottomSide) partnerCount() int64    { return s.child.numTop }

func (s bottomSide) bounds(i int64) (int64, int64, error) { return s.parent.bottomBounds(i) }

func (s bottomSide) link(i int64) (int64, bool, error) {
	b, err := s.parent.bottomRecord(i)
	if err != nil {
		return NullIndex, false, err
	}
	l := b.Children[s.slot]
	return l.Index, l.Reversed, nil
}

func (s bottomSide) paralogous(int64) (bool, error) { return false, nil }

func (s bottomSide) partnerBounds(j int64) (int64, int64, error) { return s.child.topBounds(j) }

func (s bottomSide) partnerLinked(j int64) (bool, error) {
	t, err := s.child.topRecord(j)
	return t.ParentIndex != NullIndex, err
}

func sequenceOf(g *Genome, start, length int64) (*Sequence, error) {
	if length == 0 {
		// Empty segments sit at the start of the following sequence.
		if start == g.length {
			start--
		}
	}
	return g.SequenceBySite(start)
}

func segmentSequence(side linkedArray, i int64) (*Sequence, error) {
	start, length, err := side.bounds(i)
	if err != nil {
		return nil, err
	}
	return sequenceOf(side.genome(), start, length)
}

func partnerSequence(side linkedArray, j int64) (*Sequence, error) {
	start, length, err := side.partnerBounds(j)
	if err != nil {
		return nil, err
	}
	return sequenceOf(side.partnerGenome(), start, length)
}

// gappedAt builds the gapped segment starting at segment i.
func gappedAt(side linkedArray, i, threshold int64) (GappedSegment, error) {
	if i < 0 || i >= side.count() {
		return GappedSegment{}, fmt.Errorf("gapped segment at %d of %q: %w", i, side.genome().name, ErrOutOfRange)
	}
	seq, err := segmentSequence(side, i)
	if err != nil {
		return GappedSegment{}, err
	}
	p, rev, err := side.link(i)
	if err != nil {
		return GappedSegment{}, err
	}
	seg := GappedSegment{First: i, Last: i, Sequence: seq, PartnerFirst: NullIndex, PartnerLast: NullIndex}

	if p == NullIndex {
		for j := i + 1; j < side.count(); j++ {
			q, _, err := side.link(j)
			if err != nil {
				return GappedSegment{}, err
			}
			s, err := segmentSequence(side, j)
			if err != nil {
				return GappedSegment{}, err
			}
			if q != NullIndex || s != seq {
				break
			}
			seg.Last = j
		}
		return finishGapped(side, seg)
	}

	seg.Aligned = true
	seg.Reversed = rev
	seg.PartnerFirst, seg.PartnerLast = p, p
	if seg.PartnerSequence, err = partnerSequence(side, p); err != nil {
		return GappedSegment{}, err
	}
	for {
		next, q, ok, err := extendGapped(side, seg, threshold)
		if err != nil {
			return GappedSegment{}, err
		}
		if !ok {
			break
		}
		seg.Last, seg.PartnerLast = next, q
	}
	return finishGapped(side, seg)
}

// extendGapped looks for the next aligned segment that continues seg.
func extendGapped(side linkedArray, seg GappedSegment, threshold int64) (int64, int64, bool, error) {
	var gap int64
	j := seg.Last + 1
	for ; j < side.count(); j++ {
		s, err := segmentSequence(side, j)
		if err != nil {
			return 0, 0, false, err
		}
		if s != seg.Sequence {
			return 0, 0, false, nil
		}
		q, rev, err := side.link(j)
		if err != nil {
			return 0, 0, false, err
		}
		if q != NullIndex {
			if rev != seg.Reversed {
				return 0, 0, false, nil
			}
			ok, err := partnerGapFits(side, seg, q, threshold)
			return j, q, ok, err
		}
		_, length, err := side.bounds(j)
		if err != nil {
			return 0, 0, false, err
		}
		if gap += length; gap > threshold {
			return 0, 0, false, nil
		}
	}
	return 0, 0, false, nil
}

// partnerGapFits reports whether partner q directly follows the last
// partner of seg, skipping only unlinked partner segments of the same
// sequence totalling at most threshold bases.
func partnerGapFits(side linkedArray, seg GappedSegment, q, threshold int64) (bool, error) {
	d := int64(1)
	if seg.Reversed {
		d = -1
	}
	if (q-seg.PartnerLast)*d < 1 {
		return false, nil
	}
	qs, err := partnerSequence(side, q)
	if err != nil || qs != seg.PartnerSequence {
		return false, err
	}
	var gap int64
	for k := seg.PartnerLast + d; k != q; k += d {
		linked, err := side.partnerLinked(k)
		if err != nil || linked {
			return false, err
		}
		_, length, err := side.partnerBounds(k)
		if err != nil {
			return false, err
		}
		if gap += length; gap > threshold {
			return false, nil
		}
	}
	return true, nil
}

func finishGapped(side linkedArray, seg GappedSegment) (GappedSegment, error) {
	start, _, err := side.bounds(seg.First)
	if err != nil {
		return GappedSegment{}, err
	}
	lstart, llength, err := side.bounds(seg.Last)
	if err != nil {
		return GappedSegment{}, err
	}
	seg.Start, seg.End = start, lstart+llength
	return seg, nil
}

// gappedIterator walks the gapped segments of one side left to right.
type gappedIterator struct {
	side       linkedArray
	threshold  int64
	seg        GappedSegment
	valid      bool
	generation [2]uint64
}

func newGappedIterator(side linkedArray, start, threshold int64) (*gappedIterator, error) {
	it := &gappedIterator{
		side:       side,
		threshold:  threshold,
		generation: [2]uint64{side.genome().generation, side.partnerGenome().generation},
	}
	if err := it.moveTo(start); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *gappedIterator) moveTo(i int64) error {
	if i >= it.side.count() {
		it.valid = false
		return nil
	}
	seg, err := gappedAt(it.side, i, it.threshold)
	if err != nil {
		return err
	}
	it.seg, it.valid = seg, true
	return nil
}

func (it *gappedIterator) check() error {
	if it.generation != [2]uint64{it.side.genome().generation, it.side.partnerGenome().generation} {
		return fmt.Errorf("gapped iterator over %q: %w", it.side.genome().name, ErrStaleIterator)
	}
	return nil
}

// Segment returns the current gapped segment.
func (it *gappedIterator) Segment() GappedSegment { return it.seg }

// Valid reports whether the iterator is at a gapped segment.
func (it *gappedIterator) Valid() bool { return it.valid }

// ToRight moves to the gapped segment following the current one.
func (it *gappedIterator) ToRight() error {
	if err := it.check(); err != nil {
		return err
	}
	if !it.valid {
		return fmt.Errorf("gapped iterator over %q past end: %w", it.side.genome().name, ErrOutOfRange)
	}
	return it.moveTo(it.seg.Last + 1)
}

// GappedTopIterator iterates the gapped top segments of a genome against
// its parent.
type GappedTopIterator struct {
	*gappedIterator
}

// GappedTopIterator returns an iterator at the gapped segment starting at
// top segment start.
func (g *Genome) GappedTopIterator(start, gapThreshold int64) (*GappedTopIterator, error) {
	parent, err := g.Parent()
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("gapped top segments of root genome %q: %w", g.name, ErrNotFound)
	}
	it, err := newGappedIterator(topSide{child: g, parent: parent, slot: parent.ChildIndex(g)}, start, gapThreshold)
	if err != nil {
		return nil, err
	}
	return &GappedTopIterator{it}, nil
}

// GappedBottomIterator iterates the gapped bottom segments of a genome
// against one child.
type GappedBottomIterator struct {
	*gappedIterator
}

// GappedBottomIterator returns an iterator at the gapped segment starting
// at bottom segment start, linked to child slot childIndex.
func (g *Genome) GappedBottomIterator(childIndex int, start, gapThreshold int64) (*GappedBottomIterator, error) {
	child, err := g.Child(childIndex)
	if err != nil {
		return nil, err
	}
	it, err := newGappedIterator(bottomSide{parent: g, child: child, slot: childIndex}, start, gapThreshold)
	if err != nil {
		return nil, err
	}
	return &GappedBottomIterator{it}, nil
}
