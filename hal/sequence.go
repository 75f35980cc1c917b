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

// Sequence is a named contiguous range of a genome's coordinates, such as a
// chromosome or scaffold, owning a contiguous range of its segments.
type Sequence struct {
	genome *Genome
	index  int
	name   string
	rec    sequenceRecord
}

// Name returns the sequence name.
func (s *Sequence) Name() string { return s.name }

// FullName returns the sequence name qualified by its genome.
func (s *Sequence) FullName() string { return s.genome.name + "." + s.name }

// Genome returns the genome the sequence belongs to.
func (s *Sequence) Genome() *Genome { return s.genome }

// Index returns the position of the sequence in its genome.
func (s *Sequence) Index() int { return s.index }

// Start returns the genome coordinate of the first base.
func (s *Sequence) Start() int64 { return s.rec.start }

// Length returns the number of bases.
func (s *Sequence) Length() int64 { return s.rec.length }

// End returns the genome coordinate one past the last base.
func (s *Sequence) End() int64 { return s.rec.start + s.rec.length }

// Contains reports whether genome position pos lies in the sequence.
func (s *Sequence) Contains(pos int64) bool { return pos >= s.Start() && pos < s.End() }

// NumTopSegments returns the number of top segments in the sequence.
func (s *Sequence) NumTopSegments() int64 { return s.rec.numTop }

// NumBottomSegments returns the number of bottom segments in the sequence.
func (s *Sequence) NumBottomSegments() int64 { return s.rec.numBottom }

// TopSegmentStart returns the index of the first top segment.
func (s *Sequence) TopSegmentStart() int64 { return s.rec.topStart }

// BottomSegmentStart returns the index of the first bottom segment.
func (s *Sequence) BottomSegmentStart() int64 { return s.rec.bottomStart }

// DNAString returns the bases of the sequence.
func (s *Sequence) DNAString() (string, error) {
	return s.genome.DNAString(s.Start(), s.Length())
}

// TopSegmentIterator returns an iterator at the first top segment.
func (s *Sequence) TopSegmentIterator() *TopSegmentIterator {
	return s.genome.TopSegmentIterator(s.rec.topStart)
}

// BottomSegmentIterator returns an iterator at the first bottom segment.
func (s *Sequence) BottomSegmentIterator() *BottomSegmentIterator {
	return s.genome.BottomSegmentIterator(s.rec.bottomStart)
}

func (s *Sequence) String() string {
	return fmt.Sprintf("%s[%d,%d)", s.FullName(), s.Start(), s.End())
}
