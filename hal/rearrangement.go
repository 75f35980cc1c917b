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

// RearrangementKind classifies a gapped top segment against its parent.
type RearrangementKind int

// Rearrangement kinds.
const (
	Nothing RearrangementKind = iota
	Insertion
	Deletion
	Inversion
	Duplication
	Transposition
	Translocation
	Gap
	Complex
)

var rearrangementNames = [...]string{
	Nothing:       "Nothing",
	Insertion:     "Insertion",
	Deletion:      "Deletion",
	Inversion:     "Inversion",
	Duplication:   "Duplication",
	Transposition: "Transposition",
	Translocation: "Translocation",
	Gap:           "Gap",
	Complex:       "Complex",
}

func (k RearrangementKind) String() string {
	if k < 0 || int(k) >= len(rearrangementNames) {
		return fmt.Sprintf("RearrangementKind(%d)", int(k))
	}
	return rearrangementNames[k]
}

// Rearrangement is one classified gapped top segment.
type Rearrangement struct {
	Kind    RearrangementKind
	Segment GappedSegment
}

// DetectRearrangements walks the gapped top segments of g and classifies
// each one by comparing it with the preceding aligned gapped segment of the
// same sequence.  Unaligned runs no longer than gapThreshold are gaps.
func DetectRearrangements(g *Genome, gapThreshold int64) ([]Rearrangement, error) {
	if g.numTop == 0 {
		return nil, nil
	}
	it, err := g.GappedTopIterator(0, gapThreshold)
	if err != nil {
		return nil, err
	}
	var segs []GappedSegment
	for ; it.Valid(); err = it.ToRight() {
		if err != nil {
			return nil, err
		}
		segs = append(segs, it.Segment())
	}
	if err != nil {
		return nil, err
	}

	side := it.side
	out := make([]Rearrangement, 0, len(segs))
	for i, seg := range segs {
		kind, err := classify(side, segs, i, gapThreshold)
		if err != nil {
			return nil, err
		}
		out = append(out, Rearrangement{Kind: kind, Segment: seg})
	}
	return out, nil
}

// alignedNeighbour returns the nearest aligned gapped segment of the same
// sequence in direction d from i, or nil.
func alignedNeighbour(segs []GappedSegment, i, d int) *GappedSegment {
	for j := i + d; j >= 0 && j < len(segs); j += d {
		if segs[j].Sequence != segs[i].Sequence {
			return nil
		}
		if segs[j].Aligned {
			return &segs[j]
		}
	}
	return nil
}

func classify(side linkedArray, segs []GappedSegment, i int, threshold int64) (RearrangementKind, error) {
	seg := segs[i]
	prev := alignedNeighbour(segs, i, -1)

	if !seg.Aligned {
		if seg.Length() <= threshold {
			return Gap, nil
		}
		next := alignedNeighbour(segs, i, 1)
		if prev == nil || next == nil {
			return Insertion, nil
		}
		if prev.Reversed != next.Reversed || prev.PartnerSequence != next.PartnerSequence {
			return Complex, nil
		}
		ok, err := partnerGapFits(side, *prev, next.PartnerFirst, threshold)
		if err != nil || !ok {
			return Complex, err
		}
		return Insertion, nil
	}

	for k := seg.First; k <= seg.Last; k++ {
		dup, err := side.paralogous(k)
		if err != nil {
			return Nothing, err
		}
		if dup {
			return Duplication, nil
		}
	}
	if prev == nil {
		return Nothing, nil
	}
	if prev.PartnerSequence != seg.PartnerSequence {
		return Translocation, nil
	}
	if prev.Reversed != seg.Reversed {
		return Inversion, nil
	}

	d := int64(1)
	if prev.Reversed {
		d = -1
	}
	if (seg.PartnerFirst-prev.PartnerLast)*d < 1 {
		return Transposition, nil
	}
	var skipped int64
	for k := prev.PartnerLast + d; k != seg.PartnerFirst; k += d {
		linked, err := side.partnerLinked(k)
		if err != nil {
			return Nothing, err
		}
		if linked {
			return Transposition, nil
		}
		_, length, err := side.partnerBounds(k)
		if err != nil {
			return Nothing, err
		}
		skipped += length
	}
	if skipped > threshold {
		return Deletion, nil
	}
	return Nothing, nil
}
