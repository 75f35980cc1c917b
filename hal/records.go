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
	"github.com/googlegenomics/hal/internal/binary"
)

const (
	topRecordSize        = 33
	bottomRecordBaseSize = 16
	childLinkSize        = 9
	sequenceRecordSize   = 48
)

// TopSegment is the stored form of a top segment.  Its length is implied by
// the start of the following segment.
type TopSegment struct {
	Start             int64
	BottomParseIndex  int64
	ParentIndex       int64
	NextParalogyIndex int64
	ParentReversed    bool
}

// ChildLink is the link from a bottom segment to one child genome.
type ChildLink struct {
	Index    int64
	Reversed bool
}

// BottomSegment is the stored form of a bottom segment.  Children has one
// slot per child genome, in tree order.
type BottomSegment struct {
	Start         int64
	TopParseIndex int64
	Children      []ChildLink
}

// NewTopSegment returns an unaligned top segment starting at start.
func NewTopSegment(start int64) TopSegment {
	return TopSegment{
		Start:             start,
		BottomParseIndex:  NullIndex,
		ParentIndex:       NullIndex,
		NextParalogyIndex: NullIndex,
	}
}

// NewBottomSegment returns a bottom segment starting at start with
// numChildren empty child links.
func NewBottomSegment(start int64, numChildren int) BottomSegment {
	b := BottomSegment{Start: start, TopParseIndex: NullIndex, Children: make([]ChildLink, numChildren)}
	for i := range b.Children {
		b.Children[i].Index = NullIndex
	}
	return b
}

func bottomRecordSize(numChildren int) int {
	return bottomRecordBaseSize + childLinkSize*numChildren
}

func putBool(b []byte, v bool) {
	if v {
		b[0] = 1
	} else {
		b[0] = 0
	}
}

func (t TopSegment) encode(rec []byte) {
	binary.PutInt64(rec[0:], t.Start)
	binary.PutInt64(rec[8:], t.BottomParseIndex)
	binary.PutInt64(rec[16:], t.ParentIndex)
	binary.PutInt64(rec[24:], t.NextParalogyIndex)
	putBool(rec[32:], t.ParentReversed)
}

func decodeTopSegment(rec []byte) TopSegment {
	return TopSegment{
		Start:             binary.Int64(rec[0:]),
		BottomParseIndex:  binary.Int64(rec[8:]),
		ParentIndex:       binary.Int64(rec[16:]),
		NextParalogyIndex: binary.Int64(rec[24:]),
		ParentReversed:    rec[32] != 0,
	}
}

func (b BottomSegment) encode(rec []byte) {
	binary.PutInt64(rec[0:], b.Start)
	binary.PutInt64(rec[8:], b.TopParseIndex)
	for i, c := range b.Children {
		off := bottomRecordBaseSize + i*childLinkSize
		binary.PutInt64(rec[off:], c.Index)
		putBool(rec[off+8:], c.Reversed)
	}
}

func decodeBottomSegment(rec []byte, numChildren int) BottomSegment {
	b := BottomSegment{
		Start:         binary.Int64(rec[0:]),
		TopParseIndex: binary.Int64(rec[8:]),
		Children:      make([]ChildLink, numChildren),
	}
	for i := range b.Children {
		off := bottomRecordBaseSize + i*childLinkSize
		b.Children[i] = ChildLink{Index: binary.Int64(rec[off:]), Reversed: rec[off+8] != 0}
	}
	return b
}

type sequenceRecord struct {
	start       int64
	length      int64
	numTop      int64
	numBottom   int64
	topStart    int64
	bottomStart int64
}

func (s sequenceRecord) encode(rec []byte) {
	binary.PutInt64(rec[0:], s.start)
	binary.PutInt64(rec[8:], s.length)
	binary.PutInt64(rec[16:], s.numTop)
	binary.PutInt64(rec[24:], s.numBottom)
	binary.PutInt64(rec[32:], s.topStart)
	binary.PutInt64(rec[40:], s.bottomStart)
}

func decodeSequenceRecord(rec []byte) sequenceRecord {
	return sequenceRecord{
		start:       binary.Int64(rec[0:]),
		length:      binary.Int64(rec[8:]),
		numTop:      binary.Int64(rec[16:]),
		numBottom:   binary.Int64(rec[24:]),
		topStart:    binary.Int64(rec[32:]),
		bottomStart: binary.Int64(rec[40:]),
	}
}
