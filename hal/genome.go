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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/googlegenomics/hal/internal/pagedarray"
)

const (
	dnaArray       = "dna"
	topArray       = "top"
	bottomArray    = "bottom"
	sequenceArray  = "sequences"
	seqNamesArray  = "sequenceNames"
	genomeMetaName = "meta"
)

// SequenceInfo gives the dimensions of one sequence of a genome.
type SequenceInfo struct {
	Name      string
	Length    int64
	NumTop    int64
	NumBottom int64
}

// Genome is one node of the alignment tree.  Its parent and children are
// held as tree ids and resolved through the owning Alignment.
type Genome struct {
	aln   *Alignment
	id    int
	name  string
	group string

	dna    *pagedarray.Array
	top    *pagedarray.Array
	bottom *pagedarray.Array

	length      int64
	numTop      int64
	numBottom   int64
	bottomSlots int

	sequences []*Sequence
	seqByName map[string]*Sequence
	meta      *Metadata

	// generation changes whenever the arrays are rebuilt.
	generation uint64

	// Tree cache, maintained by Alignment.resetTreeCache.
	parentID  int
	childIDs  []int
	childSlot map[int]int
}

func loadGenome(a *Alignment, id int) (*Genome, error) {
	n := a.tree.nodes[id]
	g := &Genome{
		aln:         a,
		id:          id,
		name:        n.name,
		group:       genomesGroup + "/" + n.name,
		parentID:    noNode,
		bottomSlots: len(n.children),
		seqByName:   make(map[string]*Sequence),
	}
	meta, err := loadMetadata(a.c, g.group+"/"+genomeMetaName, a.opts.ReadOnly)
	if err != nil {
		return nil, err
	}
	g.meta = meta

	seqs, err := g.loadArray(sequenceArray)
	if errors.Is(err, ErrNotFound) {
		return g, nil
	}
	if err != nil {
		return nil, err
	}
	defer seqs.Close()
	names, err := g.loadArray(seqNamesArray)
	if err != nil {
		return nil, err
	}
	defer names.Close()
	if err := g.readSequences(seqs, names); err != nil {
		return nil, err
	}

	if g.dna, err = g.loadArray(dnaArray); err != nil {
		return nil, err
	}
	if g.top, err = g.loadArray(topArray); err != nil {
		return nil, err
	}
	if g.bottom, err = g.loadArray(bottomArray); err != nil {
		return nil, err
	}
	if g.dna.Len() != uint64(g.length) {
		return nil, fmt.Errorf("dna array has %d bases, sequences total %d: %w", g.dna.Len(), g.length, ErrInconsistentTopology)
	}
	g.numTop = int64(g.top.Len()) - 1
	g.numBottom = int64(g.bottom.Len()) - 1
	if want := bottomRecordSize(len(n.children)); g.bottom.ElementSize() != want {
		return nil, fmt.Errorf("bottom records of %d bytes for %d children: %w", g.bottom.ElementSize(), len(n.children), ErrInconsistentTopology)
	}
	return g, nil
}

func (g *Genome) arrayPath(kind string) string {
	return g.group + "/" + kind
}

func (g *Genome) loadArray(kind string) (*pagedarray.Array, error) {
	ds, err := g.aln.c.OpenDataset(g.arrayPath(kind))
	if err != nil {
		return nil, err
	}
	return pagedarray.LoadDataset(ds, kind, pagedarray.FitPagesPerBuffer(ds.Layout(), g.aln.opts.PagesPerBuffer))
}

func (g *Genome) createArray(kind string, elementSize int, n uint64) (*pagedarray.Array, error) {
	chunk := g.aln.opts.ChunkSize
	if chunk <= 1 || chunk > n {
		chunk = 0
	}
	return pagedarray.Create(g.aln.c, g.arrayPath(kind), elementSize, n, chunk)
}

func (g *Genome) readSequences(seqs, names *pagedarray.Array) error {
	var b strings.Builder
	for i := uint64(0); i < names.Len(); i++ {
		c, err := names.Get(i)
		if err != nil {
			return err
		}
		b.WriteByte(c[0])
	}
	nameList := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	if seqs.Len() == 0 {
		nameList = nil
	}
	if uint64(len(nameList)) != seqs.Len() {
		return fmt.Errorf("%d sequence names for %d sequences: %w", len(nameList), seqs.Len(), ErrInconsistentTopology)
	}
	for i := uint64(0); i < seqs.Len(); i++ {
		rec, err := seqs.Get(i)
		if err != nil {
			return err
		}
		s := &Sequence{genome: g, index: int(i), name: nameList[i], rec: decodeSequenceRecord(rec)}
		g.sequences = append(g.sequences, s)
		g.seqByName[s.name] = s
		g.length += s.rec.length
	}
	return nil
}

func (g *Genome) writeSequences() error {
	seqs, err := g.createArray(sequenceArray, sequenceRecordSize, uint64(len(g.sequences)))
	if err != nil {
		return err
	}
	var names strings.Builder
	for i, s := range g.sequences {
		rec, err := seqs.Update(uint64(i))
		if err != nil {
			return err
		}
		s.rec.encode(rec)
		names.WriteString(s.name)
		names.WriteByte('\n')
	}
	if err := seqs.Close(); err != nil {
		return err
	}

	nameArray, err := g.createArray(seqNamesArray, 1, uint64(names.Len()))
	if err != nil {
		return err
	}
	for i, c := range []byte(names.String()) {
		if err := nameArray.Set(uint64(i), []byte{c}); err != nil {
			return err
		}
	}
	return nameArray.Close()
}

func (g *Genome) checkWritable() error {
	if g.aln.opts.ReadOnly {
		return fmt.Errorf("modifying genome %q: %w", g.name, ErrReadOnly)
	}
	return nil
}

func validateSequences(seqs []SequenceInfo) error {
	seen := make(map[string]bool)
	for _, s := range seqs {
		if s.Name == "" || strings.ContainsAny(s.Name, "\n") {
			return fmt.Errorf("invalid sequence name %q", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate sequence name %q", s.Name)
		}
		seen[s.Name] = true
		if s.Length < 0 || s.NumTop < 0 || s.NumBottom < 0 {
			return fmt.Errorf("negative dimension for sequence %q", s.Name)
		}
		if s.Length == 0 && (s.NumTop > 0 || s.NumBottom > 0) {
			return fmt.Errorf("empty sequence %q with segments", s.Name)
		}
	}
	return nil
}

// SetDimensions replaces every array of the genome with zero-filled arrays
// sized for seqs.  Segment links are reset to NullIndex and each sequence's
// segments start at the sequence start.  Live iterators over the genome
// become stale.
func (g *Genome) SetDimensions(seqs []SequenceInfo) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	if err := validateSequences(seqs); err != nil {
		return err
	}
	if err := g.releaseArrays(); err != nil {
		return err
	}
	g.generation++

	g.sequences = nil
	g.seqByName = make(map[string]*Sequence)
	var start, top, bottom int64
	for i, info := range seqs {
		s := &Sequence{genome: g, index: i, name: info.Name, rec: sequenceRecord{
			start:       start,
			length:      info.Length,
			numTop:      info.NumTop,
			numBottom:   info.NumBottom,
			topStart:    top,
			bottomStart: bottom,
		}}
		g.sequences = append(g.sequences, s)
		g.seqByName[s.name] = s
		start += info.Length
		top += info.NumTop
		bottom += info.NumBottom
	}
	g.length, g.numTop, g.numBottom = start, top, bottom
	g.bottomSlots = len(g.childIDs)

	if err := g.writeSequences(); err != nil {
		return err
	}
	var err error
	if g.dna, err = g.createArray(dnaArray, 1, uint64(g.length)); err != nil {
		return err
	}
	if err := g.resetTopArray(); err != nil {
		return err
	}
	return g.resetBottomArray()
}

func (g *Genome) checkSameSequences(seqs []SequenceInfo) error {
	if len(seqs) != len(g.sequences) {
		return fmt.Errorf("genome %q has %d sequences, got %d", g.name, len(g.sequences), len(seqs))
	}
	for i, info := range seqs {
		s := g.sequences[i]
		if info.Name != s.name || info.Length != s.rec.length {
			return fmt.Errorf("sequence %d is %s of length %d, got %s of length %d", i, s.name, s.rec.length, info.Name, info.Length)
		}
	}
	return validateSequences(seqs)
}

// UpdateTopDimensions rebuilds the top segment array with new per-sequence
// counts, keeping the DNA and bottom segments.
func (g *Genome) UpdateTopDimensions(seqs []SequenceInfo) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	if err := g.checkSameSequences(seqs); err != nil {
		return err
	}
	if g.top != nil {
		if err := g.top.Close(); err != nil {
			return err
		}
	}
	g.generation++
	var top int64
	for i, info := range seqs {
		g.sequences[i].rec.numTop = info.NumTop
		g.sequences[i].rec.topStart = top
		top += info.NumTop
	}
	g.numTop = top
	if err := g.writeSequences(); err != nil {
		return err
	}
	return g.resetTopArray()
}

// UpdateBottomDimensions rebuilds the bottom segment array with new
// per-sequence counts, keeping the DNA and top segments.
func (g *Genome) UpdateBottomDimensions(seqs []SequenceInfo) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	if err := g.checkSameSequences(seqs); err != nil {
		return err
	}
	if g.bottom != nil {
		if err := g.bottom.Close(); err != nil {
			return err
		}
	}
	g.generation++
	var bottom int64
	for i, info := range seqs {
		g.sequences[i].rec.numBottom = info.NumBottom
		g.sequences[i].rec.bottomStart = bottom
		bottom += info.NumBottom
	}
	g.numBottom = bottom
	g.bottomSlots = len(g.childIDs)
	if err := g.writeSequences(); err != nil {
		return err
	}
	return g.resetBottomArray()
}

func (g *Genome) resetTopArray() error {
	var err error
	if g.top, err = g.createArray(topArray, topRecordSize, uint64(g.numTop+1)); err != nil {
		return err
	}
	for _, s := range g.sequences {
		for i := s.rec.topStart; i < s.rec.topStart+s.rec.numTop; i++ {
			if err := g.putTop(i, NewTopSegment(s.rec.start)); err != nil {
				return err
			}
		}
	}
	return g.putTop(g.numTop, NewTopSegment(g.length))
}

func (g *Genome) resetBottomArray() error {
	var err error
	if g.bottom, err = g.createArray(bottomArray, bottomRecordSize(g.bottomSlots), uint64(g.numBottom+1)); err != nil {
		return err
	}
	for _, s := range g.sequences {
		for i := s.rec.bottomStart; i < s.rec.bottomStart+s.rec.numBottom; i++ {
			if err := g.putBottom(i, NewBottomSegment(s.rec.start, g.bottomSlots)); err != nil {
				return err
			}
		}
	}
	return g.putBottom(g.numBottom, NewBottomSegment(g.length, g.bottomSlots))
}

// rebuildBottomSlots rewrites every bottom record through edit, which
// returns the new child links of a record.
func (g *Genome) rebuildBottomSlots(slots int, edit func([]ChildLink) []ChildLink) error {
	if g.bottom == nil {
		g.bottomSlots = slots
		return nil
	}
	records := make([]BottomSegment, g.numBottom+1)
	for i := range records {
		b, err := g.bottomRecord(int64(i))
		if err != nil {
			return err
		}
		b.Children = edit(b.Children)
		records[i] = b
	}
	if err := g.bottom.Close(); err != nil {
		return err
	}
	g.generation++
	g.bottomSlots = slots
	var err error
	if g.bottom, err = g.createArray(bottomArray, bottomRecordSize(slots), uint64(len(records))); err != nil {
		return err
	}
	for i, b := range records {
		if err := g.putBottom(int64(i), b); err != nil {
			return err
		}
	}
	return nil
}

func (g *Genome) insertChildSlot(slot int) error {
	return g.rebuildBottomSlots(g.bottomSlots+1, func(links []ChildLink) []ChildLink {
		out := make([]ChildLink, 0, len(links)+1)
		out = append(out, links[:slot]...)
		out = append(out, ChildLink{Index: NullIndex})
		return append(out, links[slot:]...)
	})
}

func (g *Genome) removeChildSlot(slot int) error {
	return g.rebuildBottomSlots(g.bottomSlots-1, func(links []ChildLink) []ChildLink {
		return append(links[:slot:slot], links[slot+1:]...)
	})
}

func (g *Genome) write() error {
	for _, a := range []*pagedarray.Array{g.dna, g.top, g.bottom} {
		if a == nil {
			continue
		}
		if err := a.Write(); err != nil {
			return err
		}
	}
	return g.meta.Write()
}

func (g *Genome) releaseArrays() error {
	var errs []error
	for _, a := range []*pagedarray.Array{g.dna, g.top, g.bottom} {
		if a != nil {
			errs = append(errs, a.Close())
		}
	}
	g.dna, g.top, g.bottom = nil, nil, nil
	return errors.Join(errs...)
}

func (g *Genome) release() error {
	return errors.Join(g.releaseArrays(), g.meta.Write())
}

// Name returns the genome name.
func (g *Genome) Name() string { return g.name }

// Alignment returns the alignment the genome belongs to.
func (g *Genome) Alignment() *Alignment { return g.aln }

// Length returns the total number of bases.
func (g *Genome) Length() int64 { return g.length }

// NumTopSegments returns the number of top segments.
func (g *Genome) NumTopSegments() int64 { return g.numTop }

// NumBottomSegments returns the number of bottom segments.
func (g *Genome) NumBottomSegments() int64 { return g.numBottom }

// Metadata returns the genome's metadata store.
func (g *Genome) Metadata() *Metadata { return g.meta }

// Parent returns the parent genome, or nil for the root.
func (g *Genome) Parent() (*Genome, error) {
	if g.parentID == noNode {
		return nil, nil
	}
	return g.aln.openGenome(g.parentID)
}

// NumChildren returns the number of child genomes.
func (g *Genome) NumChildren() int { return len(g.childIDs) }

// Child returns the i'th child genome.
func (g *Genome) Child(i int) (*Genome, error) {
	if i < 0 || i >= len(g.childIDs) {
		return nil, fmt.Errorf("child %d of %q: %w", i, g.name, ErrOutOfRange)
	}
	return g.aln.openGenome(g.childIDs[i])
}

// ChildIndex returns the slot of child in this genome's bottom segments, or
// -1 if it is not a child.
func (g *Genome) ChildIndex(child *Genome) int {
	if slot, ok := g.childSlot[child.id]; ok && child.aln == g.aln {
		return slot
	}
	return -1
}

// Sequences returns the sequences in coordinate order.
func (g *Genome) Sequences() []*Sequence { return g.sequences }

// NumSequences returns the number of sequences.
func (g *Genome) NumSequences() int { return len(g.sequences) }

// SequenceByName returns the named sequence.
func (g *Genome) SequenceByName(name string) (*Sequence, error) {
	s, ok := g.seqByName[name]
	if !ok {
		return nil, fmt.Errorf("sequence %q in genome %q: %w", name, g.name, ErrNotFound)
	}
	return s, nil
}

// SequenceBySite returns the sequence containing genome position pos.
func (g *Genome) SequenceBySite(pos int64) (*Sequence, error) {
	if pos < 0 || pos >= g.length {
		return nil, fmt.Errorf("position %d of genome %q with length %d: %w", pos, g.name, g.length, ErrOutOfRange)
	}
	i := sort.Search(len(g.sequences), func(i int) bool {
		return g.sequences[i].End() > pos
	})
	return g.sequences[i], nil
}

func (g *Genome) topRecord(i int64) (TopSegment, error) {
	if g.top == nil || i < 0 || i > g.numTop {
		return TopSegment{}, fmt.Errorf("top segment %d of %q: %w", i, g.name, ErrOutOfRange)
	}
	rec, err := g.top.Get(uint64(i))
	if err != nil {
		return TopSegment{}, err
	}
	return decodeTopSegment(rec), nil
}

func (g *Genome) putTop(i int64, t TopSegment) error {
	rec, err := g.top.Update(uint64(i))
	if err != nil {
		return err
	}
	t.encode(rec)
	return nil
}

func (g *Genome) bottomRecord(i int64) (BottomSegment, error) {
	if g.bottom == nil || i < 0 || i > g.numBottom {
		return BottomSegment{}, fmt.Errorf("bottom segment %d of %q: %w", i, g.name, ErrOutOfRange)
	}
	rec, err := g.bottom.Get(uint64(i))
	if err != nil {
		return BottomSegment{}, err
	}
	return decodeBottomSegment(rec, g.bottomSlots), nil
}

func (g *Genome) putBottom(i int64, b BottomSegment) error {
	rec, err := g.bottom.Update(uint64(i))
	if err != nil {
		return err
	}
	b.encode(rec)
	return nil
}

// TopSegment returns top segment i.
func (g *Genome) TopSegment(i int64) (TopSegment, error) {
	if i >= g.numTop {
		return TopSegment{}, fmt.Errorf("top segment %d of %q: %w", i, g.name, ErrOutOfRange)
	}
	return g.topRecord(i)
}

// SetTopSegment stores top segment i.
func (g *Genome) SetTopSegment(i int64, t TopSegment) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	if i < 0 || i >= g.numTop {
		return fmt.Errorf("top segment %d of %q: %w", i, g.name, ErrOutOfRange)
	}
	return g.putTop(i, t)
}

// BottomSegment returns bottom segment i.
func (g *Genome) BottomSegment(i int64) (BottomSegment, error) {
	if i >= g.numBottom {
		return BottomSegment{}, fmt.Errorf("bottom segment %d of %q: %w", i, g.name, ErrOutOfRange)
	}
	return g.bottomRecord(i)
}

// SetBottomSegment stores bottom segment i.  It must have one child link
// per child genome.
func (g *Genome) SetBottomSegment(i int64, b BottomSegment) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	if i < 0 || i >= g.numBottom {
		return fmt.Errorf("bottom segment %d of %q: %w", i, g.name, ErrOutOfRange)
	}
	if len(b.Children) != g.bottomSlots {
		return fmt.Errorf("bottom segment with %d child links for %d children: %w", len(b.Children), g.bottomSlots, ErrInconsistentTopology)
	}
	return g.putBottom(i, b)
}

// topBounds returns the start and length of top segment i.
func (g *Genome) topBounds(i int64) (int64, int64, error) {
	t, err := g.topRecord(i)
	if err != nil {
		return 0, 0, err
	}
	next, err := g.topRecord(i + 1)
	if err != nil {
		return 0, 0, err
	}
	return t.Start, next.Start - t.Start, nil
}

func (g *Genome) bottomBounds(i int64) (int64, int64, error) {
	b, err := g.bottomRecord(i)
	if err != nil {
		return 0, 0, err
	}
	next, err := g.bottomRecord(i + 1)
	if err != nil {
		return 0, 0, err
	}
	return b.Start, next.Start - b.Start, nil
}

// searchSegments returns the last index in [0, n) whose start is at most
// pos, trying hint and its successor first.
func searchSegments(n, hint, pos int64, start func(int64) (int64, error)) (int64, error) {
	contains := func(i int64) (bool, error) {
		s, err := start(i)
		if err != nil || s > pos {
			return false, err
		}
		next, err := start(i + 1)
		return next > pos, err
	}
	for _, i := range []int64{hint, hint + 1} {
		if i >= 0 && i < n {
			ok, err := contains(i)
			if err != nil {
				return NullIndex, err
			}
			if ok {
				return i, nil
			}
		}
	}
	lo, hi := int64(0), n
	var searchErr error
	for lo < hi {
		mid := lo + (hi-lo)/2
		s, err := start(mid)
		if err != nil {
			searchErr = err
			break
		}
		if s <= pos {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if searchErr != nil {
		return NullIndex, searchErr
	}
	if lo == 0 {
		return NullIndex, fmt.Errorf("no segment starts at or before %d: %w", pos, ErrInconsistentTopology)
	}
	return lo - 1, nil
}

func (g *Genome) topIndexAt(pos, hint int64) (int64, error) {
	if pos < 0 || pos >= g.length || g.numTop == 0 {
		return NullIndex, fmt.Errorf("top segment at %d of %q: %w", pos, g.name, ErrOutOfRange)
	}
	return searchSegments(g.numTop, hint, pos, func(i int64) (int64, error) {
		t, err := g.topRecord(i)
		return t.Start, err
	})
}

func (g *Genome) bottomIndexAt(pos, hint int64) (int64, error) {
	if pos < 0 || pos >= g.length || g.numBottom == 0 {
		return NullIndex, fmt.Errorf("bottom segment at %d of %q: %w", pos, g.name, ErrOutOfRange)
	}
	return searchSegments(g.numBottom, hint, pos, func(i int64) (int64, error) {
		b, err := g.bottomRecord(i)
		return b.Start, err
	})
}

// Base returns the base at genome position pos.
func (g *Genome) Base(pos int64) (byte, error) {
	if g.dna == nil || pos < 0 || pos >= g.length {
		return 0, fmt.Errorf("base %d of %q: %w", pos, g.name, ErrOutOfRange)
	}
	rec, err := g.dna.Get(uint64(pos))
	if err != nil {
		return 0, err
	}
	return rec[0], nil
}

// SetBase stores the base at genome position pos.
func (g *Genome) SetBase(pos int64, b byte) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	if g.dna == nil || pos < 0 || pos >= g.length {
		return fmt.Errorf("base %d of %q: %w", pos, g.name, ErrOutOfRange)
	}
	return g.dna.Set(uint64(pos), []byte{b})
}

// SetString stores the bases of the whole genome.
func (g *Genome) SetString(dna string) error {
	if int64(len(dna)) != g.length {
		return fmt.Errorf("%d bases for genome %q of length %d", len(dna), g.name, g.length)
	}
	for i := 0; i < len(dna); i++ {
		if err := g.SetBase(int64(i), dna[i]); err != nil {
			return err
		}
	}
	return nil
}

// DNAString returns length bases starting at genome position start.
func (g *Genome) DNAString(start, length int64) (string, error) {
	var b strings.Builder
	b.Grow(int(length))
	for pos := start; pos < start+length; pos++ {
		c, err := g.Base(pos)
		if err != nil {
			return "", err
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}
