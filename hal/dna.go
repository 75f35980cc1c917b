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

var complementTable [256]byte

func init() {
	for i := range complementTable {
		complementTable[i] = byte(i)
	}
	for _, p := range []string{"AT", "CG", "at", "cg"} {
		complementTable[p[0]], complementTable[p[1]] = p[1], p[0]
	}
}

// Complement returns the complementary base, preserving case.  Bases other
// than ACGT are returned unchanged.
func Complement(b byte) byte { return complementTable[b] }

// ReverseComplement returns the reverse complement of dna.
func ReverseComplement(dna string) string {
	out := make([]byte, len(dna))
	for i := 0; i < len(dna); i++ {
		out[len(dna)-1-i] = complementTable[dna[i]]
	}
	return string(out)
}

// DNAIterator is a cursor over the bases of a genome.  A reversed iterator
// reads the complementary strand and moves right to left.
type DNAIterator struct {
	genome     *Genome
	pos        int64
	reversed   bool
	generation uint64
}

// DNAIterator returns an iterator at genome position pos.
func (g *Genome) DNAIterator(pos int64) *DNAIterator {
	return &DNAIterator{genome: g, pos: pos, generation: g.generation}
}

func (it *DNAIterator) check() error {
	if it.generation != it.genome.generation {
		return fmt.Errorf("dna iterator over %q: %w", it.genome.name, ErrStaleIterator)
	}
	return nil
}

// Genome returns the genome being iterated.
func (it *DNAIterator) Genome() *Genome { return it.genome }

// Position returns the current genome position.
func (it *DNAIterator) Position() int64 { return it.pos }

// Reversed reports whether the iterator reads the reverse strand.
func (it *DNAIterator) Reversed() bool { return it.reversed }

// Valid reports whether the iterator is within the genome.
func (it *DNAIterator) Valid() bool { return it.pos >= 0 && it.pos < it.genome.length }

// Sequence returns the sequence containing the current position.
func (it *DNAIterator) Sequence() (*Sequence, error) {
	return it.genome.SequenceBySite(it.pos)
}

// JumpTo moves the iterator to genome position pos.
func (it *DNAIterator) JumpTo(pos int64) error {
	if err := it.check(); err != nil {
		return err
	}
	if pos < 0 || pos >= it.genome.length {
		return fmt.Errorf("jumping to %d in %q: %w", pos, it.genome.name, ErrOutOfRange)
	}
	it.pos = pos
	return nil
}

// Base returns the current base, complemented if the iterator is reversed.
func (it *DNAIterator) Base() (byte, error) {
	if err := it.check(); err != nil {
		return 0, err
	}
	b, err := it.genome.Base(it.pos)
	if err != nil {
		return 0, err
	}
	if it.reversed {
		b = Complement(b)
	}
	return b, nil
}

// SetBase stores b at the current position, as read in the iterator's
// orientation.
func (it *DNAIterator) SetBase(b byte) error {
	if err := it.check(); err != nil {
		return err
	}
	if it.reversed {
		b = Complement(b)
	}
	return it.genome.SetBase(it.pos, b)
}

// ToRight moves one base in the iterator's direction.  The iterator may
// step just past either end of the genome, after which it is not Valid.
func (it *DNAIterator) ToRight() error {
	return it.step(1)
}

// ToLeft moves one base against the iterator's direction.
func (it *DNAIterator) ToLeft() error {
	return it.step(-1)
}

func (it *DNAIterator) step(d int64) error {
	if err := it.check(); err != nil {
		return err
	}
	if it.reversed {
		d = -d
	}
	if next := it.pos + d; next < -1 || next > it.genome.length {
		return fmt.Errorf("moving past %d in %q: %w", it.pos, it.genome.name, ErrOutOfRange)
	}
	it.pos += d
	return nil
}

// ToReverse switches the iterator to the other strand.
func (it *DNAIterator) ToReverse() {
	it.reversed = !it.reversed
}

// Copy returns an independent iterator at the same position.
func (it *DNAIterator) Copy() *DNAIterator {
	c := *it
	return &c
}

func (it *DNAIterator) String() string {
	strand := '+'
	if it.reversed {
		strand = '-'
	}
	return fmt.Sprintf("%s:%d%c", it.genome.name, it.pos, strand)
}
