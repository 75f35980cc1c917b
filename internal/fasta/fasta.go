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

// Package fasta exports genome sequences as BGZF compressed FASTA with an
// index of the chunk holding each record, so single sequences can be read
// back without decompressing the whole file.
package fasta

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/bgzf"
	"github.com/googlegenomics/hal/internal/genomics"
)

// DefaultLineWidth is the number of bases written per line.
const DefaultLineWidth = 80

// linesPerRead is the number of lines fetched from the genome at once.
const linesPerRead = 1024

// ErrUnknownSequence is returned when a record is not in the index.
var ErrUnknownSequence = errors.New("sequence not in index")

// Options configures Export.
type Options struct {
	// LineWidth is the number of bases per line.  Zero uses
	// DefaultLineWidth.
	LineWidth int
	// Regions selects what to export.  Empty exports every sequence of the
	// genome in order.
	Regions []genomics.Region
}

// Entry locates one FASTA record inside the compressed output.
type Entry struct {
	Name   string
	Length int64
	Chunk  bgzf.Chunk
}

// Export writes the sequences of g selected by opts to w as BGZF compressed
// FASTA and returns the index of the records written.  Records for whole
// sequences are named after the sequence; partial regions are named by the
// region they cover.
func Export(w io.Writer, g *hal.Genome, opts Options) (*Index, error) {
	width := opts.LineWidth
	if width <= 0 {
		width = DefaultLineWidth
	}
	regions := opts.Regions
	if len(regions) == 0 {
		for _, seq := range g.Sequences() {
			regions = append(regions, genomics.WholeSequence(seq.Name()))
		}
	}

	bw := bgzf.NewWriter(w)
	index := &Index{}
	for _, region := range regions {
		seq, err := g.SequenceByName(region.Sequence)
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", region, err)
		}
		resolved, err := region.Resolve(seq.Length())
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", region, err)
		}
		name := seq.Name()
		if resolved.Len() != seq.Length() {
			name = resolved.String()
		}

		start := bw.Address()
		if err := writeRecord(bw, g, name, seq.Start()+resolved.Start, resolved.Len(), width); err != nil {
			return nil, fmt.Errorf("exporting %s: %w", region, err)
		}
		index.Entries = append(index.Entries, Entry{
			Name:   name,
			Length: resolved.Len(),
			Chunk:  bgzf.Chunk{Start: start, End: bw.Address()},
		})
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("closing output: %w", err)
	}
	return index, nil
}

func writeRecord(w io.Writer, g *hal.Genome, name string, start, length int64, width int) error {
	if _, err := fmt.Fprintf(w, ">%s\n", name); err != nil {
		return err
	}
	batch := int64(width * linesPerRead)
	line := make([]byte, 0, width+1)
	for offset := int64(0); offset < length; offset += batch {
		dna, err := g.DNAString(start+offset, min(batch, length-offset))
		if err != nil {
			return err
		}
		for len(dna) > 0 {
			n := min(width, len(dna))
			line = append(append(line[:0], dna[:n]...), '\n')
			if _, err := w.Write(line); err != nil {
				return err
			}
			dna = dna[n:]
		}
	}
	return nil
}

// ReadSequence returns the bases of the record called name from the BGZF
// file r described by index.
func ReadSequence(r io.ReaderAt, index *Index, name string) (string, error) {
	entry, ok := index.Entry(name)
	if !ok {
		return "", fmt.Errorf("reading %q: %w", name, ErrUnknownSequence)
	}
	data, err := bgzf.ReadChunk(r, &entry.Chunk)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", name, err)
	}
	header, body, ok := bytes.Cut(data, []byte{'\n'})
	if !ok || string(header) != ">"+name {
		return "", fmt.Errorf("reading %q: unexpected record header %q", name, header)
	}
	dna := bytes.ReplaceAll(body, []byte{'\n'}, nil)
	if int64(len(dna)) != entry.Length {
		return "", fmt.Errorf("reading %q: got %d bases, index has %d", name, len(dna), entry.Length)
	}
	return string(dna), nil
}

// Copy writes the records called names, or every record if there are none,
// from the BGZF file r to w as plain FASTA.  Records are written in file
// order and neighbouring records are read as one chunk.
func Copy(w io.Writer, r io.ReaderAt, index *Index, names ...string) error {
	if len(names) == 0 {
		for _, e := range index.Entries {
			names = append(names, e.Name)
		}
	}
	chunks, err := index.Chunks(names...)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		data, err := bgzf.ReadChunk(r, chunk)
		if err != nil {
			return fmt.Errorf("copying records: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing records: %v", err)
		}
	}
	return nil
}
