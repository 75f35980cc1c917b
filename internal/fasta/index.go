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

package fasta

import (
	"fmt"
	"io"

	"github.com/googlegenomics/hal/internal/bgzf"
	"github.com/googlegenomics/hal/internal/binary"
)

const indexMagic = "HFI\x01"

// mergeLimit bounds the size of chunks joined by Index.Chunks.
const mergeLimit = 16 * bgzf.MaximumBlockSize

// Index lists the records of an exported FASTA file in file order.
type Index struct {
	Entries []Entry
}

// Entry returns the entry for the record called name.
func (idx *Index) Entry(name string) (Entry, bool) {
	for _, e := range idx.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Chunks returns the BGZF chunks covering the named records, with
// neighbouring chunks merged.
func (idx *Index) Chunks(names ...string) ([]*bgzf.Chunk, error) {
	var chunks []*bgzf.Chunk
	for _, name := range names {
		e, ok := idx.Entry(name)
		if !ok {
			return nil, fmt.Errorf("finding %q: %w", name, ErrUnknownSequence)
		}
		chunk := e.Chunk
		chunks = append(chunks, &chunk)
	}
	return bgzf.Merge(chunks, mergeLimit), nil
}

// Write writes the index to w in its binary form.
func (idx *Index) Write(w io.Writer) error {
	if _, err := io.WriteString(w, indexMagic); err != nil {
		return fmt.Errorf("writing magic: %v", err)
	}
	if err := binary.Write(w, int32(len(idx.Entries))); err != nil {
		return fmt.Errorf("writing entry count: %v", err)
	}
	for _, e := range idx.Entries {
		fields := []interface{}{
			int32(len(e.Name)), []byte(e.Name), e.Length,
			uint64(e.Chunk.Start), uint64(e.Chunk.End),
		}
		for _, v := range fields {
			if err := binary.Write(w, v); err != nil {
				return fmt.Errorf("writing entry %q: %v", e.Name, err)
			}
		}
	}
	return nil
}

// ReadIndex reads an index written by Index.Write.
func ReadIndex(r io.Reader) (*Index, error) {
	if err := binary.ExpectBytes(r, []byte(indexMagic)); err != nil {
		return nil, fmt.Errorf("reading magic: %v", err)
	}
	var count int32
	if err := binary.Read(r, &count); err != nil {
		return nil, fmt.Errorf("reading entry count: %v", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("invalid entry count %d", count)
	}

	idx := &Index{}
	for i := int32(0); i < count; i++ {
		var size int32
		if err := binary.Read(r, &size); err != nil {
			return nil, fmt.Errorf("reading name length of entry %d: %v", i, err)
		}
		if size < 0 {
			return nil, fmt.Errorf("invalid name length %d in entry %d", size, i)
		}
		name := make([]byte, size)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("reading name of entry %d: %v", i, err)
		}
		var (
			length     int64
			start, end uint64
		)
		for _, v := range []interface{}{&length, &start, &end} {
			if err := binary.Read(r, v); err != nil {
				return nil, fmt.Errorf("reading entry %q: %v", name, err)
			}
		}
		idx.Entries = append(idx.Entries, Entry{
			Name:   string(name),
			Length: length,
			Chunk:  bgzf.Chunk{Start: bgzf.Address(start), End: bgzf.Address(end)},
		})
	}
	return idx, nil
}
