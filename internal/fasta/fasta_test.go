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
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/genomics"
	"github.com/googlegenomics/hal/internal/haltest"
)

func decompress(t *testing.T, data []byte) string {
	t.Helper()
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	out, err := io.ReadAll(gzr)
	require.NoError(t, err)
	return string(out)
}

func openGenome(t *testing.T, a *hal.Alignment, name string) *hal.Genome {
	t.Helper()
	g, err := a.OpenGenome(name)
	require.NoError(t, err)
	return g
}

func TestExport(t *testing.T) {
	g := openGenome(t, haltest.Build(t, haltest.StarTree()...), "C")

	testCases := []struct {
		name    string
		opts    Options
		want    string
		entries []string
	}{
		{"whole genome", Options{LineWidth: 4}, ">c1\nACGT\nATGT\nAC\n", []string{"c1"}},
		{"default width", Options{}, ">c1\nACGTATGTAC\n", []string{"c1"}},
		{
			"region",
			Options{LineWidth: 4, Regions: []genomics.Region{{Sequence: "c1", Start: 2, End: 7}}},
			">c1:3-7\nGTAT\nG\n",
			[]string{"c1:3-7"},
		},
		{
			"full region keeps sequence name",
			Options{Regions: []genomics.Region{{Sequence: "c1"}}},
			">c1\nACGTATGTAC\n",
			[]string{"c1"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			index, err := Export(&buf, g, tc.opts)
			require.NoError(t, err)

			got, want := decompress(t, buf.Bytes()), tc.want
			assert.Equal(t, want, got)

			var names []string
			for _, e := range index.Entries {
				names = append(names, e.Name)
			}
			assert.Equal(t, tc.entries, names)
		})
	}
}

func TestExport_InvalidRegions(t *testing.T) {
	g := openGenome(t, haltest.Build(t, haltest.StarTree()...), "A")

	for _, region := range []genomics.Region{
		{Sequence: "missing"},
		{Sequence: "a1", Start: 4, End: 11},
	} {
		t.Run(region.String(), func(t *testing.T) {
			_, err := Export(io.Discard, g, Options{Regions: []genomics.Region{region}})
			assert.Error(t, err)
		})
	}
}

// largeGenome returns a root genome with two sequences that together span
// several BGZF blocks.
func largeGenome(t *testing.T) (*hal.Genome, map[string]string) {
	seqs := map[string]string{
		"s1": strings.Repeat("ACGTTGCA", 12000),
		"s2": strings.Repeat("GGATC", 15000),
	}
	a := haltest.Build(t, haltest.Genome{
		Name: "R",
		Sequences: []hal.SequenceInfo{
			{Name: "s1", Length: int64(len(seqs["s1"]))},
			{Name: "s2", Length: int64(len(seqs["s2"]))},
		},
		DNA: seqs["s1"] + seqs["s2"],
	})
	return openGenome(t, a, "R"), seqs
}

func TestReadSequence(t *testing.T) {
	g, seqs := largeGenome(t)

	var buf bytes.Buffer
	index, err := Export(&buf, g, Options{})
	require.NoError(t, err)

	r := bytes.NewReader(buf.Bytes())
	for _, name := range []string{"s2", "s1"} {
		got, err := ReadSequence(r, index, name)
		require.NoError(t, err)
		assert.Equal(t, seqs[name], got, "sequence %s", name)
	}

	_, err = ReadSequence(r, index, "s3")
	assert.ErrorIs(t, err, ErrUnknownSequence)
}

func TestCopy(t *testing.T) {
	g, _ := largeGenome(t)

	var buf bytes.Buffer
	index, err := Export(&buf, g, Options{})
	require.NoError(t, err)
	all := decompress(t, buf.Bytes())
	second := all[strings.Index(all, ">s2\n"):]

	testCases := []struct {
		name  string
		names []string
		want  string
	}{
		{"all records", nil, all},
		{"one record", []string{"s2"}, second},
		{"file order", []string{"s2", "s1"}, all},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, Copy(&out, bytes.NewReader(buf.Bytes()), index, tc.names...))
			got, want := out.String(), tc.want
			assert.Equal(t, want, got)
		})
	}

	err = Copy(io.Discard, bytes.NewReader(buf.Bytes()), index, "s3")
	assert.ErrorIs(t, err, ErrUnknownSequence)
}

func TestIndex_Chunks(t *testing.T) {
	g, _ := largeGenome(t)

	var buf bytes.Buffer
	index, err := Export(&buf, g, Options{})
	require.NoError(t, err)
	require.Len(t, index.Entries, 2)

	one, err := index.Chunks("s2")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, index.Entries[1].Chunk, *one[0])

	both, err := index.Chunks("s2", "s1")
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, index.Entries[0].Chunk.Start, both[0].Start)
	assert.Equal(t, index.Entries[1].Chunk.End, both[0].End)

	_, err = index.Chunks("s1", "nope")
	assert.ErrorIs(t, err, ErrUnknownSequence)
}

func TestIndex_WriteRead(t *testing.T) {
	g := openGenome(t, haltest.Build(t, haltest.StarTree()...), "R")

	index, err := Export(io.Discard, g, Options{
		Regions: []genomics.Region{{Sequence: "r1", Start: 1, End: 3}, {Sequence: "r1"}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, index.Write(&buf))
	got, err := ReadIndex(&buf)
	require.NoError(t, err)
	assert.Equal(t, index, got)
}

func TestReadIndex_InvalidInputs(t *testing.T) {
	testCases := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"wrong magic", []byte("FAI\x01\x00\x00\x00\x00")},
		{"truncated count", []byte("HFI\x01\x01")},
		{"negative count", []byte("HFI\x01\xff\xff\xff\xff")},
		{"truncated entry", []byte("HFI\x01\x01\x00\x00\x00\x02\x00\x00\x00s")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadIndex(bytes.NewReader(tc.input))
			assert.Error(t, err)
		})
	}
}
