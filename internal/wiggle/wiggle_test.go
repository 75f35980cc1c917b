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

package wiggle

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, input string) ([]Record, error) {
	t.Helper()
	r := NewReader(strings.NewReader(input))
	var out []Record
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func TestReader(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []Record
	}{
		{
			name:  "variableStep",
			input: "variableStep chrom=chr1\n1 0.5\n10 2\n",
			want: []Record{
				{Sequence: "chr1", First: 0, Last: 0, Value: 0.5},
				{Sequence: "chr1", First: 9, Last: 9, Value: 2},
			},
		},
		{
			name:  "variableStep with span",
			input: "variableStep chrom=chr2 span=3\n5 1.25\n",
			want:  []Record{{Sequence: "chr2", First: 4, Last: 6, Value: 1.25}},
		},
		{
			name:  "fixedStep",
			input: "fixedStep chrom=chr1 start=11 step=5\n1\n2\n3\n",
			want: []Record{
				{Sequence: "chr1", First: 10, Last: 10, Value: 1},
				{Sequence: "chr1", First: 15, Last: 15, Value: 2},
				{Sequence: "chr1", First: 20, Last: 20, Value: 3},
			},
		},
		{
			name:  "fixedStep with span",
			input: "fixedStep chrom=chr1 start=1 step=10 span=2\n-1\n7e-1\n",
			want: []Record{
				{Sequence: "chr1", First: 0, Last: 1, Value: -1},
				{Sequence: "chr1", First: 10, Last: 11, Value: 0.7},
			},
		},
		{
			name: "sections and skipped lines",
			input: "track type=wiggle_0\n# comment\nbrowser position chr1\n\n" +
				"fixedStep chrom=a start=2 step=1\n4\n  \nvariableStep chrom=b\n3 8\n" +
				"fixedStep chrom=a start=2 step=1\n6\n",
			want: []Record{
				{Sequence: "a", First: 1, Last: 1, Value: 4},
				{Sequence: "b", First: 2, Last: 2, Value: 8},
				{Sequence: "a", First: 1, Last: 1, Value: 6},
			},
		},
		{name: "empty", input: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readAll(t, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReader_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		line  int
	}{
		{"data before header", "\n1 2\n", 2},
		{"missing chrom", "variableStep span=2\n", 1},
		{"bad span", "variableStep chrom=a span=0\n", 1},
		{"missing start", "fixedStep chrom=a step=1\n", 1},
		{"zero start", "fixedStep chrom=a start=0 step=1\n", 1},
		{"bad step", "fixedStep chrom=a start=1 step=x\n", 1},
		{"stray field", "fixedStep chrom=a start=1 step=1 junk\n", 1},
		{"bad position", "variableStep chrom=a\n1 2\n0 3\n", 3},
		{"missing value", "variableStep chrom=a\n7\n", 2},
		{"bad value", "fixedStep chrom=a start=1 step=1\n1\nnan?\n", 3},
		{"too many fields", "fixedStep chrom=a start=1 step=1\n1 2\n", 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readAll(t, tc.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)

			var lineErr *LineError
			require.ErrorAs(t, err, &lineErr)
			assert.Equal(t, tc.line, lineErr.Line)
			assert.Contains(t, err.Error(), "in input wiggle line")
		})
	}
}

func TestReader_Header(t *testing.T) {
	r := NewReader(strings.NewReader("fixedStep chrom=c start=3 step=2 span=4\n1\n"))
	_, ok := r.Header()
	assert.False(t, ok)

	_, err := r.Read()
	require.NoError(t, err)
	got, ok := r.Header()
	require.True(t, ok)
	want := Header{Format: FixedStep, Sequence: "c", Start: 2, Step: 2, Span: 4}
	assert.Equal(t, want, got)
	assert.Equal(t, 2, r.Line())
	assert.Equal(t, "fixedStep", got.Format.String())
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write("a", 0, 1))
	require.NoError(t, w.Write("a", 4, 0.25))
	require.NoError(t, w.Write("b", 2, 3))
	require.NoError(t, w.Flush())

	got, want := buf.String(), "variableStep chrom=a\n1\t1\n5\t0.25\nvariableStep chrom=b\n3\t3\n"
	assert.Equal(t, want, got)

	records, err := readAll(t, got)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{Sequence: "a", First: 0, Last: 0, Value: 1},
		{Sequence: "a", First: 4, Last: 4, Value: 0.25},
		{Sequence: "b", First: 2, Last: 2, Value: 3},
	}, records)
}
