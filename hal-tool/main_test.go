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

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/hal/internal/container/badgerstore"
	"github.com/googlegenomics/hal/internal/container/filestore"
	"github.com/googlegenomics/hal/internal/fasta"
	"github.com/googlegenomics/hal/internal/haltest"
)

// writeAlignment stores the star tree alignment in a new directory.
func writeAlignment(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	store, err := filestore.Open(dir, filestore.Options{})
	require.NoError(t, err)
	a := haltest.BuildIn(t, store, haltest.StarTree()...)
	require.NoError(t, a.Close())
	return dir
}

func run(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStats(t *testing.T) {
	dir := writeAlignment(t)

	testCases := []struct {
		args []string
		want string
	}{
		{[]string{"--genomes"}, "R A C B\n"},
		{[]string{"--tree"}, "((C:0.5)A:0.5,B:0.5)R;\n"},
		{[]string{"--root"}, "R\n"},
		{[]string{"--branches"}, "A C B\n"},
		{[]string{"--sequences", "C"}, "c1\n"},
		{[]string{"--span", "C,B"}, "C A B\n"},
		{[]string{"--span-root", "C,B"}, "C A R B\n"},
		{[]string{"--children", "R"}, "A B\n"},
		{[]string{"--parent", "C"}, "A\n"},
		{[]string{"--branch-length", "C"}, "0.5\n"},
		{[]string{"--num-segments", "R"}, "0 1\n"},
		{[]string{"--base-comp", "A,1"}, "0.3\t0.3\t0.2\t0.2\n"},
		{[]string{"--chrom-sizes", "B"}, "b1\t10\n"},
		{[]string{"--percent-id", "A"}, "Genome, % ID\nA, 1\nB, 1\nC, 0.9\nR, 1\n"},
		{
			[]string{"--percent-coverage", "R"},
			"Genome, % sites mapping once, twice, thrice, ...\nA, 1\nB, 1\nC, 1\nR, 1\n",
		},
	}
	for _, tc := range testCases {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			got, err := run(append(append([]string{"stats"}, tc.args...), dir)...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStats_Summary(t *testing.T) {
	got, err := run("stats", writeAlignment(t))
	require.NoError(t, err)
	assert.Contains(t, got, "GenomeName, NumChildren, Length, NumSequences, NumTopSegments, NumBottomSegments\n")
	assert.Contains(t, got, "C, 0, 10, 1, 1, 0\n")
}

func TestStats_Errors(t *testing.T) {
	dir := writeAlignment(t)

	testCases := []struct {
		name string
		args []string
	}{
		{"exclusive reports", []string{"stats", "--genomes", "--root", dir}},
		{"bad base comp", []string{"stats", "--base-comp", "A", dir}},
		{"unknown genome", []string{"stats", "--children", "Z", dir}},
		{"missing alignment", []string{"stats", filepath.Join(dir, "missing")}},
		{"unknown backend", []string{"--backend", "tape", "stats", dir}},
		{"no file", []string{"stats"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(tc.args...)
			assert.Error(t, err)
		})
	}
}

func TestStats_Badger(t *testing.T) {
	dir := t.TempDir()
	c, err := badgerstore.Open(badgerstore.DefaultConfig(dir))
	require.NoError(t, err)
	a := haltest.BuildIn(t, c, haltest.StarTree()...)
	require.NoError(t, a.Close())

	got, err := run("--backend", "badger", "stats", "--percent-id", "A,C", dir)
	require.NoError(t, err)
	want := "# reference A\nGenome, % ID\nA, 1\nB, 1\nC, 0.9\nR, 1\n" +
		"# reference C\nGenome, % ID\nA, 0.9\nB, 0.9\nC, 1\nR, 0.9\n"
	assert.Equal(t, want, got)
}

func TestMetricsFile(t *testing.T) {
	dir := writeAlignment(t)
	path := filepath.Join(t.TempDir(), "metrics.prom")

	_, err := run("--metrics-file", path, "stats", "--root", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `hal_report_duration_seconds_count{report="root"}`)
}

func TestLiftoverWiggle(t *testing.T) {
	dir := writeAlignment(t)
	in := filepath.Join(t.TempDir(), "in.wig")
	require.NoError(t, os.WriteFile(in, []byte("variableStep chrom=c1\n1 5\n10 2.5\n"), 0644))

	got, err := run("liftover-wiggle", dir, "C", "B", in, "-")
	require.NoError(t, err)
	assert.Equal(t, "variableStep chrom=b1\n1\t5\n10\t2.5\n", got)

	out := filepath.Join(t.TempDir(), "out.wig")
	_, err = run("liftover-wiggle", dir, "C", "R", in, out)
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "variableStep chrom=r1\n1\t5\n10\t2.5\n", string(data))

	_, err = run("liftover-wiggle", dir, "C", "Z", in, "-")
	assert.Error(t, err)
}

func TestExportFasta(t *testing.T) {
	dir := writeAlignment(t)
	out := filepath.Join(t.TempDir(), "c.fa.gz")

	_, err := run("export-fasta", "--line-width", "4", "--region", "c1:2-9", dir, "C", out)
	require.NoError(t, err)

	f, err := os.Open(out + ".hfi")
	require.NoError(t, err)
	defer f.Close()
	index, err := fasta.ReadIndex(f)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	got, err := fasta.ReadSequence(bytes.NewReader(data), index, "c1:2-9")
	require.NoError(t, err)
	assert.Equal(t, "CGTATGTA", got)

	_, err = run("export-fasta", "--region", "c1:0-3", dir, "C", out)
	assert.Error(t, err)
}

func TestCatFasta(t *testing.T) {
	dir := writeAlignment(t)
	out := filepath.Join(t.TempDir(), "c.fa.gz")
	_, err := run("export-fasta", "--line-width", "4", "--region", "c1:1-4", "--region", "c1:7-", dir, "C", out)
	require.NoError(t, err)

	testCases := []struct {
		name string
		args []string
		want string
	}{
		{"all", []string{out}, ">c1:1-4\nACGT\n>c1:7-10\nGTAC\n"},
		{"one record", []string{out, "c1:7-10"}, ">c1:7-10\nGTAC\n"},
		{"bases", []string{"--bases", out, "c1:7-10", "c1:1-4"}, "GTAC\nACGT\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := run(append([]string{"cat-fasta"}, tc.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err = run("cat-fasta", out, "c2")
	assert.ErrorIs(t, err, fasta.ErrUnknownSequence)
	_, err = run("cat-fasta", "--index", filepath.Join(t.TempDir(), "none.hfi"), out)
	assert.Error(t, err)
}
