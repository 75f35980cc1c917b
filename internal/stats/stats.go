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

// Package stats prints the reports of the hal-tool stats command.  Every
// report writes plain text to an io.Writer and reads the alignment only.
package stats

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/metrics"
)

// ErrInvalidArgument is returned for malformed report arguments.
var ErrInvalidArgument = errors.New("invalid report argument")

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// Timed runs fn and records its duration under the report name.
func Timed(report string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ReportDuration.WithLabelValues(report).Observe(time.Since(start).Seconds())
	return err
}

// Summary prints the format version, the tree and one line of dimensions
// per genome.
func Summary(w io.Writer, a *hal.Alignment) error {
	fmt.Fprintf(w, "\nhal v%s\n%s\n\n", a.Version(), a.Newick())
	fmt.Fprintln(w, "GenomeName, NumChildren, Length, NumSequences, NumTopSegments, NumBottomSegments")
	for _, name := range a.GenomeNames() {
		g, err := a.OpenGenome(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s, %d, %d, %d, %d, %d\n", g.Name(), g.NumChildren(), g.Length(),
			g.NumSequences(), g.NumTopSegments(), g.NumBottomSegments())
	}
	return nil
}

// Genomes prints the genome names in preorder.
func Genomes(w io.Writer, a *hal.Alignment) error {
	if a.NumGenomes() == 0 {
		return nil
	}
	_, err := fmt.Fprintln(w, strings.Join(a.GenomeNames(), " "))
	return err
}

// Tree prints the Newick tree.
func Tree(w io.Writer, a *hal.Alignment) error {
	_, err := fmt.Fprintln(w, a.Newick())
	return err
}

// Sequences prints the sequence names of a genome, comma separated.
func Sequences(w io.Writer, a *hal.Alignment, genome string) error {
	g, err := a.OpenGenome(genome)
	if err != nil {
		return err
	}
	var names []string
	for _, s := range g.Sequences() {
		names = append(names, s.Name())
	}
	_, err = fmt.Fprintln(w, strings.Join(names, ","))
	return err
}

// SequenceStats prints the length and segment counts of every sequence of
// a genome.
func SequenceStats(w io.Writer, a *hal.Alignment, genome string) error {
	g, err := a.OpenGenome(genome)
	if err != nil {
		return err
	}
	if g.NumSequences() > 0 {
		fmt.Fprintln(w, "SequenceName, Length, NumTopSegments, NumBottomSegments")
		for _, s := range g.Sequences() {
			fmt.Fprintf(w, "%s, %d, %d, %d\n", s.Name(), s.Length(), s.NumTopSegments(), s.NumBottomSegments())
		}
	}
	_, err = fmt.Fprintln(w)
	return err
}

// BedSequences prints every sequence of a genome as a BED interval.
func BedSequences(w io.Writer, a *hal.Alignment, genome string) error {
	g, err := a.OpenGenome(genome)
	if err != nil {
		return err
	}
	for _, s := range g.Sequences() {
		fmt.Fprintf(w, "%s\t0\t%d\n", s.Name(), s.Length())
	}
	_, err = fmt.Fprintln(w)
	return err
}

// ChromSizes prints the name and length of every sequence of a genome.
func ChromSizes(w io.Writer, a *hal.Alignment, genome string) error {
	g, err := a.OpenGenome(genome)
	if err != nil {
		return err
	}
	for _, s := range g.Sequences() {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", s.Name(), s.Length()); err != nil {
			return err
		}
	}
	return nil
}

// Span prints the genomes of the spanning tree of names.  Given two
// genomes, they are printed in path order from the first to the second.
// Without keepRoot, the genome at the top of the spanning tree is left out
// so that every printed genome names a branch.
func Span(w io.Writer, a *hal.Alignment, names []string, keepRoot bool) error {
	tree, err := a.SpanningTree(names)
	if err != nil {
		return err
	}
	order := tree
	if len(names) == 2 {
		if order, err = a.Path(names[0], names[1]); err != nil {
			return err
		}
	}
	inTree := make(map[string]bool)
	for _, name := range tree {
		inTree[name] = true
	}

	var out []string
	for _, name := range order {
		parent, err := a.ParentName(name)
		if err != nil {
			return err
		}
		if keepRoot || inTree[parent] {
			out = append(out, name)
		}
	}
	_, err = fmt.Fprintln(w, strings.Join(out, " "))
	return err
}

// Branches prints every genome that has a parent, naming the branch above
// it.
func Branches(w io.Writer, a *hal.Alignment) error {
	var out []string
	for _, name := range a.GenomeNames() {
		if name != a.Root() {
			out = append(out, name)
		}
	}
	_, err := fmt.Fprintln(w, strings.Join(out, " "))
	return err
}

// Children prints the children of a genome.
func Children(w io.Writer, a *hal.Alignment, genome string) error {
	names, err := a.ChildNames(genome)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, strings.Join(names, " "))
	return err
}

// Parent prints the parent of a genome.  Nothing is printed for the root.
func Parent(w io.Writer, a *hal.Alignment, genome string) error {
	parent, err := a.ParentName(genome)
	if err != nil || parent == "" {
		return err
	}
	_, err = fmt.Fprintln(w, parent)
	return err
}

// Root prints the root genome name.
func Root(w io.Writer, a *hal.Alignment) error {
	_, err := fmt.Fprintln(w, a.Root())
	return err
}

// BranchLength prints the length of the branch above a genome.  Nothing is
// printed for the root.
func BranchLength(w io.Writer, a *hal.Alignment, genome string) error {
	parent, err := a.ParentName(genome)
	if err != nil || parent == "" {
		return err
	}
	length, err := a.BranchLength(parent, genome)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, formatFloat(length))
	return err
}

// NumSegments prints the number of top and bottom segments of a genome.
func NumSegments(w io.Writer, a *hal.Alignment, genome string) error {
	g, err := a.OpenGenome(genome)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%d %d\n", g.NumTopSegments(), g.NumBottomSegments())
	return err
}

// ParseBaseComp parses the "genome,step" argument of BaseComp.
func ParseBaseComp(arg string) (string, int64, error) {
	genome, stepText, ok := strings.Cut(arg, ",")
	step, err := strconv.ParseInt(stepText, 10, 64)
	if !ok || genome == "" || err != nil || step <= 0 {
		return "", 0, fmt.Errorf("%w: base composition %q must be of the form genome,step", ErrInvalidArgument, arg)
	}
	return genome, step, nil
}

// BaseComp prints the fractions of A, C, G and T among the bases sampled
// every step positions of a genome.  Other characters are not counted.
func BaseComp(w io.Writer, a *hal.Alignment, genome string, step int64) error {
	if step <= 0 {
		return fmt.Errorf("%w: base composition step %d", ErrInvalidArgument, step)
	}
	g, err := a.OpenGenome(genome)
	if err != nil {
		return err
	}
	length := g.Length()
	if step >= length {
		step = max(length-1, 1)
	}

	var counts [4]int64
	it := g.DNAIterator(0)
	for pos := int64(0); pos < length; pos += step {
		if err := it.JumpTo(pos); err != nil {
			return err
		}
		b, err := it.Base()
		if err != nil {
			return err
		}
		if i := strings.IndexByte("ACGT", upper(b)); i >= 0 {
			counts[i]++
		}
	}
	total := float64(counts[0] + counts[1] + counts[2] + counts[3])
	if total == 0 {
		return fmt.Errorf("no A, C, G or T bases sampled in %q", genome)
	}
	_, err = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		formatFloat(float64(counts[0])/total), formatFloat(float64(counts[1])/total),
		formatFloat(float64(counts[2])/total), formatFloat(float64(counts[3])/total))
	return err
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
