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

package stats

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/googlegenomics/hal/hal"
)

// defragmentInterval is the number of reference positions between
// compactions of the column iterator's record of visited bases.
const defragmentInterval = 1000

// Opener opens an independent read-only view of an alignment.  Column
// reports for several reference genomes run concurrently, each on its own
// view.
type Opener func() (*hal.Alignment, error)

// Identity counts, for one genome, the bases aligned to the reference and
// how many of them are identical.  Sites involving an N are not counted.
type Identity struct {
	Genome    string
	Identical int64
	Sites     int64
}

// Fraction returns Identical / Sites.
func (id Identity) Fraction() float64 {
	return float64(id.Identical) / float64(id.Sites)
}

// Coverage is the histogram of how many times the reference positions are
// covered by one genome: Counts[i] is the number of reference positions
// with more than i homologous bases in the genome.
type Coverage struct {
	Genome string
	Counts []int64
}

// Fractions returns the counts divided by the reference length.
func (c Coverage) Fractions(refLength int64) []float64 {
	out := make([]float64, len(c.Counts))
	for i, n := range c.Counts {
		out[i] = float64(n) / float64(refLength)
	}
	return out
}

// PercentID computes the identity of every genome to ref, following the
// ancestors of ref but not paralogous copies.  Results are sorted by genome
// name.
func PercentID(ctx context.Context, ref *hal.Genome) ([]Identity, error) {
	if ref.Length() == 0 {
		return nil, nil
	}
	it, err := ref.ColumnIterator(hal.ColumnOptions{Last: -1, FollowAncestors: true})
	if err != nil {
		return nil, err
	}

	stats := make(map[string]*Identity)
	for {
		refBase, err := ref.Base(it.Position())
		if err != nil {
			return nil, err
		}
		refBase = upper(refBase)

		col := it.Column()
		for _, g := range col.Genomes() {
			for _, b := range col.GenomeBases(g) {
				other, err := b.Base()
				if err != nil {
					return nil, err
				}
				other = upper(other)
				if refBase == 'N' || other == 'N' {
					continue
				}
				id, ok := stats[g.Name()]
				if !ok {
					id = &Identity{Genome: g.Name()}
					stats[g.Name()] = id
				}
				if refBase == other {
					id.Identical++
				}
				id.Sites++
			}
		}

		if it.Position()%defragmentInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			it.Defragment()
		}
		if it.LastColumn() {
			break
		}
		if err := it.ToRight(); err != nil {
			return nil, err
		}
	}

	out := make([]Identity, 0, len(stats))
	for _, id := range stats {
		out = append(out, *id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Genome < out[j].Genome })
	return out, nil
}

// PercentCoverage computes the coverage histogram of every genome over ref,
// following paralogous copies but not the ancestors of ref.  Each reference
// position is counted on its own even when it shares a column with another.
// Results are sorted by genome name.
func PercentCoverage(ctx context.Context, ref *hal.Genome) ([]Coverage, error) {
	length := ref.Length()
	if length == 0 {
		return nil, nil
	}
	it, err := ref.ColumnIterator(hal.ColumnOptions{Last: -1, FollowDuplicates: true})
	if err != nil {
		return nil, err
	}

	histograms := make(map[string][]int64)
	for {
		col := it.Column()
		for _, g := range col.Genomes() {
			n := len(col.GenomeBases(g))
			h := histograms[g.Name()]
			for len(h) < n {
				h = append(h, 0)
			}
			for i := 0; i < n; i++ {
				h[i]++
			}
			histograms[g.Name()] = h
		}

		pos := it.Position()
		if pos%defragmentInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			it.Defragment()
		}
		if it.LastColumn() {
			break
		}
		if err := it.ToSite(pos+1, length-1, true); err != nil {
			return nil, err
		}
	}

	out := make([]Coverage, 0, len(histograms))
	for name, h := range histograms {
		out = append(out, Coverage{Genome: name, Counts: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Genome < out[j].Genome })
	return out, nil
}

// eachReference runs fn for every reference genome concurrently, each on
// its own view of the alignment.
func eachReference(ctx context.Context, open Opener, refs []string, fn func(context.Context, int, *hal.Genome) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range refs {
		g.Go(func() error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()
			ref, err := a.OpenGenome(name)
			if err != nil {
				return err
			}
			if err := fn(ctx, i, ref); err != nil {
				return fmt.Errorf("reference %q: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func writeReference(w io.Writer, refs []string, i int) {
	if len(refs) > 1 {
		fmt.Fprintf(w, "# reference %s\n", refs[i])
	}
}

// WritePercentID prints the identity of every genome to each reference.
func WritePercentID(ctx context.Context, w io.Writer, open Opener, refs []string) error {
	results := make([][]Identity, len(refs))
	err := eachReference(ctx, open, refs, func(ctx context.Context, i int, ref *hal.Genome) error {
		var err error
		results[i], err = PercentID(ctx, ref)
		return err
	})
	if err != nil {
		return err
	}

	for i, ids := range results {
		writeReference(w, refs, i)
		fmt.Fprintln(w, "Genome, % ID")
		for _, id := range ids {
			if _, err := fmt.Fprintf(w, "%s, %s\n", id.Genome, formatFloat(id.Fraction())); err != nil {
				return err
			}
		}
	}
	return nil
}

// WritePercentCoverage prints the coverage histograms of every genome over
// each reference.
func WritePercentCoverage(ctx context.Context, w io.Writer, open Opener, refs []string) error {
	results := make([][]Coverage, len(refs))
	lengths := make([]int64, len(refs))
	err := eachReference(ctx, open, refs, func(ctx context.Context, i int, ref *hal.Genome) error {
		var err error
		lengths[i] = ref.Length()
		results[i], err = PercentCoverage(ctx, ref)
		return err
	})
	if err != nil {
		return err
	}

	for i, coverage := range results {
		writeReference(w, refs, i)
		fmt.Fprintln(w, "Genome, % sites mapping once, twice, thrice, ...")
		for _, c := range coverage {
			fmt.Fprint(w, c.Genome)
			for _, f := range c.Fractions(lengths[i]) {
				fmt.Fprintf(w, ", %s", formatFloat(f))
			}
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}
