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
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/stats"
)

// report is one of the mutually exclusive outputs of the stats command.
type report struct {
	flag string
	run  func(w io.Writer, src *source) error
}

func onView(fn func(io.Writer, *hal.Alignment) error) func(io.Writer, *source) error {
	return func(w io.Writer, src *source) error {
		return src.withAlignment(func(a *hal.Alignment) error { return fn(w, a) })
	}
}

func (app *app) statsCommand() *cobra.Command {
	var (
		genomes, tree, branches, root bool
		values                        = make(map[string]*string)
	)
	cmd := &cobra.Command{
		Use:   "stats FILE",
		Short: "Print the tree and genome statistics of an alignment",
		Long: "Print the tree and genome statistics of an alignment.  With no report\n" +
			"flag a summary of every genome is printed; report flags are exclusive.",
		Args: cobra.ExactArgs(1),
	}

	f := cmd.Flags()
	f.BoolVar(&genomes, "genomes", false, "print the genome names")
	f.BoolVar(&tree, "tree", false, "print the tree in Newick format")
	f.BoolVar(&branches, "branches", false, "print the genomes below every branch")
	f.BoolVar(&root, "root", false, "print the root genome")
	for _, v := range []struct{ name, usage string }{
		{"sequences", "print the sequences of `GENOME`"},
		{"sequence-stats", "print the length and segment counts of each sequence of `GENOME`"},
		{"bed-sequences", "print the sequences of `GENOME` as BED intervals"},
		{"span", "print the branches on the path or spanning tree of `GENOMES` (comma separated)"},
		{"span-root", "print the genomes on the path or spanning tree of `GENOMES` (comma separated)"},
		{"children", "print the children of `GENOME`"},
		{"parent", "print the parent of `GENOME`"},
		{"branch-length", "print the length of the branch above `GENOME`"},
		{"num-segments", "print the number of top and bottom segments of `GENOME`"},
		{"base-comp", "print the base composition of a genome sampling every step bases, given as `GENOME,STEP`"},
		{"chrom-sizes", "print the name and length of each sequence of `GENOME`"},
		{"percent-id", "print the identity of every genome to each of `GENOMES` (comma separated)"},
		{"percent-coverage", "print the coverage histogram of every genome over each of `GENOMES` (comma separated)"},
	} {
		values[v.name] = f.String(v.name, "", v.usage)
	}
	cmd.MarkFlagsMutuallyExclusive("genomes", "tree", "branches", "root", "sequences", "sequence-stats",
		"bed-sequences", "span", "span-root", "children", "parent", "branch-length", "num-segments",
		"base-comp", "chrom-sizes", "percent-id", "percent-coverage")

	arg := func(name string) string { return *values[name] }
	list := func(name string) []string { return strings.Split(arg(name), ",") }
	reports := []report{
		{"genomes", onView(stats.Genomes)},
		{"tree", onView(stats.Tree)},
		{"branches", onView(stats.Branches)},
		{"root", onView(stats.Root)},
		{"sequences", onView(func(w io.Writer, a *hal.Alignment) error { return stats.Sequences(w, a, arg("sequences")) })},
		{"sequence-stats", onView(func(w io.Writer, a *hal.Alignment) error {
			return stats.SequenceStats(w, a, arg("sequence-stats"))
		})},
		{"bed-sequences", onView(func(w io.Writer, a *hal.Alignment) error {
			return stats.BedSequences(w, a, arg("bed-sequences"))
		})},
		{"span", onView(func(w io.Writer, a *hal.Alignment) error { return stats.Span(w, a, list("span"), false) })},
		{"span-root", onView(func(w io.Writer, a *hal.Alignment) error { return stats.Span(w, a, list("span-root"), true) })},
		{"children", onView(func(w io.Writer, a *hal.Alignment) error { return stats.Children(w, a, arg("children")) })},
		{"parent", onView(func(w io.Writer, a *hal.Alignment) error { return stats.Parent(w, a, arg("parent")) })},
		{"branch-length", onView(func(w io.Writer, a *hal.Alignment) error {
			return stats.BranchLength(w, a, arg("branch-length"))
		})},
		{"num-segments", onView(func(w io.Writer, a *hal.Alignment) error {
			return stats.NumSegments(w, a, arg("num-segments"))
		})},
		{"base-comp", func(w io.Writer, src *source) error {
			genome, step, err := stats.ParseBaseComp(arg("base-comp"))
			if err != nil {
				return err
			}
			return src.withAlignment(func(a *hal.Alignment) error { return stats.BaseComp(w, a, genome, step) })
		}},
		{"chrom-sizes", onView(func(w io.Writer, a *hal.Alignment) error {
			return stats.ChromSizes(w, a, arg("chrom-sizes"))
		})},
		{"percent-id", func(w io.Writer, src *source) error {
			return stats.WritePercentID(cmd.Context(), w, src.open, list("percent-id"))
		}},
		{"percent-coverage", func(w io.Writer, src *source) error {
			return stats.WritePercentCoverage(cmd.Context(), w, src.open, list("percent-coverage"))
		}},
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		selected := report{"summary", onView(stats.Summary)}
		for _, r := range reports {
			if cmd.Flags().Changed(r.flag) {
				selected = r
				break
			}
		}

		src, err := newSource(cmd.Context(), app.cfg, args[0], app.logger)
		if err != nil {
			return err
		}
		defer src.close()
		return stats.Timed(selected.flag, func() error {
			return selected.run(cmd.OutOrStdout(), src)
		})
	}
	return cmd
}
