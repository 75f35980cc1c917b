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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/fasta"
	"github.com/googlegenomics/hal/internal/genomics"
)

func (app *app) exportCommand() *cobra.Command {
	var (
		regions   []string
		lineWidth int
		indexPath string
	)
	cmd := &cobra.Command{
		Use:   "export-fasta FILE GENOME OUT.fa.gz",
		Short: "Write the sequences of a genome as BGZF compressed FASTA",
		Long: "Write the sequences of a genome as BGZF compressed FASTA, together with\n" +
			"an index locating each record so that it can be read back on its own.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := fasta.Options{LineWidth: lineWidth}
			for _, r := range regions {
				region, err := genomics.ParseRegion(r)
				if err != nil {
					return err
				}
				opts.Regions = append(opts.Regions, region)
			}
			if indexPath == "" {
				indexPath = args[2] + ".hfi"
			}

			src, err := newSource(cmd.Context(), app.cfg, args[0], app.logger)
			if err != nil {
				return err
			}
			defer src.close()

			var index *fasta.Index
			err = src.withAlignment(func(a *hal.Alignment) error {
				g, err := a.OpenGenome(args[1])
				if err != nil {
					return err
				}
				out, err := os.Create(args[2])
				if err != nil {
					return err
				}
				index, err = fasta.Export(out, g, opts)
				if closeErr := out.Close(); err == nil {
					err = closeErr
				}
				return err
			})
			if err != nil {
				return err
			}

			out, err := os.Create(indexPath)
			if err != nil {
				return err
			}
			err = index.Write(out)
			if closeErr := out.Close(); err == nil {
				err = closeErr
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&regions, "region", nil, "export only `SEQ[:START-END]` (1-based, inclusive); may be repeated")
	f.IntVar(&lineWidth, "line-width", fasta.DefaultLineWidth, "bases per FASTA line")
	f.StringVar(&indexPath, "index", "", "index output path (default OUT.fa.gz.hfi)")
	return cmd
}

func (app *app) catCommand() *cobra.Command {
	var (
		indexPath string
		bases     bool
	)
	cmd := &cobra.Command{
		Use:   "cat-fasta FASTA.gz [NAME...]",
		Short: "Print records of a FASTA file written by export-fasta",
		Long: "Print the named records, or all of them, of a FASTA file written by\n" +
			"export-fasta.  Only the compressed blocks holding those records are read.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexPath == "" {
				indexPath = args[0] + ".hfi"
			}
			in, err := os.Open(indexPath)
			if err != nil {
				return err
			}
			index, err := fasta.ReadIndex(in)
			in.Close()
			if err != nil {
				return fmt.Errorf("reading %s: %v", indexPath, err)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			w := cmd.OutOrStdout()
			if !bases {
				return fasta.Copy(w, f, index, args[1:]...)
			}
			names := args[1:]
			if len(names) == 0 {
				for _, e := range index.Entries {
					names = append(names, e.Name)
				}
			}
			for _, name := range names {
				dna, err := fasta.ReadSequence(f, index, name)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(w, dna); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&indexPath, "index", "", "index path (default FASTA.gz.hfi)")
	f.BoolVar(&bases, "bases", false, "print only the bases of each record, one record per line")
	return cmd
}
