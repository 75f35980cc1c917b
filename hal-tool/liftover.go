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
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/liftover"
)

// openInput opens path for reading, with "-" meaning stdin.
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}

// createOutput creates path, with "-" meaning stdout.
func createOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func (app *app) liftoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "liftover-wiggle FILE SOURCE TARGET IN.wig OUT.wig",
		Short: "Map a wiggle track from one genome to another",
		Long: "Map a wiggle track on genome SOURCE to genome TARGET.  Values are copied\n" +
			"to every homologous target base and written as variableStep sections.\n" +
			"Use - for stdin or stdout.",
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := newSource(cmd.Context(), app.cfg, args[0], app.logger)
			if err != nil {
				return err
			}
			defer src.close()

			in, err := openInput(cmd, args[3])
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := createOutput(cmd, args[4])
			if err != nil {
				return err
			}

			err = src.withAlignment(func(a *hal.Alignment) error {
				from, err := a.OpenGenome(args[1])
				if err != nil {
					return err
				}
				to, err := a.OpenGenome(args[2])
				if err != nil {
					return err
				}
				summary, err := liftover.Wiggle(cmd.Context(), from, to, in, out, liftover.Options{Logger: app.logger})
				if err != nil {
					return err
				}
				if summary.Unmapped > 0 {
					log.Printf("%d of %d %s bases have no homolog in %s", summary.Unmapped, summary.Bases, args[1], args[2])
				}
				return nil
			})
			if closeErr := out.Close(); err == nil {
				err = closeErr
			}
			return err
		},
	}
}
