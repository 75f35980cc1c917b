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

// Package liftover maps wiggle tracks from one genome of an alignment to
// another through the alignment columns.
package liftover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/wiggle"
)

// Options configures a liftover.
type Options struct {
	// Logger receives progress output.  Nil discards it.
	Logger *slog.Logger
}

// Summary counts what a liftover did.
type Summary struct {
	// Records is the number of input records read.
	Records int64
	// Bases is the number of source bases covered by the input.
	Bases int64
	// Unmapped is the number of source bases with no homologous target base.
	Unmapped int64
	// Written is the number of target bases written.
	Written int64
}

type accumulator struct {
	sum   float64
	count int
}

// Wiggle reads a wiggle track on src from in and writes the track lifted to
// tgt to out as variableStep sections.  A value is copied to every target
// base homologous to the source base, including paralogous copies; target
// bases reached from several source bases receive the mean value.
func Wiggle(ctx context.Context, src, tgt *hal.Genome, in io.Reader, out io.Writer, opts Options) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		summary Summary
		it      *hal.ColumnIterator
		values  = make(map[int64]*accumulator)
		r       = wiggle.NewReader(in)
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Records++

		seq, err := src.SequenceByName(rec.Sequence)
		if err != nil {
			return summary, fmt.Errorf("%w in input wiggle line %d", err, r.Line())
		}
		if rec.Last >= seq.Length() {
			return summary, fmt.Errorf("position %d past the end of %s in input wiggle line %d: %w",
				rec.Last+1, seq.FullName(), r.Line(), hal.ErrOutOfRange)
		}

		for p := seq.Start() + rec.First; p <= seq.Start()+rec.Last; p++ {
			summary.Bases++
			if it == nil {
				it, err = src.ColumnIterator(hal.ColumnOptions{
					Targets:          []*hal.Genome{tgt},
					Start:            p,
					Last:             p,
					FollowDuplicates: true,
					FollowAncestors:  true,
				})
			} else {
				err = it.ToSite(p, p, true)
			}
			if err != nil {
				return summary, fmt.Errorf("mapping %s:%d: %w", seq.FullName(), p-seq.Start(), err)
			}

			bases := it.Column().GenomeBases(tgt)
			if len(bases) == 0 {
				summary.Unmapped++
			}
			for _, b := range bases {
				acc, ok := values[b.Position()]
				if !ok {
					acc = &accumulator{}
					values[b.Position()] = acc
				}
				acc.sum += rec.Value
				acc.count++
			}
		}
	}

	positions := make([]int64, 0, len(values))
	for pos := range values {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	w := wiggle.NewWriter(out)
	var seq *hal.Sequence
	for _, pos := range positions {
		if seq == nil || !seq.Contains(pos) {
			var err error
			if seq, err = tgt.SequenceBySite(pos); err != nil {
				return summary, err
			}
		}
		acc := values[pos]
		if err := w.Write(seq.Name(), pos-seq.Start(), acc.sum/float64(acc.count)); err != nil {
			return summary, fmt.Errorf("writing output: %w", err)
		}
		summary.Written++
	}
	if err := w.Flush(); err != nil {
		return summary, fmt.Errorf("writing output: %w", err)
	}
	logger.Debug("lifted wiggle track", "source", src.Name(), "target", tgt.Name(),
		"records", summary.Records, "bases", summary.Bases, "unmapped", summary.Unmapped, "written", summary.Written)
	return summary, nil
}
