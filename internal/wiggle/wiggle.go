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

// Package wiggle reads and writes wiggle tracks in the fixedStep and
// variableStep formats.  Positions are 0-based internally; the 1-based
// positions of the text format are converted on input and output.
package wiggle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("invalid wiggle input")

// Format is the kind of a wiggle section.
type Format int

// Wiggle section formats.
const (
	VariableStep Format = iota
	FixedStep
)

func (f Format) String() string {
	if f == FixedStep {
		return "fixedStep"
	}
	return "variableStep"
}

// Header is the declaration line opening a wiggle section.
type Header struct {
	Format   Format
	Sequence string
	// Start is the 0-based position of the first fixedStep value.
	Start int64
	// Step is the distance between fixedStep values.
	Step int64
	// Span is the number of bases covered by each value.  Zero means the
	// header did not set one; values then cover a single base.
	Span int64
}

// Record is one value of a wiggle track covering the 0-based inclusive
// interval [First, Last] of Sequence.
type Record struct {
	Sequence    string
	First, Last int64
	Value       float64
}

// LineError reports a parse failure with the line it occurred on.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%v in input wiggle line %d", e.Err, e.Line)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

func syntaxError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}

// Reader scans wiggle records.  Blank lines, comments and the track and
// browser lines of the UCSC format are skipped.
type Reader struct {
	s      *bufio.Scanner
	line   int
	header *Header
	offset int64
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{s: bufio.NewScanner(r)}
}

// Header returns the header of the section the last record came from.
func (r *Reader) Header() (Header, bool) {
	if r.header == nil {
		return Header{}, false
	}
	return *r.header, true
}

// Line returns the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

// Read returns the next record, or io.EOF at the end of input.
func (r *Reader) Read() (Record, error) {
	for r.s.Scan() {
		r.line++
		fields := strings.Fields(r.s.Text())
		if len(fields) == 0 || skipped(fields[0]) {
			continue
		}
		switch fields[0] {
		case "variableStep", "fixedStep":
			header, err := parseHeader(fields)
			if err != nil {
				return Record{}, &LineError{Line: r.line, Err: err}
			}
			r.header, r.offset = header, 0
			continue
		}
		record, err := r.parseData(fields)
		if err != nil {
			return Record{}, &LineError{Line: r.line, Err: err}
		}
		return record, nil
	}
	if err := r.s.Err(); err != nil {
		return Record{}, fmt.Errorf("reading wiggle line %d: %w", r.line+1, err)
	}
	return Record{}, io.EOF
}

func skipped(first string) bool {
	return strings.HasPrefix(first, "#") || first == "track" || first == "browser"
}

func parseHeader(fields []string) (*Header, error) {
	h := &Header{Format: VariableStep}
	if fields[0] == "fixedStep" {
		h.Format = FixedStep
	}
	values := make(map[string]string)
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, syntaxError("unexpected %q in %s header", field, h.Format)
		}
		values[key] = value
	}

	h.Sequence = values["chrom"]
	if h.Sequence == "" {
		return nil, syntaxError("missing chrom in %s header", h.Format)
	}
	if span, ok := values["span"]; ok {
		n, err := strconv.ParseInt(span, 10, 64)
		if err != nil || n < 1 {
			return nil, syntaxError("invalid span %q in %s header", span, h.Format)
		}
		h.Span = n
	}
	if h.Format == VariableStep {
		return h, nil
	}

	start, err := strconv.ParseInt(values["start"], 10, 64)
	if err != nil || start < 1 {
		return nil, syntaxError("invalid start %q in fixedStep header", values["start"])
	}
	h.Start = start - 1
	h.Step, err = strconv.ParseInt(values["step"], 10, 64)
	if err != nil || h.Step < 1 {
		return nil, syntaxError("invalid step %q in fixedStep header", values["step"])
	}
	return h, nil
}

func (r *Reader) parseData(fields []string) (Record, error) {
	h := r.header
	if h == nil {
		return Record{}, syntaxError("data line before any header")
	}
	rec := Record{Sequence: h.Sequence}
	valueField := fields[0]
	if h.Format == FixedStep {
		if len(fields) != 1 {
			return Record{}, syntaxError("expected one value for %s", h.Sequence)
		}
		rec.First = h.Start + r.offset*h.Step
		r.offset++
	} else {
		if len(fields) != 2 {
			return Record{}, syntaxError("expected position and value for %s", h.Sequence)
		}
		pos, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil || pos < 1 {
			return Record{}, syntaxError("invalid position %q for %s", fields[0], h.Sequence)
		}
		rec.First = pos - 1
		valueField = fields[1]
	}

	value, err := strconv.ParseFloat(valueField, 64)
	if err != nil {
		return Record{}, syntaxError("invalid value %q for %s pos %d", valueField, h.Sequence, rec.First+1)
	}
	rec.Value = value
	rec.Last = rec.First
	if h.Span > 1 {
		rec.Last += h.Span - 1
	}
	return rec, nil
}
