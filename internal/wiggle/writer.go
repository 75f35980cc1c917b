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
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Writer writes records as variableStep sections, starting a new section
// whenever the sequence changes.
type Writer struct {
	w        *bufio.Writer
	sequence string
	started  bool
}

// NewWriter returns a Writer writing to w.  Flush must be called when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes a single base value at the 0-based position pos.
func (w *Writer) Write(sequence string, pos int64, value float64) error {
	if !w.started || sequence != w.sequence {
		if _, err := fmt.Fprintf(w.w, "variableStep chrom=%s\n", sequence); err != nil {
			return err
		}
		w.sequence, w.started = sequence, true
	}
	_, err := fmt.Fprintf(w.w, "%d\t%s\n", pos+1, strconv.FormatFloat(value, 'g', -1, 64))
	return err
}

// Flush writes any buffered output.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
