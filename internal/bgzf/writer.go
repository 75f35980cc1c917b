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

package bgzf

import (
	"fmt"
	"io"
)

// Writer compresses a stream into BGZF blocks.  Close must be called to
// flush the final block and write the end of file marker.
type Writer struct {
	w      io.Writer
	buf    []byte
	offset uint64
	closed bool
}

// NewWriter returns a Writer that writes blocks to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: make([]byte, 0, blockDataSize)}
}

// Address returns the virtual address of the next byte written.
func (w *Writer) Address() Address {
	return NewAddress(w.offset, uint16(len(w.buf)))
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed bgzf writer")
	}
	n := 0
	for len(p) > 0 {
		m := copy(w.buf[len(w.buf):cap(w.buf)], p)
		w.buf = w.buf[:len(w.buf)+m]
		p = p[m:]
		n += m
		if len(w.buf) == cap(w.buf) {
			if err := w.Flush(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Flush writes any buffered data as a complete block.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.writeBlock(w.buf); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	return nil
}

func (w *Writer) writeBlock(data []byte) error {
	block, err := EncodeBlock(data)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(block); err != nil {
		return fmt.Errorf("writing block at %d: %v", w.offset, err)
	}
	w.offset += uint64(len(block))
	return nil
}

// Close flushes buffered data and writes the empty end of file block.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.closed = true
	return w.writeBlock(nil)
}
