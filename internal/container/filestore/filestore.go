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

// Package filestore provides a container.Container backed by a directory of
// raw dataset files.
//
// Each dataset is stored as a single file holding a fixed header followed by
// its records in element order, so that reading a record range is one
// positioned read.  Group attributes are stored as JSON next to the dataset
// files.
package filestore

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/googlegenomics/hal/internal/binary"
	"github.com/googlegenomics/hal/internal/container"
)

const (
	datasetSuffix = ".hald"
	attrsFile     = ".attrs.json"
	headerSize    = 32
)

var magic = []byte("HALD\x01")

type header struct {
	Padding     [3]byte
	ElementSize int64
	Length      uint64
	ChunkSize   uint64
}

// Options configures a Store.
type Options struct {
	// ReadOnly rejects every mutating call with container.ErrReadOnly.
	ReadOnly bool
	// Logger receives debug output.  Nil discards it.
	Logger *slog.Logger
}

// Store is a directory-backed container.
type Store struct {
	root     string
	readOnly bool
	logger   *slog.Logger

	mu    sync.Mutex
	files map[string]*os.File
}

// Open returns a Store rooted at dir.  The directory is created unless the
// store is read-only, in which case it must already exist.
func Open(dir string, opts Options) (*Store, error) {
	if opts.ReadOnly {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, container.NewStorageError("open", dir, err)
		}
		if !info.IsDir() {
			return nil, container.NewStorageError("open", dir, errors.New("not a directory"))
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, container.NewStorageError("open", dir, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		root:     dir,
		readOnly: opts.ReadOnly,
		logger:   logger,
		files:    make(map[string]*os.File),
	}, nil
}

func (s *Store) datasetFile(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path)) + datasetSuffix
}

// CreateDataset implements container.Container.
func (s *Store) CreateDataset(path string, elementSize int, length, chunkSize uint64) (container.Dataset, error) {
	path = container.CleanPath(path)
	if s.readOnly {
		return nil, fmt.Errorf("creating %s: %w", path, container.ErrReadOnly)
	}
	layout := container.Layout{ElementSize: elementSize, Length: length, ChunkSize: chunkSize}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	s.closeFile(path)

	name := s.datasetFile(path)
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return nil, container.NewStorageError("create", path, err)
	}
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, container.NewStorageError("create", path, err)
	}

	var buf bytes.Buffer
	buf.Write(magic)
	if err := binary.Write(&buf, header{ElementSize: int64(elementSize), Length: length, ChunkSize: chunkSize}); err != nil {
		f.Close()
		return nil, container.NewStorageError("create", path, err)
	}
	if _, err := f.WriteAt(buf.Bytes(), 0); err != nil {
		f.Close()
		return nil, container.NewStorageError("create", path, err)
	}
	if err := f.Truncate(headerSize + int64(length)*int64(elementSize)); err != nil {
		f.Close()
		return nil, container.NewStorageError("create", path, err)
	}
	s.logger.Debug("created dataset", "path", path, "file", name, "length", length, "chunk", chunkSize)
	return s.track(path, f, layout), nil
}

// OpenDataset implements container.Container.
func (s *Store) OpenDataset(path string) (container.Dataset, error) {
	path = container.CleanPath(path)
	flag := os.O_RDWR
	if s.readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(s.datasetFile(path), flag, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("dataset %s: %w", path, container.ErrNotFound)
	}
	if err != nil {
		return nil, container.NewStorageError("open", path, err)
	}

	layout, err := readHeader(f)
	if err != nil {
		f.Close()
		return nil, container.NewStorageError("open", path, err)
	}
	return s.track(path, f, layout), nil
}

func readHeader(f *os.File) (container.Layout, error) {
	var buf [headerSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return container.Layout{}, fmt.Errorf("reading header: %v", err)
	}
	r := bytes.NewReader(buf[:])
	if err := binary.ExpectBytes(r, magic); err != nil {
		return container.Layout{}, err
	}
	var h header
	if err := binary.Read(r, &h); err != nil {
		return container.Layout{}, fmt.Errorf("reading header: %v", err)
	}
	layout := container.Layout{ElementSize: int(h.ElementSize), Length: h.Length, ChunkSize: h.ChunkSize}
	if err := layout.Validate(); err != nil {
		return container.Layout{}, err
	}
	info, err := f.Stat()
	if err != nil {
		return container.Layout{}, err
	}
	if want := headerSize + int64(layout.Length)*int64(layout.ElementSize); info.Size() != want {
		return container.Layout{}, fmt.Errorf("file has %d bytes, want %d", info.Size(), want)
	}
	return layout, nil
}

func (s *Store) track(path string, f *os.File, layout container.Layout) *dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.files[path]; ok && old != f {
		old.Close()
	}
	s.files[path] = f
	return &dataset{store: s, path: path, file: f, layout: layout}
}

func (s *Store) closeFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[path]; ok {
		f.Close()
		delete(s.files, path)
	}
}

// Remove implements container.Container.
func (s *Store) Remove(path string) error {
	path = container.CleanPath(path)
	if s.readOnly {
		return fmt.Errorf("removing %s: %w", path, container.ErrReadOnly)
	}
	s.mu.Lock()
	for p, f := range s.files {
		if p == path || strings.HasPrefix(p, path+"/") {
			f.Close()
			delete(s.files, p)
		}
	}
	s.mu.Unlock()

	if err := os.Remove(s.datasetFile(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return container.NewStorageError("remove", path, err)
	}
	return container.NewStorageError("remove", path, os.RemoveAll(filepath.Join(s.root, filepath.FromSlash(path))))
}

func (s *Store) attrsPath(group string) string {
	return filepath.Join(s.root, filepath.FromSlash(group), attrsFile)
}

// Attributes implements container.Container.
func (s *Store) Attributes(group string) (map[string]string, error) {
	group = container.CleanPath(group)
	data, err := os.ReadFile(s.attrsPath(group))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, container.NewStorageError("read attributes", group, err)
	}
	return container.DecodeAttributes(data)
}

// SetAttributes implements container.Container.
func (s *Store) SetAttributes(group string, attrs map[string]string) error {
	group = container.CleanPath(group)
	if s.readOnly {
		return fmt.Errorf("writing attributes of %s: %w", group, container.ErrReadOnly)
	}
	data, err := container.EncodeAttributes(attrs)
	if err != nil {
		return err
	}
	name := s.attrsPath(group)
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return container.NewStorageError("write attributes", group, err)
	}
	return container.NewStorageError("write attributes", group, os.WriteFile(name, data, 0644))
}

// Flush syncs every open dataset file to disk.
func (s *Store) Flush() error {
	if s.readOnly {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, f := range s.files {
		if err := f.Sync(); err != nil {
			return container.NewStorageError("flush", path, err)
		}
	}
	return nil
}

// Close flushes and closes every open dataset file.
func (s *Store) Close() error {
	err := s.Flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, f := range s.files {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = container.NewStorageError("close", path, cerr)
		}
	}
	s.files = make(map[string]*os.File)
	return err
}

type dataset struct {
	store  *Store
	path   string
	file   *os.File
	layout container.Layout
}

func (d *dataset) Layout() container.Layout {
	return d.layout
}

func (d *dataset) offset(start uint64) int64 {
	return headerSize + int64(start)*int64(d.layout.ElementSize)
}

func (d *dataset) ReadAt(buf []byte, start uint64) error {
	if _, err := d.layout.CheckRange(buf, start); err != nil {
		return container.NewStorageError("read", d.path, err)
	}
	if len(buf) == 0 {
		return nil
	}
	if _, err := d.file.ReadAt(buf, d.offset(start)); err != nil {
		return container.NewStorageError("read", d.path, err)
	}
	return nil
}

func (d *dataset) WriteAt(buf []byte, start uint64) error {
	if d.store.readOnly {
		return fmt.Errorf("writing %s: %w", d.path, container.ErrReadOnly)
	}
	if _, err := d.layout.CheckRange(buf, start); err != nil {
		return container.NewStorageError("write", d.path, err)
	}
	if _, err := d.file.WriteAt(buf, d.offset(start)); err != nil {
		return container.NewStorageError("write", d.path, err)
	}
	return nil
}
