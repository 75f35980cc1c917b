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

package container

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const (
	layoutKey = ".layout"
	attrsKey  = ".attrs"

	// DefaultBlockBytes is the approximate size of a storage block used for
	// unchunked datasets.
	DefaultBlockBytes = 1 << 16
)

// BlockStore persists opaque blobs under string keys.  It is the minimal
// surface a key/value or object store has to provide to back a
// BlockContainer.
type BlockStore interface {
	// Get returns the blob stored at key.  The error wraps ErrNotFound if
	// there is none.
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
	// DeletePrefix removes every blob whose key starts with prefix.
	DeletePrefix(prefix string) error
	Close() error
}

// BlockOptions configures a BlockContainer.
type BlockOptions struct {
	// Codec transforms chunk blocks on their way to and from the store.  Nil
	// stores blocks uncompressed.
	Codec Codec
	// ReadOnly rejects every mutating call with ErrReadOnly.
	ReadOnly bool
	// Logger receives debug output.  Nil discards it.
	Logger *slog.Logger
}

// BlockContainer implements Container on top of a BlockStore.  Each dataset
// is stored as a layout blob plus one blob per chunk; blocks that were
// never written read back as zeros.
type BlockContainer struct {
	store    BlockStore
	codec    Codec
	readOnly bool
	logger   *slog.Logger

	mu     sync.Mutex
	codecs map[string]Codec
}

// storedLayout is the layout blob of a dataset.  Codec is empty for datasets
// written before codecs were recorded, which then use the container's codec.
type storedLayout struct {
	Layout
	Codec string `json:"codec,omitempty"`
}

// NewBlockContainer returns a Container that stores its data in store.
func NewBlockContainer(store BlockStore, opts BlockOptions) *BlockContainer {
	codec := opts.Codec
	if codec == nil {
		codec = RawCodec{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BlockContainer{
		store:    store,
		codec:    codec,
		readOnly: opts.ReadOnly,
		logger:   logger,
		codecs:   map[string]Codec{codec.Name(): codec},
	}
}

// codecByName returns the codec a dataset was written with, sharing one
// instance per name.
func (c *BlockContainer) codecByName(name string) (Codec, error) {
	if name == "" {
		return c.codec, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if codec, ok := c.codecs[name]; ok {
		return codec, nil
	}
	codec, err := CodecByName(name)
	if err != nil {
		return nil, err
	}
	c.codecs[name] = codec
	return codec, nil
}

// CreateDataset implements Container.
func (c *BlockContainer) CreateDataset(path string, elementSize int, length, chunkSize uint64) (Dataset, error) {
	path = CleanPath(path)
	if c.readOnly {
		return nil, fmt.Errorf("creating %s: %w", path, ErrReadOnly)
	}
	layout := Layout{ElementSize: elementSize, Length: length, ChunkSize: chunkSize}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	if err := c.store.DeletePrefix(path + "/"); err != nil {
		return nil, NewStorageError("create", path, err)
	}
	encoded, err := json.Marshal(storedLayout{Layout: layout, Codec: c.codec.Name()})
	if err != nil {
		return nil, fmt.Errorf("encoding layout: %v", err)
	}
	if err := c.store.Put(path+"/"+layoutKey, encoded); err != nil {
		return nil, NewStorageError("create", path, err)
	}
	c.logger.Debug("created dataset", "path", path, "length", length, "chunk", chunkSize, "codec", c.codec.Name())
	return c.newDataset(path, layout, c.codec), nil
}

// OpenDataset implements Container.
func (c *BlockContainer) OpenDataset(path string) (Dataset, error) {
	path = CleanPath(path)
	encoded, err := c.store.Get(path + "/" + layoutKey)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("dataset %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, NewStorageError("open", path, err)
	}
	var stored storedLayout
	if err := json.Unmarshal(encoded, &stored); err != nil {
		return nil, NewStorageError("open", path, fmt.Errorf("decoding layout: %v", err))
	}
	if err := stored.Validate(); err != nil {
		return nil, NewStorageError("open", path, err)
	}
	codec, err := c.codecByName(stored.Codec)
	if err != nil {
		return nil, NewStorageError("open", path, err)
	}
	return c.newDataset(path, stored.Layout, codec), nil
}

// Remove implements Container.
func (c *BlockContainer) Remove(path string) error {
	path = CleanPath(path)
	if c.readOnly {
		return fmt.Errorf("removing %s: %w", path, ErrReadOnly)
	}
	return NewStorageError("remove", path, c.store.DeletePrefix(path+"/"))
}

// Attributes implements Container.
func (c *BlockContainer) Attributes(group string) (map[string]string, error) {
	group = CleanPath(group)
	encoded, err := c.store.Get(group + "/" + attrsKey)
	if errors.Is(err, ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, NewStorageError("read attributes", group, err)
	}
	return DecodeAttributes(encoded)
}

// SetAttributes implements Container.
func (c *BlockContainer) SetAttributes(group string, attrs map[string]string) error {
	group = CleanPath(group)
	if c.readOnly {
		return fmt.Errorf("writing attributes of %s: %w", group, ErrReadOnly)
	}
	encoded, err := EncodeAttributes(attrs)
	if err != nil {
		return err
	}
	return NewStorageError("write attributes", group, c.store.Put(group+"/"+attrsKey, encoded))
}

// Flush implements Container.  Blocks are written through on every
// WriteAt, so there is nothing to do.
func (c *BlockContainer) Flush() error {
	return nil
}

// Close implements Container.
func (c *BlockContainer) Close() error {
	return c.store.Close()
}

func (c *BlockContainer) newDataset(path string, layout Layout, codec Codec) *blockDataset {
	block := layout.ChunkSize
	if block == 0 {
		block = uint64(DefaultBlockBytes / layout.ElementSize)
		if block == 0 {
			block = 1
		}
	}
	return &blockDataset{container: c, codec: codec, path: path, layout: layout, blockElements: block}
}

type blockDataset struct {
	container     *BlockContainer
	codec         Codec
	path          string
	layout        Layout
	blockElements uint64
}

func (d *blockDataset) Layout() Layout {
	return d.layout
}

func (d *blockDataset) blockKey(index uint64) string {
	return fmt.Sprintf("%s/%012d", d.path, index)
}

// blockBytes returns the size in bytes of block index, which is shorter
// than the others if it is the last one.
func (d *blockDataset) blockBytes(index uint64) int {
	start := index * d.blockElements
	n := d.blockElements
	if start+n > d.layout.Length {
		n = d.layout.Length - start
	}
	return int(n) * d.layout.ElementSize
}

func (d *blockDataset) readBlock(index uint64) ([]byte, error) {
	size := d.blockBytes(index)
	stored, err := d.container.store.Get(d.blockKey(index))
	if errors.Is(err, ErrNotFound) {
		return make([]byte, size), nil
	}
	if err != nil {
		return nil, err
	}
	data, err := d.codec.Decode(stored)
	if err != nil {
		return nil, fmt.Errorf("decoding block %d: %v", index, err)
	}
	if len(data) != size {
		return nil, fmt.Errorf("block %d has %d bytes, want %d", index, len(data), size)
	}
	return data, nil
}

func (d *blockDataset) writeBlock(index uint64, data []byte) error {
	encoded, err := d.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding block %d: %v", index, err)
	}
	return d.container.store.Put(d.blockKey(index), encoded)
}

func (d *blockDataset) ReadAt(buf []byte, start uint64) error {
	count, err := d.layout.CheckRange(buf, start)
	if err != nil {
		return NewStorageError("read", d.path, err)
	}
	size := uint64(d.layout.ElementSize)
	for i := uint64(0); i < count; {
		element := start + i
		index := element / d.blockElements
		block, err := d.readBlock(index)
		if err != nil {
			return NewStorageError("read", d.path, err)
		}
		offset := (element - index*d.blockElements) * size
		n := copy(buf[i*size:], block[offset:])
		i += uint64(n) / size
	}
	return nil
}

func (d *blockDataset) WriteAt(buf []byte, start uint64) error {
	if d.container.readOnly {
		return fmt.Errorf("writing %s: %w", d.path, ErrReadOnly)
	}
	count, err := d.layout.CheckRange(buf, start)
	if err != nil {
		return NewStorageError("write", d.path, err)
	}
	size := uint64(d.layout.ElementSize)
	for i := uint64(0); i < count; {
		element := start + i
		index := element / d.blockElements
		offset := (element - index*d.blockElements) * size
		remaining := buf[i*size:]

		var block []byte
		if offset == 0 && len(remaining) >= d.blockBytes(index) {
			block = remaining[:d.blockBytes(index)]
		} else {
			if block, err = d.readBlock(index); err != nil {
				return NewStorageError("write", d.path, err)
			}
			copy(block[offset:], remaining)
		}
		if err := d.writeBlock(index, block); err != nil {
			return NewStorageError("write", d.path, err)
		}
		n := uint64(len(block)) - offset
		if n > uint64(len(remaining)) {
			n = uint64(len(remaining))
		}
		i += n / size
	}
	return nil
}
