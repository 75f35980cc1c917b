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

// Package badgerstore provides a container backed by an embedded BadgerDB
// key-value store.  Datasets are split into blocks, one key per block.
package badgerstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/googlegenomics/hal/internal/container"
)

// Config holds configuration for a BadgerDB backed container.
type Config struct {
	// Path is the database directory.  Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in memory only.
	InMemory bool

	// ReadOnly opens the database read-only.  Mutating container calls fail
	// with container.ErrReadOnly.
	ReadOnly bool

	// SyncWrites makes every write durable before returning.
	SyncWrites bool

	// Compression names the codec of new datasets ("raw" or "zstd").
	Compression string

	// GCDiscardRatio is used to run value log garbage collection when the
	// store is closed.  Zero disables it.
	GCDiscardRatio float64

	// Logger receives BadgerDB and container log output.  Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration used for on-disk alignments.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		Compression:    "zstd",
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for scratch alignments and tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a container.BlockStore over a BadgerDB database.
type Store struct {
	db      *badger.DB
	discard float64
	logger  *slog.Logger
}

// OpenStore opens the database described by cfg.
func OpenStore(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for persistent database")
		}
		if !cfg.ReadOnly {
			if err := os.MkdirAll(cfg.Path, 0750); err != nil {
				return nil, container.NewStorageError("open", cfg.Path, err)
			}
		}
		opts = badger.DefaultOptions(cfg.Path).WithReadOnly(cfg.ReadOnly)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, container.NewStorageError("open", cfg.Path, err)
	}
	discard := cfg.GCDiscardRatio
	if cfg.InMemory || cfg.ReadOnly {
		discard = 0
	}
	return &Store{db: db, discard: discard, logger: logger}, nil
}

// Open returns a container over the database described by cfg.
func Open(cfg Config) (*container.BlockContainer, error) {
	codec, err := container.CodecByName(cfg.Compression)
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	return container.NewBlockContainer(store, container.BlockOptions{
		Codec:    codec,
		ReadOnly: cfg.ReadOnly,
		Logger:   cfg.Logger,
	}), nil
}

// Get implements container.BlockStore.
func (s *Store) Get(key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("key %s: %w", key, container.ErrNotFound)
	}
	return data, err
}

// Put implements container.BlockStore.
func (s *Store) Put(key string, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// DeletePrefix implements container.BlockStore.
func (s *Store) DeletePrefix(prefix string) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return err
	}

	batch := s.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return err
		}
	}
	return batch.Flush()
}

// Close runs value log garbage collection if configured and closes the
// database.
func (s *Store) Close() error {
	if s.discard > 0 {
		if err := s.db.RunValueLogGC(s.discard); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Warn("badger value log GC", "error", err)
		}
	}
	return s.db.Close()
}
