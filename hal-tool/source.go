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
	"context"
	"fmt"
	"log/slog"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/container"
	"github.com/googlegenomics/hal/internal/container/badgerstore"
	"github.com/googlegenomics/hal/internal/container/filestore"
	"github.com/googlegenomics/hal/internal/container/gcsstore"
)

// sharedStore lets several containers use one block store, which is closed
// by its owner rather than by each container.
type sharedStore struct {
	container.BlockStore
}

func (sharedStore) Close() error { return nil }

// source opens read-only views of the alignment at one location.  Each view
// is independent, so views may be used from different goroutines.
type source struct {
	cfg          Config
	logger       *slog.Logger
	newContainer func() (container.Container, error)
	close        func() error
}

func newSource(ctx context.Context, cfg Config, path string, logger *slog.Logger) (*source, error) {
	s := &source{cfg: cfg, logger: logger, close: func() error { return nil }}
	switch cfg.Backend {
	case "file":
		s.newContainer = func() (container.Container, error) {
			return filestore.Open(path, filestore.Options{ReadOnly: true, Logger: logger})
		}

	case "badger":
		store, err := badgerstore.OpenStore(badgerstore.Config{Path: path, ReadOnly: true, Logger: logger})
		if err != nil {
			return nil, err
		}
		if err := s.useBlockStore(store); err != nil {
			store.Close()
			return nil, err
		}
		s.close = store.Close

	case "gcs":
		bucket, prefix, err := gcsstore.ParseURL(path)
		if err != nil {
			return nil, err
		}
		client, err := gcsstore.NewClient(ctx, cfg.GCSToken, cfg.GCSPublic)
		if err != nil {
			return nil, err
		}
		store := gcsstore.NewStore(ctx, client, bucket, prefix)
		if err := s.useBlockStore(store); err != nil {
			store.Close()
			return nil, err
		}
		s.close = store.Close

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return s, nil
}

func (s *source) useBlockStore(store container.BlockStore) error {
	codec, err := container.CodecByName(s.cfg.Compression)
	if err != nil {
		return err
	}
	s.newContainer = func() (container.Container, error) {
		return container.NewBlockContainer(sharedStore{store}, container.BlockOptions{
			Codec:    codec,
			ReadOnly: true,
			Logger:   s.logger,
		}), nil
	}
	return nil
}

// open returns a new read-only view of the alignment.
func (s *source) open() (*hal.Alignment, error) {
	c, err := s.newContainer()
	if err != nil {
		return nil, err
	}
	a, err := hal.Open(c, hal.Options{
		PagesPerBuffer: s.cfg.PagesPerBuffer,
		ReadOnly:       true,
		Logger:         s.logger,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	return a, nil
}

// withAlignment opens a view, runs fn and closes the view.
func (s *source) withAlignment(fn func(*hal.Alignment) error) error {
	a, err := s.open()
	if err != nil {
		return err
	}
	err = fn(a)
	if closeErr := a.Close(); err == nil {
		err = closeErr
	}
	return err
}
