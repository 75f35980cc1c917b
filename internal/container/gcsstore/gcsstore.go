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

// Package gcsstore provides a container stored as objects in a Google Cloud
// Storage bucket, one object per dataset block.
package gcsstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/googlegenomics/hal/internal/container"
)

// Config describes where and how a container is stored.
type Config struct {
	// URL has the form gs://bucket/prefix.
	URL string
	// Token is an optional OAuth2 bearer token.
	Token string
	// Public disables authorization; only public objects can be read.
	Public bool
	// ReadOnly rejects every mutating container call.
	ReadOnly bool
	// Compression names the codec of new datasets ("raw" or "zstd").
	Compression string
	Logger      *slog.Logger
}

// Store is a container.BlockStore over objects below a bucket prefix.
type Store struct {
	ctx    context.Context
	client Client
	bucket string
	prefix string
}

// ParseURL splits a gs:// URL into bucket and object prefix.
func ParseURL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parsing %q: %v", raw, err)
	}
	if u.Scheme != "gs" || u.Host == "" {
		return "", "", fmt.Errorf("invalid storage URL %q: want gs://bucket/prefix", raw)
	}
	prefix = strings.Trim(u.Path, "/")
	if prefix != "" {
		prefix += "/"
	}
	return u.Host, prefix, nil
}

// NewStore returns a Store for the objects below prefix in bucket.
func NewStore(ctx context.Context, client Client, bucket, prefix string) *Store {
	return &Store{ctx: ctx, client: client, bucket: bucket, prefix: prefix}
}

// Open returns a container described by cfg, creating its client.
func Open(ctx context.Context, cfg Config) (*container.BlockContainer, error) {
	client, err := NewClient(ctx, cfg.Token, cfg.Public)
	if err != nil {
		return nil, err
	}
	return OpenWithClient(ctx, client, cfg)
}

// OpenWithClient returns a container described by cfg that uses client.
func OpenWithClient(ctx context.Context, client Client, cfg Config) (*container.BlockContainer, error) {
	bucket, prefix, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	codec, err := container.CodecByName(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return container.NewBlockContainer(NewStore(ctx, client, bucket, prefix), container.BlockOptions{
		Codec:    codec,
		ReadOnly: cfg.ReadOnly,
		Logger:   cfg.Logger,
	}), nil
}

// Get implements container.BlockStore.
func (s *Store) Get(key string) ([]byte, error) {
	object := s.prefix + key
	r, err := s.client.NewObjectHandle(s.bucket, object).NewRangeReader(s.ctx, 0, -1)
	if err != nil {
		return nil, newStorageError("read", object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, newStorageError("read", object, err)
	}
	return data, nil
}

// Put implements container.BlockStore.
func (s *Store) Put(key string, data []byte) error {
	object := s.prefix + key
	w := s.client.NewObjectHandle(s.bucket, object).NewWriter(s.ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return newStorageError("write", object, err)
	}
	if err := w.Close(); err != nil {
		return newStorageError("write", object, err)
	}
	return nil
}

// DeletePrefix implements container.BlockStore.
func (s *Store) DeletePrefix(prefix string) error {
	names, err := s.client.ListObjects(s.ctx, s.bucket, s.prefix+prefix)
	if err != nil {
		return newStorageError("list", s.prefix+prefix, err)
	}
	for _, name := range names {
		if err := s.client.NewObjectHandle(s.bucket, name).Delete(s.ctx); err != nil {
			return newStorageError("delete", name, err)
		}
	}
	return nil
}

// Close implements container.BlockStore.
func (s *Store) Close() error {
	if c, ok := s.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
