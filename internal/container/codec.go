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
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec transforms stored blocks.  Name is recorded with each dataset so
// that it reads back with the codec it was written with.
type Codec interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// RawCodec stores blocks unchanged.
type RawCodec struct{}

// Name implements Codec.
func (RawCodec) Name() string { return "raw" }

// Encode implements Codec.
func (RawCodec) Encode(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// Decode implements Codec.
func (RawCodec) Decode(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// ZstdCodec compresses blocks with zstd.  Segment and DNA chunks are highly
// repetitive, so this typically shrinks them several fold.
type ZstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCodec returns a ZstdCodec using the given compression level.
func NewZstdCodec(level zstd.EncoderLevel) (*ZstdCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %v", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %v", err)
	}
	return &ZstdCodec{encoder: encoder, decoder: decoder}, nil
}

// Name implements Codec.
func (c *ZstdCodec) Name() string { return "zstd" }

// Encode implements Codec.
func (c *ZstdCodec) Encode(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, nil), nil
}

// Decode implements Codec.
func (c *ZstdCodec) Decode(data []byte) ([]byte, error) {
	return c.decoder.DecodeAll(data, nil)
}

// CodecByName returns the codec registered under name: "", "raw" or "none"
// for RawCodec and "zstd" for ZstdCodec at the default level.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "raw", "none":
		return RawCodec{}, nil
	case "zstd":
		return NewZstdCodec(zstd.SpeedDefault)
	}
	return nil, fmt.Errorf("unknown compression %q", name)
}
