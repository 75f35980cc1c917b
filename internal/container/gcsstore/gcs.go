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

package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/googlegenomics/hal/internal/container"
)

// ErrPermissionDenied is returned when the storage engine rejects the
// credentials in use.
var ErrPermissionDenied = errors.New("permission denied")

// GCSClient is Client for accessing Google Cloud Storage.
type GCSClient struct {
	*storage.Client
}

// NewObjectHandle returns a handle to a specified object in the storage
// engine.
func (c GCSClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return gcsObjectHandle{c.Bucket(bucket).Object(object)}
}

// ListObjects implements Client.
func (c GCSClient) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	var names []string
	it := c.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
}

type gcsObjectHandle struct {
	*storage.ObjectHandle
}

func (h gcsObjectHandle) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	return h.ObjectHandle.NewRangeReader(ctx, offset, length)
}

func (h gcsObjectHandle) NewWriter(ctx context.Context) io.WriteCloser {
	return h.ObjectHandle.NewWriter(ctx)
}

// NewClient returns a storage client.  A non-empty token is used as an OAuth2
// bearer token, public requests no authorization at all and otherwise the
// application default credentials are used.
func NewClient(ctx context.Context, token string, public bool) (Client, error) {
	var opts []option.ClientOption
	switch {
	case token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{TokenType: "Bearer", AccessToken: token})
		opts = append(opts, option.WithTokenSource(ts))
	case public:
		opts = append(opts, option.WithHTTPClient(http.DefaultClient))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %v", err)
	}
	return GCSClient{client}, nil
}

func newStorageError(op, object string, err error) error {
	if err == storage.ErrObjectNotExist {
		return fmt.Errorf("object %s: %w", object, container.ErrNotFound)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("object %s: %w", object, container.ErrNotFound)
		case http.StatusUnauthorized, http.StatusForbidden:
			err = fmt.Errorf("%w: %v", ErrPermissionDenied, apiErr)
		}
	}
	return container.NewStorageError(op, object, err)
}
