// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store reads tide records from an S3-compatible object store.
// Records are JSON documents keyed as <prefix>/<user-id>/<record-id>.json;
// older deployments used different prefixes, so reads consult a primary
// prefix first and then any configured fallbacks.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tidwall/gjson"
)

// ErrRecordNotFound is returned when a record exists under no known prefix.
var ErrRecordNotFound = errors.New("tide record not found")

// Record is one stored tide document. Data holds the raw JSON body.
type Record struct {
	ID     string
	UserID string
	Data   []byte
}

// Field extracts a dotted-path value from the record body, or "" when absent.
func (r *Record) Field(path string) string {
	return gjson.GetBytes(r.Data, path).String()
}

// RecordStore is the read surface the service handlers use.
type RecordStore interface {
	Get(ctx context.Context, userID, recordID string) (*Record, error)
	List(ctx context.Context, userID string) ([]string, error)
}

// ObjectBackend is the narrow slice of object storage the store needs.
// The production implementation wraps a minio client; tests substitute an
// in-memory map.
type ObjectBackend interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// ErrObjectNotFound is the backend-level miss signal.
var ErrObjectNotFound = errors.New("object not found")

// Options configures a TideStore.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	PrimaryPrefix    string
	FallbackPrefixes []string
}

// TideStore reads records through an ObjectBackend with prefix fallback.
type TideStore struct {
	backend  ObjectBackend
	prefixes []string
}

// NewTideStore connects to the configured S3-compatible endpoint.
func NewTideStore(opts Options) (*TideStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to object store: %w", err)
	}
	return NewTideStoreWithBackend(&minioBackend{client: client, bucket: opts.Bucket}, opts.PrimaryPrefix, opts.FallbackPrefixes), nil
}

// NewTideStoreWithBackend wires an explicit backend, primarily for tests.
func NewTideStoreWithBackend(backend ObjectBackend, primary string, fallbacks []string) *TideStore {
	prefixes := append([]string{primary}, fallbacks...)
	return &TideStore{backend: backend, prefixes: prefixes}
}

// Get fetches one record, trying the primary prefix first and then the
// fallbacks in order.
func (s *TideStore) Get(ctx context.Context, userID, recordID string) (*Record, error) {
	for _, prefix := range s.prefixes {
		key := path.Join(prefix, userID, recordID+".json")
		data, err := s.backend.GetObject(ctx, key)
		if errors.Is(err, ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &Record{ID: recordID, UserID: userID, Data: data}, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, userID, recordID)
}

// List returns the record IDs visible for the user across all prefixes,
// deduplicated and sorted. A record migrated between layouts appears once.
func (s *TideStore) List(ctx context.Context, userID string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, prefix := range s.prefixes {
		keys, err := s.backend.ListKeys(ctx, path.Join(prefix, userID)+"/")
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			name := strings.TrimSuffix(path.Base(key), ".json")
			if name != "" {
				seen[name] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// minioBackend adapts a minio client to ObjectBackend.
type minioBackend struct {
	client *minio.Client
	bucket string
}

func (b *minioBackend) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		// The miss surfaces on read, not on open.
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return data, nil
}

func (b *minioBackend) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for info := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, info.Err
		}
		keys = append(keys, info.Key)
	}
	return keys, nil
}
