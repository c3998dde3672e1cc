// SPDX-License-Identifier: Apache-2.0

// Package objectstore is the Object-Store Adapter (spec §4.4): a narrow
// contract for list/get/put/delete against any S3-compatible endpoint.
package objectstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the requested key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes one key returned by List.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Store is the narrow contract every object-store backend must satisfy.
// Implementations must make Delete idempotent (deleting a missing key is
// success) and Put an unconditional overwrite, per spec §4.4.
type Store interface {
	// List invokes fn once per key under prefix, paginating transparently.
	// A non-nil error from fn stops iteration and is returned from List.
	List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error

	// Get downloads key to outPath, atomically (download to a sibling temp
	// file, then rename). Returns ErrNotFound if key does not exist.
	Get(ctx context.Context, key, outPath string) error

	// Put uploads the contents of inPath to key, overwriting any existing
	// object at that key.
	Put(ctx context.Context, key, inPath string) error

	// Delete removes key. Deleting a key that doesn't exist is success.
	Delete(ctx context.Context, key string) error
}
