package store

import "context"

// Store is the path-addressed key-value contract.
//
// Get returns (nil, nil) when the path holds no document.
//
// Update shallow-merges partial into the document at path, creating it if
// absent. A nil value removes that field. A document left with no fields is
// removed.
//
// Delete removes the document at path and every document beneath it.
//
// Take atomically reads and removes the document at path, returning
// ErrNotFound when it is absent. Concurrent Take calls on one path succeed
// for at most one caller.
//
// List returns the direct children of collection keyed by their last path
// segment.
//
// QueryFirstWhereEqual returns the first direct child of collection (by key
// order) whose field equals value, or ("", nil, nil) when none matches.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Update(ctx context.Context, path string, partial Document) error
	Delete(ctx context.Context, path string) error
	Take(ctx context.Context, path string) (Document, error)
	List(ctx context.Context, collection string) (map[string]Document, error)
	QueryFirstWhereEqual(ctx context.Context, collection, field string, value any) (string, Document, error)
}
