package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store.
//
// Thread Safety:
//   - All methods are safe for concurrent use. A single mutex makes every
//     operation, including Update's read-modify-write and Take, atomic.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]Document
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

// Get returns a copy of the document at path.
func (m *MemoryStore) Get(_ context.Context, path string) (Document, error) {
	if _, err := validatePath(path); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[path]
	if !ok {
		return nil, nil
	}
	return normalize(doc)
}

// Update shallow-merges partial into the document at path.
func (m *MemoryStore) Update(_ context.Context, path string, partial Document) error {
	if _, err := validatePath(path); err != nil {
		return err
	}
	partial, err := normalize(partial)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	merged := merge(m.docs[path], partial)
	if len(merged) == 0 {
		delete(m.docs, path)
		return nil
	}
	m.docs[path] = merged
	return nil
}

// Delete removes the document at path and its descendants.
func (m *MemoryStore) Delete(_ context.Context, path string) error {
	if _, err := validatePath(path); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := path + "/"
	for p := range m.docs {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(m.docs, p)
		}
	}
	return nil
}

// Take removes and returns the document at path.
func (m *MemoryStore) Take(_ context.Context, path string) (Document, error) {
	if _, err := validatePath(path); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	delete(m.docs, path)
	return doc, nil
}

// List returns copies of the direct children of collection.
func (m *MemoryStore) List(_ context.Context, collection string) (map[string]Document, error) {
	if _, err := validatePath(collection); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Document)
	for p, doc := range m.docs {
		if parentOf(p) != collection {
			continue
		}
		c, err := normalize(doc)
		if err != nil {
			return nil, err
		}
		out[keyOf(p)] = c
	}
	return out, nil
}

// QueryFirstWhereEqual scans the children of collection in key order.
func (m *MemoryStore) QueryFirstWhereEqual(ctx context.Context, collection, field string, value any) (string, Document, error) {
	if err := validateField(field); err != nil {
		return "", nil, err
	}
	want, err := normalizeValue(value)
	if err != nil {
		return "", nil, err
	}

	children, err := m.List(ctx, collection)
	if err != nil {
		return "", nil, err
	}

	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := children[k][field]
		if ok && reflect.DeepEqual(got, want) {
			return k, children[k], nil
		}
	}
	return "", nil, nil
}

// Len reports the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding query value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encoding query value: %w", err)
	}
	return out, nil
}
