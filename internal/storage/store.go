// Package storage defines where project trees live between requests.
// The HTTP surface is stateless; persistence belongs to whoever embeds
// this service, so the contract here is deliberately small.
package storage

import (
	"context"
	"fmt"
	"sync"

	"editron/internal/doctree"
	"editron/internal/domain"
)

// ProjectStore loads and saves a project's document tree by id.
type ProjectStore interface {
	Load(ctx context.Context, projectID string) (*doctree.Folder, error)
	Save(ctx context.Context, projectID string, root *doctree.Folder) error
}

// MemoryStore is an in-process ProjectStore. Trees are immutable
// values, so storing the pointer is safe.
type MemoryStore struct {
	mu    sync.RWMutex
	trees map[string]*doctree.Folder
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trees: make(map[string]*doctree.Folder)}
}

// Load returns the stored tree, or a not-found error.
func (s *MemoryStore) Load(ctx context.Context, projectID string) (*doctree.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.trees[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: project %q", domain.ErrNotFound, projectID)
	}
	return root, nil
}

// Save stores the tree under the project id, replacing any previous
// version.
func (s *MemoryStore) Save(ctx context.Context, projectID string, root *doctree.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trees[projectID] = root
	return nil
}
