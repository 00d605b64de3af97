package snapshot

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrUnknownDigest = errors.New("snapshot: unknown digest")

const defaultStoreSize = 4096

// Store interns trees by digest so identical content resolves to one
// shared handle. Handles stay resolvable for as long as they remain in
// the LRU window.
type Store struct {
	mu    sync.Mutex
	trees *lru.Cache[Digest, *Tree]
}

// NewStore creates a store holding at most size trees. A size of zero or
// less uses the default capacity.
func NewStore(size int) (*Store, error) {
	if size <= 0 {
		size = defaultStoreSize
	}
	trees, err := lru.New[Digest, *Tree](size)
	if err != nil {
		return nil, err
	}
	return &Store{trees: trees}, nil
}

// Intern records the tree under its digest and returns the canonical
// handle for that content.
func (s *Store) Intern(t *Tree) *Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.trees.Get(t.digest); ok {
		return existing
	}
	s.trees.Add(t.digest, t)
	return t
}

// Resolve returns the tree for a previously interned digest.
func (s *Store) Resolve(d Digest) (*Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trees.Get(d); ok {
		return t, nil
	}
	return nil, ErrUnknownDigest
}
