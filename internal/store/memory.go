// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Compile-time interface check.
var _ SessionStore = (*MemorySessionStore)(nil)

// MemorySessionStore implements SessionStore in process memory. It is
// the test backend and the `storage.backend: memory` option; records do
// not survive a restart.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
	}
}

func (s *MemorySessionStore) CreateSession(_ context.Context, session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return parleyerr.New(
			parleyerr.CodeStoreSessionCreateConflict,
			"session already exists: "+session.ID,
			parleyerr.FieldSessionID(session.ID),
		)
	}

	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemorySessionStore) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, parleyerr.New(
			parleyerr.CodeStoreSessionGetNotFound,
			"session not found: "+id,
			parleyerr.FieldSessionID(id),
		)
	}
	return sess.Clone(), nil
}

func (s *MemorySessionStore) UpdateSession(_ context.Context, session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[session.ID]
	if !ok {
		return parleyerr.New(
			parleyerr.CodeStoreSessionGetNotFound,
			"session not found: "+session.ID,
			parleyerr.FieldSessionID(session.ID),
		)
	}

	// Optimistic-concurrency check: the caller must hold the version it read.
	if !current.UpdatedAt.Equal(session.UpdatedAt) {
		return parleyerr.New(
			parleyerr.CodeStoreSessionUpdateConflict,
			"session was modified concurrently: "+session.ID,
			parleyerr.FieldSessionID(session.ID),
		)
	}

	stored := session.Clone()
	stored.UpdatedAt = time.Now().UTC()
	s.sessions[session.ID] = stored
	return nil
}

func (s *MemorySessionStore) ListSessions(_ context.Context, opts ListOpts) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	start := opts.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	out := make([]*Session, 0, end-start)
	for _, sess := range all[start:end] {
		out = append(out, sess.Clone())
	}
	return out, nil
}

func (s *MemorySessionStore) Close() error { return nil }
