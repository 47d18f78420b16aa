// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package store

import "context"

// SessionStore persists full interview session records. A session is
// written as one atomic record per turn: either the whole updated
// record (user turn, assistant turn, state) commits, or nothing does.
//
// UpdateSession performs an optimistic-concurrency check against the
// record's UpdatedAt value and fails with
// parleyerr.CodeStoreSessionUpdateConflict when another writer won the
// race, so concurrent requests for one session id never interleave.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, session *Session) error
	ListSessions(ctx context.Context, opts ListOpts) ([]*Session, error)
	Close() error
}
