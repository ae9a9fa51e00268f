// Package session owns the ephemeral session records that back
// cookie-based authentication. Records live in a TTL-capable key-value
// store and are immutable once created; a refresh is a new record, not
// an edit.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store could not be reached.
// Callers must distinguish this from "no such session": the former is a
// server fault, the latter is an ordinary unauthenticated request.
var ErrUnavailable = errors.New("session store unavailable")

// Record is the payload stored per session. ExpTimestamp duplicates the
// store-level TTL on purpose: the TTL guards against stale reads, the
// embedded timestamp guards against clock skew between the store and the
// application. A session counts as valid only when both agree.
type Record struct {
	UserPublicID string `json:"user_public_id"`
	ExpTimestamp int64  `json:"exp_timestamp"`
}

// ExpiresAt returns the embedded expiry as a time.Time.
func (r Record) ExpiresAt() time.Time { return time.Unix(r.ExpTimestamp, 0) }

// Store defines how sessions are created, read and invalidated.
type Store interface {
	// Create generates a fresh unguessable token, writes the record under
	// it with a store-level TTL, and returns the token.
	Create(ctx context.Context, userPublicID string, ttl time.Duration) (string, error)

	// Get returns the record for the token, or nil when none exists.
	Get(ctx context.Context, sessionID string) (*Record, error)

	// Delete removes the record. Idempotent; reports whether one existed.
	Delete(ctx context.Context, sessionID string) (bool, error)

	// IsValid reports whether the token resolves to a record whose
	// embedded expiry has not passed.
	IsValid(ctx context.Context, sessionID string) (bool, error)
}
