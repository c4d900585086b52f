// Package repo provides the note store implementations
package repo

import (
	"context"

	"mural/internal/services/board/domain"
)

// Storage is the note store contract
//
// Insert and AppendResponse are atomic with respect to the TTL and capacity
// invariants: no caller ever observes more than MaxActive live notes or an
// expired note. Eviction victims are returned as full records so callers can
// broadcast deletions and feed analytics.
type Storage interface {
	// Insert stores a fresh top-level note, evicting expired notes and then
	// the oldest active notes as needed to stay within capacity
	Insert(ctx context.Context, n domain.Note, payload []byte) (evicted []domain.Note, err error)

	// AppendResponse attaches a response to a live parent
	// NotFound when the parent is unknown, Expired when it is past its TTL
	AppendResponse(ctx context.Context, parentID string, r domain.Response, payload []byte) error

	// Get returns one live note with its responses
	// a note destroyed lazily on this read comes back in evicted
	Get(ctx context.Context, id string) (n domain.Note, evicted []domain.Note, err error)

	// Payload returns the raw bytes and format for a note or response id
	// a thread destroyed lazily on this read comes back in evicted
	Payload(ctx context.Context, id string) (b []byte, format string, evicted []domain.Note, err error)

	// ListActive returns the visible board newest first, capped at MaxActive,
	// plus any notes it destroyed lazily while scanning
	ListActive(ctx context.Context) (active, evicted []domain.Note, err error)

	// EvictExpired removes every note past its TTL, idempotent
	EvictExpired(ctx context.Context) ([]domain.Note, error)

	// EvictOverflow removes oldest notes beyond capacity
	// defensive re-check, insert already maintains the bound
	EvictOverflow(ctx context.Context) ([]domain.Note, error)
}
