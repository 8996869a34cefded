// Package memory defines the long-term memory contract: an external
// key-vector store holding one embedded record per persisted message. The
// orchestration pipeline writes records fire-and-forget and queries them by
// similarity, filtered to the owning user.
//
// The similarity index itself is an external service; this package only
// specifies the narrow contract and ships the embedded chromem-go adapter
// in the chromem subpackage.
package memory

import (
	"context"

	"github.com/google/uuid"
)

// Record is one embedded snippet of text tied to a persisted message.
// Records are written once and never updated.
type Record struct {
	MessageID      uuid.UUID
	OwnerID        uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Text           string
	Vector         []float32
}

// Snippet is one similarity-search hit, ranked by descending similarity.
type Snippet struct {
	Text  string
	Score float32
}

// Store is the vector storage backend.
//
// Query never returns an error for "nothing there": an empty or nil query
// vector, an unknown owner, or an empty index all yield an empty slice.
type Store interface {
	// Write stores one record. The orchestrator calls this fire-and-forget;
	// failures are logged by the caller and never retried.
	Write(ctx context.Context, rec Record) error

	// Query returns up to k snippets nearest to vector, restricted to the
	// owner's records, closest first. Fewer than k exist, fewer are returned.
	Query(ctx context.Context, vector []float32, k int, ownerID uuid.UUID) ([]Snippet, error)

	// Close releases resources.
	Close() error
}
