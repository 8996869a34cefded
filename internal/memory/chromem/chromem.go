// Package chromem adapts chromem-go, a pure Go embedded vector database, to
// the memory.Store contract. Each user gets their own collection so similarity
// queries never cross owner boundaries.
package chromem

import (
	"context"
	"fmt"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/aurorahq/aurora/internal/logger"
	"github.com/aurorahq/aurora/internal/memory"
	"github.com/google/uuid"
)

type Store struct {
	db  *chromemgo.DB
	log *logger.Logger
}

// New creates an in-process chromem-backed store.
func New(log *logger.Logger) *Store {
	return &Store{
		db:  chromemgo.NewDB(),
		log: log.With("store", "chromem"),
	}
}

func collectionName(ownerID uuid.UUID) string {
	return "user_" + ownerID.String()
}

func (s *Store) collection(ownerID uuid.UUID) (*chromemgo.Collection, error) {
	// Embeddings are always supplied by the caller, so no embedding func.
	return s.db.GetOrCreateCollection(collectionName(ownerID), nil, nil)
}

func (s *Store) Write(ctx context.Context, rec memory.Record) error {
	if len(rec.Vector) == 0 {
		return fmt.Errorf("chromem: record has no vector")
	}
	if rec.OwnerID == uuid.Nil {
		return fmt.Errorf("chromem: record has no owner")
	}
	col, err := s.collection(rec.OwnerID)
	if err != nil {
		return fmt.Errorf("chromem: collection: %w", err)
	}

	doc := chromemgo.Document{
		ID:        uuid.New().String(),
		Content:   rec.Text,
		Embedding: rec.Vector,
		Metadata: map[string]string{
			"message_id":      rec.MessageID.String(),
			"owner_id":        rec.OwnerID.String(),
			"conversation_id": rec.ConversationID.String(),
			"role":            rec.Role,
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("chromem: add document: %w", err)
	}
	s.log.Debug("memory record stored",
		"owner_id", rec.OwnerID.String(),
		"message_id", rec.MessageID.String(),
		"role", rec.Role,
	)
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int, ownerID uuid.UUID) ([]memory.Snippet, error) {
	if len(vector) == 0 || k <= 0 || ownerID == uuid.Nil {
		return nil, nil
	}
	col, err := s.collection(ownerID)
	if err != nil {
		return nil, fmt.Errorf("chromem: collection: %w", err)
	}

	// chromem rejects nResults larger than the collection, so clamp.
	if n := col.Count(); n < k {
		if n == 0 {
			return nil, nil
		}
		k = n
	}

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}

	snippets := make([]memory.Snippet, 0, len(results))
	for _, res := range results {
		snippets = append(snippets, memory.Snippet{
			Text:  res.Content,
			Score: res.Similarity,
		})
	}
	return snippets, nil
}

func (s *Store) Close() error {
	// Everything lives in process memory.
	return nil
}
