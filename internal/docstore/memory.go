package docstore

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/google/uuid"
)

// InMemoryStore is the ephemeral backend used when no store is configured.
// Writes succeed with a locally minted id and nothing is read back.
type InMemoryStore struct {
	puts atomic.Int64
}

// NewInMemoryStore creates an ephemeral store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Put accepts the record without any I/O.
func (s *InMemoryStore) Put(_ context.Context, collection string, _ Fields) (string, error) {
	n := s.puts.Add(1)
	if n == 1 {
		log.Printf("store not configured, %s records are kept in memory only", collection)
	}
	return uuid.NewString(), nil
}

// ListAll always returns nothing.
func (s *InMemoryStore) ListAll(context.Context, string) []Document { return nil }

func (s *InMemoryStore) Durable() bool { return false }
func (s *InMemoryStore) Name() string  { return "memory" }

// Puts reports how many writes were accepted.
func (s *InMemoryStore) Puts() int64 { return s.puts.Load() }
