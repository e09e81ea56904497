package docstore

import (
	"context"
	"fmt"
)

// Collections written by the check-in service.
const (
	CollectionGuests     = "guests"
	CollectionStudents   = "students"
	CollectionRegistered = "registered_guests"
)

// RecordStore is the put/list contract of a document store.
// ListAll never fails: errors are logged and an empty result is returned.
type RecordStore interface {
	Put(ctx context.Context, collection string, fields Fields) (string, error)
	ListAll(ctx context.Context, collection string) []Document
	// Durable is false when writes are accepted but not kept beyond the process.
	Durable() bool
	Name() string
}

// StoreError reports a failed store call.
type StoreError struct {
	Op         string
	Collection string
	StatusCode int
	Err        error
}

func (e *StoreError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("docstore: %s %s: status %d: %v", e.Op, e.Collection, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("docstore: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
