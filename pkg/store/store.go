package store

import (
	"context"
	"errors"
	"fmt"
)

// OpType is the kind of write in a batch
type OpType int

func (t OpType) String() string {
	switch t {
	case OpTypeSet:
		return "set"
	case OpTypeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Sets always merge into an existing document. Deletes remove it.
const (
	OpTypeSet OpType = iota
	OpTypeDelete
)

// Op is a single write in a batch
type Op struct {
	Type       OpType
	Collection string
	ID         string
	Fields     map[string]interface{}
}

// Set returns a merge-upsert op
func Set(collection, id string, fields map[string]interface{}) Op {
	return Op{Type: OpTypeSet, Collection: collection, ID: id, Fields: fields}
}

// Delete returns a delete op
func Delete(collection, id string) Op {
	return Op{Type: OpTypeDelete, Collection: collection, ID: id}
}

// Document is a stored document and its key
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// ErrBatchTooLarge is returned by Commit when a batch exceeds MaxBatchSize
var ErrBatchTooLarge = errors.New("batch exceeds the store's operation limit")

// Store is the destination document store
type Store interface {
	// Get fetches one document. found is false if it doesn't exist.
	Get(ctx context.Context, collection, id string) (doc Document, found bool, err error)
	// Commit applies ops atomically: all of them or none.
	Commit(ctx context.Context, ops []Op) error
	// ListIDs returns the keys of every document in collection.
	ListIDs(ctx context.Context, collection string) ([]string, error)
	// Query returns documents whose field equals value.
	Query(ctx context.Context, collection, field string, value interface{}) ([]Document, error)
	// NewID returns a fresh, unused document key for collection.
	NewID(collection string) string
	// MaxBatchSize is the largest number of ops Commit accepts.
	MaxBatchSize() int
}

func checkBatch(s Store, ops []Op) error {
	if len(ops) > s.MaxBatchSize() {
		return fmt.Errorf("%d ops, limit %d: %w", len(ops), s.MaxBatchSize(), ErrBatchTooLarge)
	}
	for _, op := range ops {
		if op.Collection == "" || op.ID == "" {
			return fmt.Errorf("%s op without collection or id", op.Type)
		}
	}
	return nil
}
