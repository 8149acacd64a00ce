package store

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store with the same merge and batch
// semantics as the Firestore backend. Used by tests.
type MemoryStore struct {
	sync.Mutex
	collections map[string]map[string]map[string]interface{}
	maxBatch    int

	// FailCommit, when set, is consulted before each commit; a non-nil
	// return fails the whole batch.
	FailCommit func(ops []Op) error
	// Commits counts successful commits
	Commits int
}

var _ Store = &MemoryStore{}

// NewMemoryStore returns an empty store that accepts batches of up to
// maxBatch ops
func NewMemoryStore(maxBatch int) *MemoryStore {
	if maxBatch <= 0 {
		maxBatch = FirestoreMaxBatchSize
	}
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]interface{}),
		maxBatch:    maxBatch,
	}
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, bool, error) {
	s.Lock()
	defer s.Unlock()
	fields, ok := s.collections[collection][id]
	if !ok {
		return Document{}, false, nil
	}
	return Document{ID: id, Fields: copyFields(fields)}, true, nil
}

func (s *MemoryStore) Commit(_ context.Context, ops []Op) error {
	if err := checkBatch(s, ops); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	if s.FailCommit != nil {
		if err := s.FailCommit(ops); err != nil {
			return err
		}
	}
	for _, op := range ops {
		coll, ok := s.collections[op.Collection]
		if !ok {
			coll = make(map[string]map[string]interface{})
			s.collections[op.Collection] = coll
		}
		switch op.Type {
		case OpTypeDelete:
			delete(coll, op.ID)
		case OpTypeSet:
			doc, ok := coll[op.ID]
			if !ok {
				doc = make(map[string]interface{}, len(op.Fields))
				coll[op.ID] = doc
			}
			for k, v := range op.Fields {
				doc[k] = v
			}
		}
	}
	s.Commits++
	return nil
}

func (s *MemoryStore) ListIDs(_ context.Context, collection string) ([]string, error) {
	s.Lock()
	defer s.Unlock()
	ids := make([]string, 0, len(s.collections[collection]))
	for id := range s.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Query(_ context.Context, collection, field string, value interface{}) ([]Document, error) {
	s.Lock()
	defer s.Unlock()
	docs := make([]Document, 0)
	for id, fields := range s.collections[collection] {
		if v, ok := fields[field]; ok && reflect.DeepEqual(v, value) {
			docs = append(docs, Document{ID: id, Fields: copyFields(fields)})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) NewID(string) string {
	return uuid.NewString()
}

func (s *MemoryStore) MaxBatchSize() int {
	return s.maxBatch
}

// Documents returns a copy of every document in collection, sorted by key
func (s *MemoryStore) Documents(collection string) []Document {
	s.Lock()
	defer s.Unlock()
	docs := make([]Document, 0, len(s.collections[collection]))
	for id, fields := range s.collections[collection] {
		docs = append(docs, Document{ID: id, Fields: copyFields(fields)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
