package store

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreMaxBatchSize is Firestore's limit on writes per batch
const FirestoreMaxBatchSize = 500

// FirestoreStore writes documents to Cloud Firestore
type FirestoreStore struct {
	client *firestore.Client
}

var _ Store = &FirestoreStore{}

// NewFirestoreStore wraps an initialized firestore client
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	return Document{ID: snap.Ref.ID, Fields: snap.Data()}, true, nil
}

// Commit sends ops as a single write batch. Sets use MergeAll so fields
// missing from the op are left untouched.
func (s *FirestoreStore) Commit(ctx context.Context, ops []Op) error {
	if err := checkBatch(s, ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	batch := s.client.Batch()
	for _, op := range ops {
		ref := s.client.Collection(op.Collection).Doc(op.ID)
		switch op.Type {
		case OpTypeSet:
			batch.Set(ref, op.Fields, firestore.MergeAll)
		case OpTypeDelete:
			batch.Delete(ref)
		}
	}
	_, err := batch.Commit(ctx)
	return err
}

func (s *FirestoreStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	refs := s.client.Collection(collection).DocumentRefs(ctx)
	ids := make([]string, 0)
	for {
		ref, err := refs.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

func (s *FirestoreStore) Query(ctx context.Context, collection, field string, value interface{}) ([]Document, error) {
	iter := s.client.Collection(collection).Where(field, "==", value).Documents(ctx)
	defer iter.Stop()
	docs := make([]Document, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return docs, nil
}

func (s *FirestoreStore) NewID(collection string) string {
	return s.client.Collection(collection).NewDoc().ID
}

func (s *FirestoreStore) MaxBatchSize() int {
	return FirestoreMaxBatchSize
}

// IsTransient reports whether a store error is worth retrying
func IsTransient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted, codes.Internal:
		return true
	default:
		return false
	}
}
