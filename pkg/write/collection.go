package write

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tallyworks/datamigrator/pkg/decode"
	"github.com/tallyworks/datamigrator/pkg/store"
)

// IDColumn is the column whose value becomes the document key
const IDColumn = "id"

// CollectionWriter turns decoded rows into documents and writes them
type CollectionWriter struct {
	store  store.Store
	writer BatchWriter

	// StageInserts makes Replace insert the new documents before deleting
	// the old ones, so a crash leaves extra documents instead of none.
	StageInserts bool
}

// NewCollectionWriter writes through writer, using s for key generation
// and listing
func NewCollectionWriter(s store.Store, writer BatchWriter) *CollectionWriter {
	return &CollectionWriter{store: s, writer: writer}
}

// Write merge-upserts rows into collection and returns the number of
// documents written. Rows with an id keep it as their key; other rows get a
// generated key. On a commit failure the count covers the chunks that did
// commit.
func (w *CollectionWriter) Write(ctx context.Context, collection string, rows []decode.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ops := make([]store.Op, 0, len(rows))
	for _, row := range rows {
		ops = append(ops, store.Set(collection, w.keyFor(collection, row), Fields(row)))
	}
	return w.commit(ctx, ops)
}

// WriteDocuments merge-upserts documents with known keys
func (w *CollectionWriter) WriteDocuments(ctx context.Context, collection string, docs []store.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	ops := make([]store.Op, 0, len(docs))
	for _, d := range docs {
		ops = append(ops, store.Set(collection, d.ID, d.Fields))
	}
	return w.commit(ctx, ops)
}

// Exists reports whether collection already holds a document keyed id
func (w *CollectionWriter) Exists(ctx context.Context, collection, id string) (bool, error) {
	_, found, err := w.store.Get(ctx, collection, id)
	return found, err
}

// Replace makes docs the entire content of collection. The collection has
// no natural key to upsert on, so every existing document is deleted and
// docs are inserted under fresh keys. Deletes and inserts are separate
// batches; there is no transaction spanning them.
func (w *CollectionWriter) Replace(ctx context.Context, collection string, docs []map[string]interface{}) (deleted, inserted int, err error) {
	existing, err := w.store.ListIDs(ctx, collection)
	if err != nil {
		return 0, 0, fmt.Errorf("listing %s: %w", collection, err)
	}

	deletes := make([]store.Op, 0, len(existing))
	for _, id := range existing {
		deletes = append(deletes, store.Delete(collection, id))
	}
	inserts := make([]store.Op, 0, len(docs))
	for _, fields := range docs {
		inserts = append(inserts, store.Set(collection, w.store.NewID(collection), fields))
	}

	if w.StageInserts {
		if inserted, err = w.commit(ctx, inserts); err != nil {
			return 0, inserted, err
		}
		deleted, err = w.commit(ctx, deletes)
		return deleted, inserted, err
	}

	if deleted, err = w.commit(ctx, deletes); err != nil {
		return deleted, 0, err
	}
	log.Debug().Str("collection", collection).Int("deleted", deleted).Msg("cleared collection")
	inserted, err = w.commit(ctx, inserts)
	return deleted, inserted, err
}

func (w *CollectionWriter) commit(ctx context.Context, ops []store.Op) (int, error) {
	if len(ops) == 0 {
		return 0, nil
	}
	if err := w.writer.Write(ctx, ops); err != nil {
		var ce *CommitError
		if errors.As(err, &ce) {
			return ce.Committed, err
		}
		return 0, err
	}
	return len(ops), nil
}

func (w *CollectionWriter) keyFor(collection string, row decode.Row) string {
	if id := row.Text(IDColumn); id != "" {
		return id
	}
	return w.store.NewID(collection)
}

// Fields converts a row to document fields. Absent values are dropped and
// nulls are kept as explicit nulls.
func Fields(row decode.Row) map[string]interface{} {
	fields := make(map[string]interface{}, len(row))
	for col, v := range row {
		if v.Kind() == decode.KindAbsent {
			continue
		}
		fields[col] = v.Native()
	}
	return fields
}
