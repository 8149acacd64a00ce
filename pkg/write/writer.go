package write

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tallyworks/datamigrator/pkg/metrics"
	"github.com/tallyworks/datamigrator/pkg/store"
)

// BatchWriter writes a group of store ops
type BatchWriter interface {
	Write(context.Context, []store.Op) error
}

// CommitError reports a batch that failed to commit. Chunks before Chunk
// were committed and stay committed.
type CommitError struct {
	Collection string
	Chunk      int
	Committed  int
	Err        error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("committing batch %d for %s (%d ops already committed): %v", e.Chunk, e.Collection, e.Committed, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// NewBatchWriter returns a batch writer for s. It logs instead of writing
// when dryRun is set, and logs every op when the log level is trace.
// Batches larger than the store's limit are split into chunks.
func NewBatchWriter(s store.Store, m *metrics.Metrics, dryRun bool) BatchWriter {
	var w BatchWriter
	switch {
	case dryRun:
		w = NewDryRunBatchWriter()
	case zerolog.GlobalLevel() == zerolog.TraceLevel:
		w = LoggingBatchWriter{writer: NewStdBatchWriter(s, m), level: zerolog.TraceLevel}
	default:
		w = NewStdBatchWriter(s, m)
	}
	return NewChunkingBatchWriter(w, s.MaxBatchSize())
}

// StdBatchWriter commits each batch to the store, retrying transient
// failures with exponential backoff
type StdBatchWriter struct {
	store   store.Store
	metrics *metrics.Metrics
	backoff func() backoff.BackOff
}

// NewStdBatchWriter returns a writer that commits to s
func NewStdBatchWriter(s store.Store, m *metrics.Metrics) *StdBatchWriter {
	return &StdBatchWriter{
		store:   s,
		metrics: m,
		backoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
		},
	}
}

func (w *StdBatchWriter) Write(ctx context.Context, ops []store.Op) error {
	if len(ops) == 0 {
		return nil
	}
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := w.store.Commit(ctx, ops)
		if err == nil {
			return nil
		}
		if !store.IsTransient(err) {
			return backoff.Permanent(err)
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("ops", len(ops)).Msg("retrying batch commit")
		return err
	}, backoff.WithContext(w.backoff(), ctx))
	w.metrics.ObserveCommit(ops[0].Collection, err)
	return err
}

// ChunkingBatchWriter splits writes into chunks of at most batchSize ops.
// Each chunk commits on its own.
type ChunkingBatchWriter struct {
	writer    BatchWriter
	batchSize int
}

// NewChunkingBatchWriter wraps writer. A batchSize of 0 disables chunking.
func NewChunkingBatchWriter(writer BatchWriter, batchSize int) BatchWriter {
	if batchSize <= 0 {
		return writer
	}
	return ChunkingBatchWriter{writer: writer, batchSize: batchSize}
}

func (w ChunkingBatchWriter) Write(ctx context.Context, ops []store.Op) error {
	for chunk, start := 0, 0; start < len(ops); chunk, start = chunk+1, start+w.batchSize {
		end := start + w.batchSize
		if end > len(ops) {
			end = len(ops)
		}
		if err := w.writer.Write(ctx, ops[start:end]); err != nil {
			return &CommitError{Collection: ops[start].Collection, Chunk: chunk, Committed: start, Err: err}
		}
	}
	return nil
}

// LoggingBatchWriter logs each op after delegating to an underlying writer
type LoggingBatchWriter struct {
	writer BatchWriter
	level  zerolog.Level
}

func (w LoggingBatchWriter) Write(ctx context.Context, ops []store.Op) error {
	err := w.writer.Write(ctx, ops)
	for _, op := range ops {
		log.WithLevel(w.level).Str("collection", op.Collection).Str("id", op.ID).Int("fields", len(op.Fields)).Msg(op.Type.String())
	}
	return err
}

// NewDryRunBatchWriter constructs a writer that logs but doesn't write
func NewDryRunBatchWriter() BatchWriter {
	return LoggingBatchWriter{
		writer: DiscardingBatchWriter{},
		level:  zerolog.InfoLevel,
	}
}

// DiscardingBatchWriter does nothing but satisfy BatchWriter
type DiscardingBatchWriter struct{}

func (w DiscardingBatchWriter) Write(context.Context, []store.Op) error {
	return nil
}
