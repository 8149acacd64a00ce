package authz

import (
	"context"

	v1 "github.com/authzed/authzed-go/proto/authzed/api/v1"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
)

// DefaultBatchSize is the number of updates sent per WriteRelationships call
const DefaultBatchSize = 500

// Client is the subset of *authzed.Client the mirror uses
type Client interface {
	WriteRelationships(ctx context.Context, in *v1.WriteRelationshipsRequest, opts ...grpc.CallOption) (*v1.WriteRelationshipsResponse, error)
	DeleteRelationships(ctx context.Context, in *v1.DeleteRelationshipsRequest, opts ...grpc.CallOption) (*v1.DeleteRelationshipsResponse, error)
	ReadSchema(ctx context.Context, in *v1.ReadSchemaRequest, opts ...grpc.CallOption) (*v1.ReadSchemaResponse, error)
	WriteSchema(ctx context.Context, in *v1.WriteSchemaRequest, opts ...grpc.CallOption) (*v1.WriteSchemaResponse, error)
}

// RelationshipWriter writes v1 relationship updates and deletes by filter
type RelationshipWriter interface {
	Write(context.Context, []*v1.RelationshipUpdate) error
	Delete(context.Context, *v1.RelationshipFilter) error
}

// NewRelationshipWriter returns a relationship writer based on the current
// config. It will configure trace logging if the current log level is trace,
// and will dry-run if no client is passed. Writes are sent in batches of
// batchSize.
func NewRelationshipWriter(client Client, batchSize int) RelationshipWriter {
	if client == nil {
		return NewDryRunRelationshipWriter()
	}
	var w RelationshipWriter = StdRelationshipWriter{client: client}
	if zerolog.GlobalLevel() == zerolog.TraceLevel {
		w = LoggingRelationshipWriter{writer: w, level: zerolog.TraceLevel}
	}
	return NewBatchingRelationshipWriter(w, batchSize)
}

// StdRelationshipWriter writes via an authzed client, no-frills.
type StdRelationshipWriter struct {
	client Client
}

func (w StdRelationshipWriter) Write(ctx context.Context, updates []*v1.RelationshipUpdate) error {
	_, err := w.client.WriteRelationships(ctx, &v1.WriteRelationshipsRequest{Updates: updates})
	return err
}

func (w StdRelationshipWriter) Delete(ctx context.Context, filter *v1.RelationshipFilter) error {
	_, err := w.client.DeleteRelationships(ctx, &v1.DeleteRelationshipsRequest{RelationshipFilter: filter})
	return err
}

// BatchingRelationshipWriter writes in batches of batchSize
type BatchingRelationshipWriter struct {
	writer    RelationshipWriter
	batchSize int
}

// NewBatchingRelationshipWriter will write relationships in batches of size
// batchSize
func NewBatchingRelationshipWriter(writer RelationshipWriter, batchSize int) RelationshipWriter {
	if batchSize <= 0 {
		return writer
	}
	return BatchingRelationshipWriter{
		writer:    writer,
		batchSize: batchSize,
	}
}

func (w BatchingRelationshipWriter) Write(ctx context.Context, updates []*v1.RelationshipUpdate) error {
	for start := 0; start < len(updates); start += w.batchSize {
		end := start + w.batchSize
		if end > len(updates) {
			end = len(updates)
		}
		if err := w.writer.Write(ctx, updates[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w BatchingRelationshipWriter) Delete(ctx context.Context, filter *v1.RelationshipFilter) error {
	return w.writer.Delete(ctx, filter)
}

// LoggingRelationshipWriter will log each write before delegating to an
// underlying RelationshipWriter
type LoggingRelationshipWriter struct {
	writer RelationshipWriter
	level  zerolog.Level
}

func (w LoggingRelationshipWriter) Write(ctx context.Context, updates []*v1.RelationshipUpdate) error {
	err := w.writer.Write(ctx, updates)
	for _, u := range updates {
		log.WithLevel(w.level).Str("rel", RelString(u.Relationship)).Msg(u.Operation.String())
	}
	return err
}

func (w LoggingRelationshipWriter) Delete(ctx context.Context, filter *v1.RelationshipFilter) error {
	err := w.writer.Delete(ctx, filter)
	log.WithLevel(w.level).Str("resource_type", filter.ResourceType).Str("relation", filter.OptionalRelation).Msg("DELETE_BY_FILTER")
	return err
}

// NewDryRunRelationshipWriter constructs a new relationship writer that logs
// but doesn't write.
func NewDryRunRelationshipWriter() RelationshipWriter {
	return LoggingRelationshipWriter{
		writer: DiscardingRelationshipWriter{},
		level:  zerolog.InfoLevel,
	}
}

// DiscardingRelationshipWriter does nothing but satisfy RelationshipWriter
type DiscardingRelationshipWriter struct{}

func (DiscardingRelationshipWriter) Write(context.Context, []*v1.RelationshipUpdate) error {
	return nil
}

func (DiscardingRelationshipWriter) Delete(context.Context, *v1.RelationshipFilter) error {
	return nil
}
