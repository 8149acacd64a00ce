package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMemoryStoreMerge(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore(10)

	require.NoError(s.Commit(ctx, []Op{Set("clients", "1", map[string]interface{}{"name": "Acme", "tier": "gold"})}))
	require.NoError(s.Commit(ctx, []Op{Set("clients", "1", map[string]interface{}{"name": "Acme Corp"})}))

	doc, found, err := s.Get(ctx, "clients", "1")
	require.NoError(err)
	require.True(found)
	require.Equal(map[string]interface{}{"name": "Acme Corp", "tier": "gold"}, doc.Fields)

	_, found, err = s.Get(ctx, "clients", "2")
	require.NoError(err)
	require.False(found)

	docs, err := s.Query(ctx, "clients", "tier", "gold")
	require.NoError(err)
	require.Len(docs, 1)
	require.Equal("1", docs[0].ID)

	require.NoError(s.Commit(ctx, []Op{Delete("clients", "1")}))
	ids, err := s.ListIDs(ctx, "clients")
	require.NoError(err)
	require.Empty(ids)
}

func TestMemoryStoreBatchLimit(t *testing.T) {
	s := NewMemoryStore(2)
	err := s.Commit(context.Background(), []Op{
		Set("c", "1", nil), Set("c", "2", nil), Set("c", "3", nil),
	})
	require.ErrorIs(t, err, ErrBatchTooLarge)
	require.Empty(t, s.Documents("c"))
}

func TestMemoryStoreFailedCommitIsAtomic(t *testing.T) {
	s := NewMemoryStore(10)
	s.FailCommit = func([]Op) error { return errors.New("boom") }
	err := s.Commit(context.Background(), []Op{Set("c", "1", nil), Set("c", "2", nil)})
	require.Error(t, err)
	require.Empty(t, s.Documents("c"))
	require.Zero(t, s.Commits)
}

func TestIsTransient(t *testing.T) {
	require.True(t, IsTransient(status.Error(codes.Unavailable, "down")))
	require.True(t, IsTransient(status.Error(codes.Aborted, "contention")))
	require.False(t, IsTransient(status.Error(codes.PermissionDenied, "no")))
	require.False(t, IsTransient(errors.New("plain")))
}
