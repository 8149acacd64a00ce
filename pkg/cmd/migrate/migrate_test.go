package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallyworks/datamigrator/pkg/identity"
	"github.com/tallyworks/datamigrator/pkg/options"
	"github.com/tallyworks/datamigrator/pkg/store"
	"github.com/tallyworks/datamigrator/pkg/streams"
)

func exportDir(t *testing.T) string {
	dir := t.TempDir()
	files := map[string]string{
		"clients-export.csv":       "id;name\n1;Acme\n",
		"profiles-export.csv":      "user_id;email;full_name\nu1;A@X.com;Ann\n",
		"user_roles-export.csv":    "user_id;role\nu1;manager\n",
		"user_projects-export.csv": "user_id;project_id\nu1;p9\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestMigrate(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ioStreams, _, out, _ := streams.NewTestIO()
	s := store.NewMemoryStore(500)
	d := identity.NewMemoryDirectory()

	o := NewOptions(ioStreams)
	o.ImportDir = exportDir(t)
	o.Store = s
	o.Directory = d
	o.MatchStrategy = identity.MatchLookup
	require.NoError(o.Complete(ctx))
	require.NoError(o.Run(ctx))

	require.Len(s.Documents("clients"), 1)
	require.Len(d.Accounts(), 1)
	require.Len(s.Documents("user_roles"), 1)
	require.Contains(out.String(), "clients")
	require.Contains(out.String(), "profiles")
}

func TestMigrateDryRun(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ioStreams, _, _, _ := streams.NewTestIO()
	s := store.NewMemoryStore(500)
	d := identity.NewMemoryDirectory()

	o := NewOptions(ioStreams)
	o.ImportDir = exportDir(t)
	o.Store = s
	o.Directory = d
	o.DryRun = true
	o.SpiceDBEndpoint = "localhost:50051"
	require.NoError(o.Complete(ctx))
	require.NoError(o.Run(ctx))

	require.Empty(s.Documents("clients"))
	require.Empty(d.Accounts())
	require.Zero(s.Commits)
}

func TestMigrateRequiresCredentials(t *testing.T) {
	t.Setenv(options.CredentialsEnv, "")
	ioStreams, _, _, _ := streams.NewTestIO()
	o := NewOptions(ioStreams)
	o.ImportDir = t.TempDir()
	require.ErrorIs(t, o.Complete(context.Background()), options.ErrCredentialMissing)
}

func TestMigrateRejectsUnknownStrategy(t *testing.T) {
	ioStreams, _, _, _ := streams.NewTestIO()
	o := NewOptions(ioStreams)
	o.ImportDir = t.TempDir()
	o.Store = store.NewMemoryStore(0)
	o.Directory = identity.NewMemoryDirectory()
	o.MatchStrategy = "guess"
	require.Error(t, o.Complete(context.Background()))
}
