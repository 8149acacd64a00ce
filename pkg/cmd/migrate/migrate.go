package migrate

import (
	"context"
	"fmt"

	"github.com/jzelinskie/cobrautil"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tallyworks/datamigrator/pkg/accounts"
	"github.com/tallyworks/datamigrator/pkg/identity"
	"github.com/tallyworks/datamigrator/pkg/importer"
	"github.com/tallyworks/datamigrator/pkg/metrics"
	"github.com/tallyworks/datamigrator/pkg/options"
	"github.com/tallyworks/datamigrator/pkg/store"
	"github.com/tallyworks/datamigrator/pkg/streams"
	"github.com/tallyworks/datamigrator/pkg/util"
	"github.com/tallyworks/datamigrator/pkg/write"
)

// NewMigrateCmd configures a new cobra command that migrates export files
// into firestore and firebase auth
func NewMigrateCmd(ctx context.Context, streams streams.IO) *cobra.Command {
	o := NewOptions(streams)
	cmd := &cobra.Command{
		Use:     "migrate",
		Short:   "load export files into firestore and re-create user accounts in firebase auth",
		Example: "  datamigrator migrate --credentials=service-account.json --import-dir=./imports --dry-run",
		// logs to stderr so that stdout only contains the run summary
		PreRunE: util.ZeroLogPreRunEFunc(o.IO.ErrOut),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(ctx); err != nil {
				return err
			}
			return o.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&o.CredentialsFile, "credentials", "", "path to a service account json file (default $GOOGLE_APPLICATION_CREDENTIALS)")
	cmd.Flags().StringVar(&o.ProjectID, "project-id", "", "firebase project id, if not the one in the credentials")
	cmd.Flags().StringVar(&o.ImportDir, "import-dir", options.DefaultImportDir, "directory holding {table}-export*.csv files")
	cmd.Flags().StringVar(&o.Bucket.Endpoint, "bucket-endpoint", "", "S3-compatible endpoint to read exports from instead of --import-dir")
	cmd.Flags().StringVar(&o.Bucket.Region, "bucket-region", "", "bucket region")
	cmd.Flags().StringVar(&o.Bucket.Bucket, "bucket", "", "bucket holding export files")
	cmd.Flags().StringVar(&o.Bucket.Prefix, "bucket-prefix", "", "key prefix of export files in the bucket")
	cmd.Flags().StringVar(&o.Bucket.AccessKey, "bucket-access-key", "", "bucket access key")
	cmd.Flags().StringVar(&o.Bucket.SecretKey, "bucket-secret-key", "", "bucket secret key")
	cmd.Flags().BoolVar(&o.Bucket.UseSSL, "bucket-ssl", true, "use TLS for the bucket endpoint")
	cmd.Flags().StringVar(&o.CatalogFile, "catalog", "", "path to a yaml catalog replacing the built-in table list")
	cmd.Flags().StringSliceVar(&o.Skip, "skip", nil, "tables to leave out; naming an identity table skips account migration")
	cmd.Flags().BoolVar(&o.DryRun, "dry-run", false, "log documents and accounts that would be written without writing them")
	cmd.Flags().StringVar(&o.MatchStrategy, "match-strategy", identity.MatchIndex, "how existing accounts are found: index (list all up front) or lookup (per email)")
	cmd.Flags().IntVar(&o.LookupCacheSize, "lookup-cache-size", 4096, "accounts cached by the lookup match strategy")
	cmd.Flags().Float64Var(&o.AuthQPS, "auth-qps", 10, "maximum identity provider calls per second, 0 for no limit")
	cmd.Flags().BoolVar(&o.StageInserts, "stage-inserts", false, "insert new junction documents before deleting the old ones")
	cmd.Flags().StringVar(&o.SpiceDBEndpoint, "spicedb-endpoint", "", "mirror roles and project members to this SpiceDB endpoint")
	cmd.Flags().StringVar(&o.SpiceDBToken, "spicedb-token", "", "token for reading and writing to SpiceDB")
	cmd.Flags().BoolVar(&o.SpiceDBInsecure, "spicedb-insecure", false, "connect to SpiceDB without TLS")
	cmd.Flags().IntVar(&o.SpiceDBBatchSize, "spicedb-batch-size", 500, "relationships per SpiceDB write")
	cmd.Flags().StringVar(&o.MetricsAddr, "metrics-addr", "", "address that will serve prometheus data while the run lasts (e.g. :9090)")
	cobrautil.RegisterZeroLogFlags(cmd.Flags(), "log")

	return cmd
}

// Options holds options for the migrate command
type Options struct {
	streams.IO
	options.CredentialsOptions
	options.SourceOptions
	options.CatalogOptions
	options.SpiceDBOptions

	DryRun          bool
	MatchStrategy   string
	LookupCacheSize int
	AuthQPS         float64
	StageInserts    bool
	MetricsAddr     string

	// Store and Directory replace the firestore and firebase auth clients
	Store     store.Store
	Directory identity.Directory
}

// NewOptions returns initialized Options
func NewOptions(ioStreams streams.IO) *Options {
	return &Options{
		IO: ioStreams,
	}
}

// Complete fills out default values before running
func (o *Options) Complete(ctx context.Context) error {
	if o.Store == nil || o.Directory == nil {
		if err := o.CredentialsOptions.Complete(ctx); err != nil {
			return err
		}
	}
	if err := o.SourceOptions.Complete(); err != nil {
		return err
	}
	if err := o.CatalogOptions.Complete(); err != nil {
		return err
	}
	if err := o.SpiceDBOptions.Complete(o.DryRun); err != nil {
		return err
	}
	switch o.MatchStrategy {
	case "", identity.MatchIndex, identity.MatchLookup:
	default:
		return fmt.Errorf("unknown match strategy %q", o.MatchStrategy)
	}
	return nil
}

// Run runs the command configured by Options.
func (o *Options) Run(ctx context.Context) error {
	s := o.Store
	if s == nil {
		client, err := o.CredentialsOptions.Firestore(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
		s = store.NewFirestoreStore(client)
	}

	dir := o.Directory
	if dir == nil {
		client, err := o.CredentialsOptions.Auth(ctx)
		if err != nil {
			return err
		}
		dir = identity.NewFirebaseDirectory(client)
	}
	dir = identity.NewRateLimitedDirectory(dir, o.AuthQPS)
	if o.DryRun {
		dir = identity.NewDryRunDirectory(dir)
	}

	m := metrics.New()
	if o.MetricsAddr != "" {
		m.Serve(ctx, o.MetricsAddr)
	}

	writer := write.NewCollectionWriter(s, write.NewBatchWriter(s, m, o.DryRun))
	writer.StageInserts = o.StageInserts

	ids := o.Catalog.Identity
	migrator := accounts.NewMigrator(dir, writer, m, accounts.Options{
		Collections: accounts.Collections{
			Profiles:     ids.Profiles.CollectionName(),
			Roles:        ids.Roles.CollectionName(),
			ProjectLinks: ids.ProjectLinks.CollectionName(),
		},
		MatchStrategy:   o.MatchStrategy,
		LookupCacheSize: o.LookupCacheSize,
	})
	if mirror := o.SpiceDBOptions.Mirror(o.DryRun); mirror != nil {
		migrator.WithMirror(mirror)
	}

	imp := importer.NewCSVImporter(o.Catalog, o.Locator, writer, migrator, m)
	log.Info().Bool("dry_run", o.DryRun).Str("plan", imp.Describe()).Msg("starting migration")

	summary, err := imp.Import(ctx)
	if summary != nil {
		if rerr := summary.Render(o.Out); rerr != nil {
			log.Warn().Err(rerr).Msg("rendering summary")
		}
	}
	return err
}
