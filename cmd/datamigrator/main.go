package main

import (
	"github.com/joho/godotenv"
	"github.com/jzelinskie/cobrautil"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tallyworks/datamigrator/pkg/cmd/catalog"
	"github.com/tallyworks/datamigrator/pkg/cmd/export"
	"github.com/tallyworks/datamigrator/pkg/cmd/migrate"
	"github.com/tallyworks/datamigrator/pkg/signals"
	"github.com/tallyworks/datamigrator/pkg/streams"
)

func main() {
	// a missing .env is fine; flags and the environment still apply
	_ = godotenv.Load()

	s := streams.NewStdIO()
	ctx := signals.Context()
	rootCmd := &cobra.Command{
		Use:               "datamigrator",
		Short:             "Migrate relational export files into firestore and firebase auth",
		PersistentPreRunE: cobrautil.SyncViperPreRunE("datamigrator"),
		SilenceUsage:      true,
	}

	rootCmd.AddCommand(migrate.NewMigrateCmd(ctx, s))
	rootCmd.AddCommand(export.NewExportCmd(ctx, s))
	rootCmd.AddCommand(catalog.NewCatalogCmd(s))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("datamigrator failed")
	}
}
