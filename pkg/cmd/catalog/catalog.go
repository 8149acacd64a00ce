package catalog

import (
	"github.com/jzelinskie/cobrautil"
	"github.com/spf13/cobra"

	"github.com/tallyworks/datamigrator/pkg/options"
	"github.com/tallyworks/datamigrator/pkg/streams"
	"github.com/tallyworks/datamigrator/pkg/util"
)

// NewCatalogCmd configures a new cobra command that prints the effective
// table catalog
func NewCatalogCmd(streams streams.IO) *cobra.Command {
	o := NewOptions(streams)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "print the table catalog a migration would use, as a starting point for --catalog",
		// logs to stderr so that stdout only contains the catalog
		PreRunE: util.ZeroLogPreRunEFunc(o.IO.ErrOut),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(); err != nil {
				return err
			}
			return o.Run()
		},
	}
	cmd.Flags().StringVar(&o.CatalogFile, "catalog", "", "path to a yaml catalog replacing the built-in table list")
	cmd.Flags().StringSliceVar(&o.Skip, "skip", nil, "tables to mark disabled")
	cmd.Flags().StringVarP(&o.Output, "output", "o", "yaml", "output format: yaml or json")
	cobrautil.RegisterZeroLogFlags(cmd.Flags(), "log")

	return cmd
}

// Options holds options for the catalog command
type Options struct {
	streams.IO
	options.CatalogOptions

	Output string

	printer options.CatalogPrinter
}

// NewOptions returns initialized Options
func NewOptions(ioStreams streams.IO) *Options {
	return &Options{
		IO: ioStreams,
	}
}

// Complete fills out default values before running
func (o *Options) Complete() error {
	if err := o.CatalogOptions.Complete(); err != nil {
		return err
	}
	printer, err := options.NewCatalogPrinter(o.Output, o.Out)
	if err != nil {
		return err
	}
	o.printer = printer
	return nil
}

// Run prints the catalog
func (o *Options) Run() error {
	return o.printer(o.Catalog)
}
