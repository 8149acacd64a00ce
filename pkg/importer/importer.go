package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tallyworks/datamigrator/pkg/accounts"
	"github.com/tallyworks/datamigrator/pkg/catalog"
	"github.com/tallyworks/datamigrator/pkg/decode"
	"github.com/tallyworks/datamigrator/pkg/metrics"
	"github.com/tallyworks/datamigrator/pkg/source"
	"github.com/tallyworks/datamigrator/pkg/write"
)

// Importer is an interface satisfied by anything that can run a migration
type Importer interface {
	Import(ctx context.Context) (*Summary, error)
}

// CSVImporter loads export files into the document store. It walks the
// catalog tables in order and then hands the identity tables to the account
// migrator.
type CSVImporter struct {
	catalog  *catalog.Catalog
	locator  source.Locator
	writer   *write.CollectionWriter
	migrator *accounts.Migrator
	metrics  *metrics.Metrics
	now      func() time.Time
}

var _ Importer = &CSVImporter{}

// NewCSVImporter returns a new importer. migrator may be nil, in which case
// the identity tables are not imported.
func NewCSVImporter(cat *catalog.Catalog, locator source.Locator, writer *write.CollectionWriter, migrator *accounts.Migrator, m *metrics.Metrics) *CSVImporter {
	return &CSVImporter{
		catalog:  cat,
		locator:  locator,
		writer:   writer,
		migrator: migrator,
		metrics:  m,
		now:      time.Now,
	}
}

// Import writes every enabled table, then migrates accounts. A failing table
// does not stop the tables after it; the returned error reports every
// failure once the run is over.
func (i *CSVImporter) Import(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString(), Started: i.now()}
	logger := log.With().Str("run", summary.RunID).Logger()
	ctx = logger.WithContext(ctx)

	for _, t := range i.catalog.Enabled() {
		if err := ctx.Err(); err != nil {
			summary.Finished = i.now()
			return summary, err
		}
		summary.Tables = append(summary.Tables, i.importTable(ctx, t))
	}

	if i.migrator != nil && i.catalog.Identity.Enabled {
		summary.Accounts = i.importAccounts(ctx, summary)
	}

	summary.Finished = i.now()
	logger.Info().EmbedObject(summary).Msg("import finished")
	return summary, summary.Err()
}

func (i *CSVImporter) importTable(ctx context.Context, t catalog.Table) TableResult {
	res, rows := i.readTable(ctx, t)
	if res.Status != "" {
		return res
	}

	logger := log.Ctx(ctx).With().Str("table", t.Name).Str("collection", res.Collection).Logger()
	logger.Info().Int("rows", res.Rows).Msg("writing documents")
	res.Written, res.Err = i.writer.Write(ctx, res.Collection, rows)
	i.metrics.ObserveWritten(res.Collection, res.Written)
	if res.Err != nil {
		res.Status = StatusFailed
		logger.Error().Err(res.Err).Int("written", res.Written).Msg("table failed")
		return res
	}
	res.Status = StatusWritten
	return res
}

// readTable locates and decodes the export for t. A non-empty status on the
// returned result means there is nothing to write.
func (i *CSVImporter) readTable(ctx context.Context, t catalog.Table) (TableResult, []decode.Row) {
	res := TableResult{Table: t.Name, Collection: t.CollectionName()}
	logger := log.Ctx(ctx).With().Str("table", t.Name).Logger()

	path, found, err := i.locator.Locate(ctx, t.Name)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		logger.Error().Err(err).Msg("locating export failed")
		return res, nil
	}
	if !found {
		res.Status = StatusMissing
		logger.Warn().Msg("no export file found, skipping")
		return res, nil
	}
	res.File = path

	content, err := source.ReadAll(ctx, i.locator, path)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		logger.Error().Err(err).Msg("reading export failed")
		return res, nil
	}

	decoded := decode.DecodeWithSchema(content, t.Columns)
	res.Rows = len(decoded.Rows)
	res.Warnings = decoded.Warnings
	i.metrics.ObserveDecode(t.Name, len(decoded.Rows), len(decoded.Warnings))
	for _, w := range decoded.Warnings {
		logger.Warn().Str("file", path).Msg(w.String())
	}
	if len(decoded.Rows) == 0 {
		res.Status = StatusEmpty
		logger.Info().Msg("export has no rows, skipping")
		return res, nil
	}
	return res, decoded.Rows
}

func (i *CSVImporter) importAccounts(ctx context.Context, summary *Summary) *accounts.Result {
	ids := i.catalog.Identity
	profiles, profileRows := i.readTable(ctx, ids.Profiles)
	roles, roleRows := i.readTable(ctx, ids.Roles)
	links, linkRows := i.readTable(ctx, ids.ProjectLinks)
	for _, res := range []*TableResult{&profiles, &roles, &links} {
		if res.Status == "" {
			res.Status = StatusRead
		}
		summary.Identity = append(summary.Identity, *res)
	}

	logger := log.Ctx(ctx)
	for _, res := range summary.Identity {
		if res.Status == StatusFailed {
			logger.Error().Str("table", res.Table).Msg("identity export unreadable, skipping account migration")
			return nil
		}
	}
	// without profiles every dependent row would be dropped and the junction
	// collection wiped
	if profiles.Status == StatusMissing {
		logger.Warn().Str("table", profiles.Table).Msg("no profile export, skipping account migration")
		return nil
	}

	result, err := i.migrator.Run(ctx, accounts.Input{
		Profiles:         profileRows,
		Roles:            roleRows,
		ProjectLinks:     linkRows,
		SkipProjectLinks: links.Status == StatusMissing,
	})
	if err != nil {
		logger.Error().Err(err).Msg("account migration stopped")
	}
	return result
}

// Describe returns a one-line description of what the importer will do
func (i *CSVImporter) Describe() string {
	tables := i.catalog.Enabled()
	if i.migrator != nil && i.catalog.Identity.Enabled {
		return fmt.Sprintf("%d tables, then accounts", len(tables))
	}
	return fmt.Sprintf("%d tables", len(tables))
}
