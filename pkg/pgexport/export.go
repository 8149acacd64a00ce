package pgexport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgproto3/v2"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"

	"github.com/tallyworks/datamigrator/pkg/source"
)

// Separator is the field separator of export files
const Separator = ';'

// TimestampLayout is the UTC timestamp embedded in export file names
const TimestampLayout = "20060102T150405Z"

// File is one written export
type File struct {
	Table string
	Path  string
	Rows  int
}

// Exporter dumps postgres tables into export files that the importer reads
type Exporter struct {
	conn   Querier
	dir    string
	schema string
	now    func() time.Time
}

// NewExporter returns an exporter writing into dir
func NewExporter(conn Querier, dir, schema string) *Exporter {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Exporter{conn: conn, dir: dir, schema: schema, now: time.Now}
}

// FileName returns the export file name for table at t
func FileName(table string, t time.Time) string {
	return table + "-export-" + t.UTC().Format(TimestampLayout) + source.Extension
}

// Export writes one file per table. Every table must exist before anything
// is written.
func (e *Exporter) Export(ctx context.Context, tables []string) ([]File, error) {
	synced, err := SyncTables(ctx, e.conn, e.schema, tables)
	if err != nil {
		return nil, logPgError(err)
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, err
	}

	stamp := e.now()
	files := make([]File, 0, len(synced))
	for _, t := range synced {
		f, err := e.exportTable(ctx, t, stamp)
		if err != nil {
			return files, fmt.Errorf("exporting %s: %w", t.Name, logPgError(err))
		}
		log.Info().Str("table", f.Table).Str("file", f.Path).Int("rows", f.Rows).Msg("exported table")
		files = append(files, f)
	}
	return files, nil
}

func (e *Exporter) exportTable(ctx context.Context, t Table, stamp time.Time) (File, error) {
	file := File{Table: t.Name, Path: filepath.Join(e.dir, FileName(t.Name, stamp))}

	tmp, err := os.CreateTemp(e.dir, "."+t.Name+"-*.tmp")
	if err != nil {
		return file, err
	}
	defer os.Remove(tmp.Name())

	// simple protocol returns every value in postgres' text format
	rows, err := e.conn.Query(ctx, selectAll(e.schema, t), pgx.QuerySimpleProtocol(true))
	if err != nil {
		tmp.Close()
		return file, err
	}
	file.Rows, err = WriteRows(tmp, rows)
	if err != nil {
		tmp.Close()
		return file, err
	}
	if err := tmp.Close(); err != nil {
		return file, err
	}
	return file, os.Rename(tmp.Name(), file.Path)
}

func selectAll(schema string, t Table) string {
	query := "SELECT * FROM " + pgx.Identifier{schema, t.Name}.Sanitize()
	if len(t.PrimaryKeys) > 0 {
		cols := make([]string, 0, len(t.PrimaryKeys))
		for _, pk := range t.PrimaryKeys {
			cols = append(cols, pgx.Identifier{pk}.Sanitize())
		}
		query += " ORDER BY " + strings.Join(cols, ", ")
	}
	return query
}

// WriteRows writes a header line and one line per row to w and closes rows.
// Values must be in text format. NULL becomes an empty field.
func WriteRows(w io.Writer, rows pgx.Rows) (int, error) {
	defer rows.Close()

	out := csv.NewWriter(w)
	out.Comma = Separator

	fields := rows.FieldDescriptions()
	if err := out.Write(header(fields)); err != nil {
		return 0, err
	}

	n := 0
	record := make([]string, len(fields))
	for rows.Next() {
		for i, raw := range rows.RawValues() {
			record[i] = formatValue(fields[i], raw)
		}
		if err := out.Write(record); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	out.Flush()
	return n, out.Error()
}

func header(fields []pgproto3.FieldDescription) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, string(f.Name))
	}
	return names
}

// formatValue renders a text-format value the way the importer coerces it
func formatValue(f pgproto3.FieldDescription, raw []byte) string {
	if raw == nil {
		return ""
	}
	if f.DataTypeOID == pgtype.BoolOID {
		switch string(raw) {
		case "t":
			return "true"
		case "f":
			return "false"
		}
	}
	return string(raw)
}

func logPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		log.Error().
			Str("code", pgErr.Code).
			Str("severity", pgErr.Severity).
			Str("detail", pgErr.Detail).
			Str("table", pgErr.TableName).
			Msg(pgErr.Message)
	}
	return err
}
