package authz

import (
	"context"
	"regexp"
	"strings"

	v1 "github.com/authzed/authzed-go/proto/authzed/api/v1"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppendSchemaWriter appends a schema fragment to a spicedb schema
type AppendSchemaWriter interface {
	Write(context.Context, string) error
}

// NewSchemaAppendWriter returns a writer that logs the merged schema when
// dryRun is set, and writes it otherwise
func NewSchemaAppendWriter(client Client, dryRun bool) AppendSchemaWriter {
	if dryRun {
		return NewDryRunSchemaAppendWriter(client)
	}
	return NewStdSchemaAppendWriter(client)
}

// StdSchemaAppendWriter writes via an authzed client, no-frills.
type StdSchemaAppendWriter struct {
	client Client
}

// NewStdSchemaAppendWriter constructs a schema append writer that writes
// to client
func NewStdSchemaAppendWriter(client Client) *StdSchemaAppendWriter {
	return &StdSchemaAppendWriter{client: client}
}

func (w *StdSchemaAppendWriter) Write(ctx context.Context, schema string) error {
	existing, err := readSchema(ctx, w.client)
	if err != nil {
		return err
	}
	fullSchema, changed := appendSchema(existing, schema)
	if !changed {
		log.Info().Msg("schema already contains all definitions, skipping write")
		return nil
	}
	log.Info().Msg("writing schema")
	log.Debug().Str("schema", fullSchema).Send()
	_, err = w.client.WriteSchema(ctx, &v1.WriteSchemaRequest{Schema: fullSchema})
	return err
}

// DryRunSchemaAppendWriter prints what the schema would have been.
type DryRunSchemaAppendWriter struct {
	client Client
}

// NewDryRunSchemaAppendWriter constructs a new schema append writer that logs
// but doesn't write. If client is non-nil, it will attempt to read the existing
// schema from spicedb; otherwise it will assume the schema is empty.
func NewDryRunSchemaAppendWriter(client Client) *DryRunSchemaAppendWriter {
	return &DryRunSchemaAppendWriter{client: client}
}

func (w *DryRunSchemaAppendWriter) Write(ctx context.Context, schema string) error {
	existing := ""
	if w.client != nil {
		var err error
		if existing, err = readSchema(ctx, w.client); err != nil {
			return err
		}
	}
	fullSchema, _ := appendSchema(existing, schema)
	log.Info().Msg("schema write skipped")
	log.Debug().Str("schema", fullSchema).Send()
	return nil
}

func readSchema(ctx context.Context, client Client) (string, error) {
	resp, err := client.ReadSchema(ctx, &v1.ReadSchemaRequest{})
	if status.Code(err) == codes.NotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return resp.SchemaText, nil
}

var definitionName = regexp.MustCompile(`(?m)^\s*definition\s+([a-z][a-z0-9_/]*)`)

// appendSchema adds the definitions of fragment that initial does not
// already define. Existing definitions are left as they are.
func appendSchema(initial, fragment string) (string, bool) {
	defined := make(map[string]struct{})
	for _, m := range definitionName.FindAllStringSubmatch(initial, -1) {
		defined[m[1]] = struct{}{}
	}

	var b strings.Builder
	b.WriteString(initial)
	changed := false
	for _, block := range splitDefinitions(fragment) {
		m := definitionName.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		if _, ok := defined[m[1]]; ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(block))
		changed = true
	}
	return b.String(), changed
}

func splitDefinitions(fragment string) []string {
	locs := definitionName.FindAllStringIndex(fragment, -1)
	blocks := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(fragment)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, fragment[loc[0]:end])
	}
	return blocks
}
