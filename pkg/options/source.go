package options

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/tallyworks/datamigrator/pkg/source"
)

// DefaultImportDir is where export files are looked for
const DefaultImportDir = "./imports"

// SourceOptions selects where export files are read from: a local
// directory, or an S3-compatible bucket when a bucket name is set
type SourceOptions struct {
	ImportDir string
	Bucket    source.BucketConfig

	Locator source.Locator
}

// Complete builds the locator
func (o *SourceOptions) Complete() error {
	if o.Locator != nil {
		return nil
	}
	if o.Bucket.Bucket != "" {
		l, err := source.NewBucketLocator(o.Bucket)
		if err != nil {
			return err
		}
		log.Info().Str("endpoint", o.Bucket.Endpoint).Str("bucket", o.Bucket.Bucket).Str("prefix", o.Bucket.Prefix).Msg("reading exports from bucket")
		o.Locator = l
		return nil
	}

	if o.ImportDir == "" {
		o.ImportDir = DefaultImportDir
	}
	info, err := os.Stat(o.ImportDir)
	if err != nil {
		return fmt.Errorf("import dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("import dir %s is not a directory", o.ImportDir)
	}
	log.Info().Str("dir", o.ImportDir).Msg("reading exports from directory")
	o.Locator = source.NewDirLocator(o.ImportDir)
	return nil
}
