package options

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"sigs.k8s.io/yaml"

	"github.com/tallyworks/datamigrator/pkg/catalog"
)

// CatalogPrinter renders a catalog
type CatalogPrinter func(c *catalog.Catalog) error

// DiscardCatalogPrinter prints nothing
func DiscardCatalogPrinter(*catalog.Catalog) error {
	return nil
}

var _ CatalogPrinter = DiscardCatalogPrinter

// JSONCatalogPrinter prints indented JSON to w
func JSONCatalogPrinter(w io.Writer) CatalogPrinter {
	return func(c *catalog.Catalog) error {
		catalogJSON, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(catalogJSON))
		return err
	}
}

// YAMLCatalogPrinter prints YAML to w
func YAMLCatalogPrinter(w io.Writer) CatalogPrinter {
	return func(c *catalog.Catalog) error {
		catalogYAML, err := yaml.Marshal(c)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(catalogYAML))
		return err
	}
}

// NewCatalogPrinter returns the printer for format, "yaml" or "json"
func NewCatalogPrinter(format string, w io.Writer) (CatalogPrinter, error) {
	switch format {
	case "", "yaml":
		return YAMLCatalogPrinter(w), nil
	case "json":
		return JSONCatalogPrinter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// CatalogOptions holds options for the table catalog
type CatalogOptions struct {
	CatalogFile string
	// Skip disables tables by name, identity tables included
	Skip []string

	Catalog *catalog.Catalog
}

// Complete loads the catalog file, or the built-in catalog when no file is
// set, and applies Skip
func (o *CatalogOptions) Complete() error {
	if o.Catalog == nil {
		if o.CatalogFile != "" {
			log.Info().Str("catalog", o.CatalogFile).Msg("loading table catalog from file")
			c, err := catalog.Load(o.CatalogFile)
			if err != nil {
				return err
			}
			o.Catalog = c
		} else {
			o.Catalog = catalog.Default()
		}
	}
	for _, name := range o.Skip {
		if !o.Catalog.Disable(name) {
			return fmt.Errorf("cannot skip unknown table %q", name)
		}
	}
	return o.Catalog.Validate()
}
