package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/tallyworks/datamigrator/pkg/decode"
)

// Catalog is the ordered list of tables to import. Tables referenced by other
// tables come first; nothing enforces this beyond list order.
type Catalog struct {
	Tables   []Table        `json:"tables"`
	Identity IdentityTables `json:"identity"`
}

// Table describes one source table and the collection it is written to
type Table struct {
	Name       string        `json:"name"`
	Enabled    bool          `json:"enabled"`
	Collection string        `json:"collection,omitempty"`
	Columns    decode.Schema `json:"columns,omitempty"`
}

// UnmarshalJSON defaults Enabled to true when the field is omitted
func (t *Table) UnmarshalJSON(data []byte) error {
	type plain Table
	p := plain{Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Table(p)
	return nil
}

// CollectionName returns the destination collection, defaulting to the
// table name
func (t Table) CollectionName() string {
	if t.Collection != "" {
		return t.Collection
	}
	return t.Name
}

// IdentityTables names the source tables that hold user data. They are
// imported by the account migrator after all catalog tables, in this order.
type IdentityTables struct {
	Enabled      bool  `json:"enabled"`
	Profiles     Table `json:"profiles"`
	Roles        Table `json:"roles"`
	ProjectLinks Table `json:"project_links"`
}

// Enabled returns the enabled tables in catalog order
func (c *Catalog) Enabled() []Table {
	tables := make([]Table, 0, len(c.Tables))
	for _, t := range c.Tables {
		if t.Enabled {
			tables = append(tables, t)
		}
	}
	return tables
}

// Lookup finds a catalog or identity table by name
func (c *Catalog) Lookup(name string) (Table, bool) {
	for _, t := range c.All() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Disable turns off the named table. Naming any identity table turns off
// the whole account migration, since its phases depend on each other.
// It reports whether the name was known.
func (c *Catalog) Disable(name string) bool {
	if name == "" {
		return false
	}
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			c.Tables[i].Enabled = false
			return true
		}
	}
	switch name {
	case c.Identity.Profiles.Name, c.Identity.Roles.Name, c.Identity.ProjectLinks.Name:
		c.Identity.Enabled = false
		return true
	}
	return false
}

// All returns every table the catalog knows about, identity tables last
func (c *Catalog) All() []Table {
	all := make([]Table, 0, len(c.Tables)+3)
	all = append(all, c.Tables...)
	all = append(all, c.Identity.Profiles, c.Identity.Roles, c.Identity.ProjectLinks)
	return all
}

// Validate checks that names are present and unique
func (c *Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c.Tables)+3)
	for _, t := range c.All() {
		if t.Name == "" {
			return fmt.Errorf("catalog entry without a table name")
		}
		if _, ok := seen[t.Name]; ok {
			return fmt.Errorf("table %q listed more than once", t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// Load reads a catalog from a YAML or JSON file
func Load(path string) (*Catalog, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Marshal renders the catalog as YAML
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
