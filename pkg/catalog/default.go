package catalog

import "github.com/tallyworks/datamigrator/pkg/decode"

// Default returns the built-in catalog. Order matters: clients before
// projects, projects before anything that points at a project.
func Default() *Catalog {
	return &Catalog{
		Tables: []Table{
			{Name: "clients", Enabled: true},
			{Name: "projects", Enabled: true},
			{Name: "project_phases", Enabled: true},
			{Name: "tasks", Enabled: true},
			{Name: "time_entries", Enabled: true},
			{Name: "invoices", Enabled: true, Columns: decode.Schema{"invoice_number": decode.ColumnString}},
			{Name: "invoice_items", Enabled: true},
			{Name: "documents", Enabled: true},
			// audit history stays in the old system
			{Name: "activity_log", Enabled: false},
		},
		Identity: IdentityTables{
			Enabled: true,
			Profiles: Table{
				Name:       "profiles",
				Enabled:    true,
				Collection: "profiles",
				Columns:    decode.Schema{"user_id": decode.ColumnString, "id": decode.ColumnString},
			},
			Roles: Table{
				Name:       "user_roles",
				Enabled:    true,
				Collection: "user_roles",
				Columns:    decode.Schema{"user_id": decode.ColumnString},
			},
			ProjectLinks: Table{
				Name:       "user_projects",
				Enabled:    true,
				Collection: "user_projects",
				Columns:    decode.Schema{"user_id": decode.ColumnString, "project_id": decode.ColumnString},
			},
		},
	}
}
