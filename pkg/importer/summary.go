package importer

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/tallyworks/datamigrator/pkg/accounts"
	"github.com/tallyworks/datamigrator/pkg/decode"
)

// TableStatus is what happened to one table
type TableStatus string

// Table statuses
const (
	StatusWritten TableStatus = "written"
	StatusMissing TableStatus = "missing"
	StatusEmpty   TableStatus = "empty"
	StatusFailed  TableStatus = "failed"
	// StatusRead marks an identity table handed to the account migrator
	StatusRead TableStatus = "read"
)

// TableResult is the outcome of importing one table
type TableResult struct {
	Table      string
	Collection string
	File       string
	Status     TableStatus
	Rows       int
	Written    int
	Warnings   []decode.Warning
	Err        error
}

// Summary is the outcome of a run
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	Tables   []TableResult
	Identity []TableResult
	Accounts *accounts.Result
}

// Err joins every fatal error of the run
func (s *Summary) Err() error {
	var errs []error
	for _, t := range append(append([]TableResult{}, s.Tables...), s.Identity...) {
		if t.Err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", t.Table, t.Err))
		}
	}
	if s.Accounts != nil {
		for _, p := range s.Accounts.Phases {
			if p.Err != nil {
				errs = append(errs, fmt.Errorf("phase %s: %w", p.Phase, p.Err))
			}
		}
	}
	return errors.Join(errs...)
}

// Written is the number of documents written across tables and phases
func (s *Summary) Written() int {
	n := 0
	for _, t := range s.Tables {
		n += t.Written
	}
	if s.Accounts != nil {
		for _, p := range s.Accounts.Phases {
			n += p.Written
		}
	}
	return n
}

// MarshalZerologObject satisfies the zerolog.LogObjectMarshaler interface
func (s *Summary) MarshalZerologObject(e *zerolog.Event) {
	counts := make(map[TableStatus]int)
	for _, t := range s.Tables {
		counts[t.Status]++
	}
	e.Int("tables", len(s.Tables))
	for _, status := range []TableStatus{StatusWritten, StatusMissing, StatusEmpty, StatusFailed} {
		e.Int("tables_"+string(status), counts[status])
	}
	e.Int("documents", s.Written())
	if s.Accounts != nil {
		e.Int("accounts_mapped", s.Accounts.Map.Len())
	}
	e.Dur("duration", s.Finished.Sub(s.Started))
}

// Render writes the summary as console tables
func (s *Summary) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s (%s)\n\n", s.RunID, s.Finished.Sub(s.Started).Round(time.Millisecond))

	fmt.Fprintln(tw, "TABLE\tCOLLECTION\tSTATUS\tROWS\tWRITTEN\tWARNINGS\tERROR")
	for _, t := range append(append([]TableResult{}, s.Tables...), s.Identity...) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", t.Table, t.Collection, t.Status, t.Rows, t.Written, len(t.Warnings), errText(t.Err))
	}

	if s.Accounts != nil {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "PHASE\tROWS\tCREATED\tMATCHED\tWRITTEN\tSKIPPED\tFAILED\tDROPPED\tDELETED\tERROR")
		for _, p := range s.Accounts.Phases {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
				p.Phase, p.Rows, p.Created, p.Matched, p.Written, p.Skipped, p.Failed, p.Dropped, p.Deleted, errText(p.Err))
		}
	}
	return tw.Flush()
}

func errText(err error) string {
	if err == nil {
		return "-"
	}
	return err.Error()
}
