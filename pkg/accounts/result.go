package accounts

import "github.com/rs/zerolog"

// Status is the outcome of one source row
type Status string

// Row statuses. Skipped rows were never eligible, failed rows hit an
// identity-provider error, dropped rows referenced a user with no account.
const (
	StatusCreated Status = "created"
	StatusMatched Status = "matched"
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusDropped Status = "dropped"
)

// Phase names, in run order
const (
	PhaseProfiles     = "profiles"
	PhaseRoles        = "roles"
	PhaseProjectLinks = "project_links"
)

// Outcome is what happened to one source row
type Outcome struct {
	Row      int    `json:"row"`
	SourceID string `json:"source_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Status   Status `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// PhaseResult summarizes one phase
type PhaseResult struct {
	Phase    string
	Rows     int
	Created  int
	Matched  int
	Written  int
	Skipped  int
	Failed   int
	Dropped  int
	Deleted  int
	Outcomes []Outcome
	Err      error
}

func (p *PhaseResult) add(o Outcome) {
	p.Outcomes = append(p.Outcomes, o)
	switch o.Status {
	case StatusCreated:
		p.Created++
	case StatusMatched:
		p.Matched++
	case StatusSkipped:
		p.Skipped++
	case StatusFailed:
		p.Failed++
	case StatusDropped:
		p.Dropped++
	}
}

// Count returns how many outcomes had status s
func (p *PhaseResult) Count(s Status) int {
	n := 0
	for _, o := range p.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// MarshalZerologObject satisfies the zerolog.LogObjectMarshaler interface
func (p *PhaseResult) MarshalZerologObject(e *zerolog.Event) {
	e.Str("phase", p.Phase)
	e.Int("rows", p.Rows)
	e.Int("created", p.Created)
	e.Int("matched", p.Matched)
	e.Int("written", p.Written)
	e.Int("skipped", p.Skipped)
	e.Int("failed", p.Failed)
	e.Int("dropped", p.Dropped)
	if p.Deleted > 0 {
		e.Int("deleted", p.Deleted)
	}
}

// Result is the outcome of the three phases
type Result struct {
	Phases []*PhaseResult
	Map    *IdentityMap
}

// Err returns the first phase error
func (r *Result) Err() error {
	for _, p := range r.Phases {
		if p.Err != nil {
			return p.Err
		}
	}
	return nil
}
