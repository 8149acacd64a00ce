package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tallyworks/datamigrator/pkg/decode"
	"github.com/tallyworks/datamigrator/pkg/identity"
	"github.com/tallyworks/datamigrator/pkg/metrics"
	"github.com/tallyworks/datamigrator/pkg/store"
	"github.com/tallyworks/datamigrator/pkg/write"
)

// Source columns
const (
	colUserID      = "user_id"
	colLegacyID    = "id"
	colEmail       = "email"
	colFullName    = "full_name"
	colDisplayName = "display_name"
	colCreatedAt   = "created_at"
	colRole        = "role"
	colProjectID   = "project_id"
)

// DefaultRole is assigned when a role row has a blank role
const DefaultRole = "user"

// Collections names the destination collections for each phase
type Collections struct {
	Profiles     string
	Roles        string
	ProjectLinks string
}

// Options configures a Migrator
type Options struct {
	Collections Collections
	// MatchStrategy is identity.MatchIndex or identity.MatchLookup
	MatchStrategy string
	// LookupCacheSize bounds the cache used by the lookup strategy
	LookupCacheSize int
}

// Input holds the decoded source rows for the three phases
type Input struct {
	Profiles     []decode.Row
	Roles        []decode.Row
	ProjectLinks []decode.Row

	// SkipProjectLinks leaves the junction collection untouched. Set when
	// there was no junction export at all, as opposed to an empty one.
	SkipProjectLinks bool
}

// Mirror receives the resolved role and membership edges after they were
// written to the store
type Mirror interface {
	MirrorRoles(ctx context.Context, roles []RoleAssignment) error
	ReplaceProjectMembers(ctx context.Context, links []ProjectLink) error
}

// RoleAssignment is a resolved role row
type RoleAssignment struct {
	UserID string
	Role   string
}

// ProjectLink is a resolved junction row
type ProjectLink struct {
	UserID    string
	ProjectID string
}

// Migrator moves users into the identity provider and re-keys everything
// that referenced the old user ids
type Migrator struct {
	dir     identity.Directory
	writer  *write.CollectionWriter
	metrics *metrics.Metrics
	opts    Options

	mirror      Mirror
	newPassword func() (string, error)
	now         func() time.Time
}

// NewMigrator returns a migrator creating accounts in dir and writing
// documents through writer
func NewMigrator(dir identity.Directory, writer *write.CollectionWriter, m *metrics.Metrics, opts Options) *Migrator {
	return &Migrator{
		dir:         dir,
		writer:      writer,
		metrics:     m,
		opts:        opts,
		newPassword: identity.GeneratePassword,
		now:         time.Now,
	}
}

// WithMirror sets a mirror for role and membership edges
func (m *Migrator) WithMirror(mirror Mirror) *Migrator {
	m.mirror = mirror
	return m
}

// Run executes the profile, role and project link phases in order. Each
// phase finishes before the next starts; a phase error stops the run.
func (m *Migrator) Run(ctx context.Context, in Input) (*Result, error) {
	idmap := NewIdentityMap()
	result := &Result{Map: idmap}

	profiles := m.ImportProfiles(ctx, idmap, in.Profiles)
	result.Phases = append(result.Phases, profiles)
	if profiles.Err != nil {
		return result, profiles.Err
	}
	idmap.Freeze()

	roles := m.ImportRoles(ctx, idmap, in.Roles)
	result.Phases = append(result.Phases, roles)
	if roles.Err != nil {
		return result, roles.Err
	}

	if in.SkipProjectLinks {
		log.Warn().Str("collection", m.opts.Collections.ProjectLinks).Msg("no project link export, leaving collection as is")
		return result, nil
	}
	links := m.ImportProjectLinks(ctx, idmap, in.ProjectLinks)
	result.Phases = append(result.Phases, links)
	return result, links.Err
}

// ImportProfiles matches or creates an account for every profile row with
// an email, records it in idmap and writes a profile document keyed by the
// account id.
func (m *Migrator) ImportProfiles(ctx context.Context, idmap *IdentityMap, rows []decode.Row) *PhaseResult {
	res := &PhaseResult{Phase: PhaseProfiles, Rows: len(rows)}
	defer m.logPhase(res)

	matcher, err := identity.NewMatcher(ctx, m.opts.MatchStrategy, m.dir, m.opts.LookupCacheSize)
	if err != nil {
		res.Err = err
		return res
	}

	docs := make([]map[string]interface{}, 0, len(rows))
	keys := make([]string, 0, len(rows))
	for i, row := range rows {
		o, acct := m.importProfile(ctx, matcher, idmap, i+1, row)
		m.record(res, o)
		if acct.ID == "" {
			continue
		}
		fields, err := m.profileFields(ctx, row, acct.ID, o.Status)
		if err != nil {
			res.Err = fmt.Errorf("reading profile %s: %w", acct.ID, err)
			return res
		}
		keys = append(keys, acct.ID)
		docs = append(docs, fields)
	}

	res.Written, res.Err = m.writeKeyed(ctx, m.opts.Collections.Profiles, keys, docs)
	return res
}

func (m *Migrator) importProfile(ctx context.Context, matcher identity.Matcher, idmap *IdentityMap, n int, row decode.Row) (Outcome, identity.Account) {
	sourceID := sourceUserID(row)
	email := identity.NormalizeEmail(row.Text(colEmail))
	o := Outcome{Row: n, SourceID: sourceID, Email: email}

	if email == "" {
		o.Status, o.Reason = StatusSkipped, "missing email"
		return o, identity.Account{}
	}
	if sourceID == "" {
		o.Status, o.Reason = StatusSkipped, "missing user id"
		return o, identity.Account{}
	}
	if rec, ok := idmap.Lookup(sourceID); ok && rec.Email != email {
		o.Status, o.Reason = StatusFailed, fmt.Sprintf("%v: already mapped to %s", ErrDuplicateSource, rec.Email)
		log.Warn().Str("source_id", sourceID).Str("email", email).Msg("conflicting profile row, skipping")
		return o, identity.Account{}
	}

	acct, found, err := matcher.Match(ctx, email)
	if err != nil {
		o.Status, o.Reason = StatusFailed, fmt.Sprintf("matching account: %v", err)
		log.Warn().Err(err).Str("email", email).Msg("account lookup failed, skipping profile")
		return o, identity.Account{}
	}
	o.Status = StatusMatched
	if !found {
		acct, err = m.createAccount(ctx, email, displayName(row))
		if err != nil {
			o.Status, o.Reason = StatusFailed, err.Error()
			log.Warn().Err(err).Str("email", email).Msg("account creation failed, skipping profile")
			return o, identity.Account{}
		}
		matcher.Remember(acct)
		o.Status = StatusCreated
	}

	if err := idmap.Put(Record{SourceID: sourceID, DestID: acct.ID, Email: email, DisplayName: displayName(row)}); err != nil {
		o.Status, o.Reason = StatusFailed, err.Error()
		log.Warn().Err(err).Str("email", email).Msg("conflicting profile row, skipping")
		return o, identity.Account{}
	}
	return o, acct
}

func (m *Migrator) createAccount(ctx context.Context, email, name string) (identity.Account, error) {
	password, err := m.newPassword()
	if err != nil {
		return identity.Account{}, fmt.Errorf("generating password: %w", err)
	}
	return m.dir.Create(ctx, identity.NewAccount{Email: email, Password: password, DisplayName: name})
}

// profileFields builds the profile document. A blank source created_at
// falls back to the run time only when no profile document exists yet, so
// re-runs keep the first value.
func (m *Migrator) profileFields(ctx context.Context, row decode.Row, destID string, status Status) (map[string]interface{}, error) {
	fields := map[string]interface{}{
		colEmail:    identity.NormalizeEmail(row.Text(colEmail)),
		colFullName: displayName(row),
	}
	if row.Text(colCreatedAt) == "" && status == StatusMatched {
		exists, err := m.writer.Exists(ctx, m.opts.Collections.Profiles, destID)
		if err != nil {
			return nil, err
		}
		if exists {
			return fields, nil
		}
	}
	fields[colCreatedAt] = createdAt(row.Get(colCreatedAt), m.now)
	return fields, nil
}

// ImportRoles re-keys role rows through idmap and merge-upserts one role
// document per account. Rows for unknown users are dropped.
func (m *Migrator) ImportRoles(ctx context.Context, idmap *IdentityMap, rows []decode.Row) *PhaseResult {
	res := &PhaseResult{Phase: PhaseRoles, Rows: len(rows)}
	defer m.logPhase(res)

	roles := make([]RoleAssignment, 0, len(rows))
	for i, row := range rows {
		sourceID := row.Text(colUserID)
		o := Outcome{Row: i + 1, SourceID: sourceID}
		destID, ok := idmap.Resolve(sourceID)
		if sourceID == "" || !ok {
			o.Status, o.Reason = StatusDropped, "no account for source user"
			m.record(res, o)
			continue
		}
		role := row.Text(colRole)
		if role == "" {
			role = DefaultRole
		}
		o.Status = StatusWritten
		m.record(res, o)
		roles = append(roles, RoleAssignment{UserID: destID, Role: role})
	}

	keys := make([]string, 0, len(roles))
	docs := make([]map[string]interface{}, 0, len(roles))
	for _, r := range roles {
		keys = append(keys, r.UserID)
		docs = append(docs, map[string]interface{}{colUserID: r.UserID, colRole: r.Role})
	}
	res.Written, res.Err = m.writeKeyed(ctx, m.opts.Collections.Roles, keys, docs)
	if res.Err != nil || m.mirror == nil {
		return res
	}
	if err := m.mirror.MirrorRoles(ctx, roles); err != nil {
		res.Err = fmt.Errorf("mirroring roles: %w", err)
	}
	return res
}

// ImportProjectLinks replaces the whole junction collection with the rows
// that resolve through idmap and name a project.
func (m *Migrator) ImportProjectLinks(ctx context.Context, idmap *IdentityMap, rows []decode.Row) *PhaseResult {
	res := &PhaseResult{Phase: PhaseProjectLinks, Rows: len(rows)}
	defer m.logPhase(res)

	links := make([]ProjectLink, 0, len(rows))
	for i, row := range rows {
		sourceID := row.Text(colUserID)
		o := Outcome{Row: i + 1, SourceID: sourceID}
		destID, ok := idmap.Resolve(sourceID)
		projectID := row.Text(colProjectID)
		switch {
		case sourceID == "" || !ok:
			o.Status, o.Reason = StatusDropped, "no account for source user"
		case projectID == "":
			o.Status, o.Reason = StatusDropped, "missing project id"
		default:
			o.Status = StatusWritten
			links = append(links, ProjectLink{UserID: destID, ProjectID: projectID})
		}
		m.record(res, o)
	}

	docs := make([]map[string]interface{}, 0, len(links))
	for _, l := range links {
		docs = append(docs, map[string]interface{}{colUserID: l.UserID, colProjectID: l.ProjectID})
	}
	res.Deleted, res.Written, res.Err = m.writer.Replace(ctx, m.opts.Collections.ProjectLinks, docs)
	m.metrics.ObserveWritten(m.opts.Collections.ProjectLinks, res.Written)
	if res.Err != nil || m.mirror == nil {
		return res
	}
	if err := m.mirror.ReplaceProjectMembers(ctx, links); err != nil {
		res.Err = fmt.Errorf("mirroring project members: %w", err)
	}
	return res
}

func (m *Migrator) writeKeyed(ctx context.Context, collection string, keys []string, docs []map[string]interface{}) (int, error) {
	batch := make([]store.Document, 0, len(docs))
	for i := range docs {
		batch = append(batch, store.Document{ID: keys[i], Fields: docs[i]})
	}
	n, err := m.writer.WriteDocuments(ctx, collection, batch)
	m.metrics.ObserveWritten(collection, n)
	return n, err
}

func (m *Migrator) record(res *PhaseResult, o Outcome) {
	res.add(o)
	m.metrics.ObserveOutcome(res.Phase, string(o.Status))
	if o.Status == StatusDropped || o.Status == StatusSkipped {
		log.Debug().Str("phase", res.Phase).Int("row", o.Row).Str("source_id", o.SourceID).Str("reason", o.Reason).Msg(string(o.Status))
	}
}

func (m *Migrator) logPhase(res *PhaseResult) {
	if res.Err != nil {
		log.Error().Err(res.Err).EmbedObject(res).Msg("phase failed")
		return
	}
	log.Info().EmbedObject(res).Msg("phase complete")
}

func sourceUserID(row decode.Row) string {
	if id := row.Text(colUserID); id != "" {
		return id
	}
	return row.Text(colLegacyID)
}

func displayName(row decode.Row) string {
	if name := row.Text(colFullName); name != "" {
		return name
	}
	return row.Text(colDisplayName)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// createdAt keeps the source timestamp when there is one. Unparseable
// values are kept as text rather than replaced.
func createdAt(v decode.Value, now func() time.Time) interface{} {
	text := v.Text()
	if text == "" {
		return now().UTC()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC()
		}
	}
	return text
}
