package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallyworks/datamigrator/pkg/decode"
	"github.com/tallyworks/datamigrator/pkg/identity"
	"github.com/tallyworks/datamigrator/pkg/store"
	"github.com/tallyworks/datamigrator/pkg/write"
)

var testCollections = Collections{
	Profiles:     "profiles",
	Roles:        "user_roles",
	ProjectLinks: "user_projects",
}

func newTestMigrator(s *store.MemoryStore, dir identity.Directory, strategy string) *Migrator {
	w := write.NewCollectionWriter(s, write.NewChunkingBatchWriter(write.NewStdBatchWriter(s, nil), s.MaxBatchSize()))
	m := NewMigrator(dir, w, nil, Options{Collections: testCollections, MatchStrategy: strategy, LookupCacheSize: 8})
	m.newPassword = func() (string, error) { return "secret", nil }
	m.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return m
}

type recordingMirror struct {
	roles []RoleAssignment
	links [][]ProjectLink
	err   error
}

func (r *recordingMirror) MirrorRoles(_ context.Context, roles []RoleAssignment) error {
	r.roles = append(r.roles, roles...)
	return r.err
}

func (r *recordingMirror) ReplaceProjectMembers(_ context.Context, links []ProjectLink) error {
	r.links = append(r.links, links)
	return r.err
}

func TestRunEndToEnd(t *testing.T) {
	for _, strategy := range []string{identity.MatchIndex, identity.MatchLookup} {
		t.Run(strategy, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()
			s := store.NewMemoryStore(500)
			dir := identity.NewMemoryDirectory()
			mirror := &recordingMirror{}
			m := newTestMigrator(s, dir, strategy).WithMirror(mirror)

			res, err := m.Run(ctx, Input{
				Profiles:     decode.Decode("user_id;email;full_name\nu1;A@X.com;Ann\n"),
				Roles:        decode.Decode("user_id;role\nu1;manager\n"),
				ProjectLinks: decode.Decode("user_id;project_id\nu1;p9\n"),
			})
			require.NoError(err)
			require.NoError(res.Err())
			require.Len(res.Phases, 3)
			require.True(res.Map.Frozen())

			accounts := dir.Accounts()
			require.Len(accounts, 1)
			acct := accounts[0]
			require.Equal("a@x.com", acct.Email)
			require.Equal("Ann", acct.DisplayName)

			destID, ok := res.Map.Resolve("u1")
			require.True(ok)
			require.Equal(acct.ID, destID)

			profiles := s.Documents("profiles")
			require.Len(profiles, 1)
			require.Equal(acct.ID, profiles[0].ID)
			require.Equal("a@x.com", profiles[0].Fields["email"])
			require.Equal("Ann", profiles[0].Fields["full_name"])

			roles := s.Documents("user_roles")
			require.Len(roles, 1)
			require.Equal(acct.ID, roles[0].ID)
			require.Equal("manager", roles[0].Fields["role"])
			require.Equal(acct.ID, roles[0].Fields["user_id"])

			links := s.Documents("user_projects")
			require.Len(links, 1)
			require.Equal(map[string]interface{}{"user_id": acct.ID, "project_id": "p9"}, links[0].Fields)

			require.Equal([]RoleAssignment{{UserID: acct.ID, Role: "manager"}}, mirror.roles)
			require.Equal([][]ProjectLink{{{UserID: acct.ID, ProjectID: "p9"}}}, mirror.links)
		})
	}
}

func TestRolesDropUnknownUsers(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := store.NewMemoryStore(500)
	m := newTestMigrator(s, identity.NewMemoryDirectory(), identity.MatchIndex)

	res, err := m.Run(ctx, Input{
		Profiles: decode.Decode("user_id;email;full_name\nu1;a@x.com;Ann\n"),
		Roles:    decode.Decode("user_id;role\nu404;admin\nu1;\n"),
	})
	require.NoError(err)

	roles := res.Phases[1]
	require.Equal(PhaseRoles, roles.Phase)
	require.Equal(1, roles.Dropped)
	require.Equal(1, roles.Written)
	require.Equal(StatusDropped, roles.Outcomes[0].Status)
	require.Equal("u404", roles.Outcomes[0].SourceID)

	docs := s.Documents("user_roles")
	require.Len(docs, 1)
	require.Equal(DefaultRole, docs[0].Fields["role"])
}

func TestProfilesSkipAndMatch(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := store.NewMemoryStore(500)
	dir := identity.NewMemoryDirectory(identity.Account{ID: "existing", Email: "Bob@Example.com"})
	m := newTestMigrator(s, dir, identity.MatchIndex)

	idmap := NewIdentityMap()
	res := m.ImportProfiles(ctx, idmap, decode.Decode(
		"user_id;email;full_name;created_at\n"+
			"u1;;No Mail;\n"+
			"u2;bob@example.com;Bob;2023-05-01T10:00:00Z\n"+
			";c@x.com;Nobody;\n"+
			"u3;c@x.com;Cat;someday\n"))
	require.NoError(res.Err)
	require.Equal(4, res.Rows)
	require.Equal(2, res.Skipped)
	require.Equal(1, res.Matched)
	require.Equal(1, res.Created)
	require.Zero(res.Failed)
	require.Equal(2, res.Written)
	require.Equal(1, dir.Created)

	id, ok := idmap.Resolve("u2")
	require.True(ok)
	require.Equal("existing", id)

	doc, ok, err := s.Get(ctx, "profiles", "existing")
	require.NoError(err)
	require.True(ok)
	require.Equal(time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC), doc.Fields["created_at"])

	catID, _ := idmap.Resolve("u3")
	doc, _, err = s.Get(ctx, "profiles", catID)
	require.NoError(err)
	require.Equal("someday", doc.Fields["created_at"])
}

func TestProfilesCreateFailureIsPerRow(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := store.NewMemoryStore(500)
	dir := identity.NewMemoryDirectory()
	dir.FailCreate = func(a identity.NewAccount) error {
		if a.Email == "bad@x.com" {
			return errors.New("invalid email")
		}
		return nil
	}
	m := newTestMigrator(s, dir, identity.MatchLookup)

	idmap := NewIdentityMap()
	res := m.ImportProfiles(ctx, idmap, decode.Decode("user_id;email\nu1;bad@x.com\nu2;good@x.com\n"))
	require.NoError(res.Err)
	require.Equal(1, res.Failed)
	require.Equal(1, res.Created)
	require.Equal(1, idmap.Len())
	_, ok := idmap.Resolve("u1")
	require.False(ok)
	require.Len(s.Documents("profiles"), 1)
}

func TestCreateFailureDropsDependentRows(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := store.NewMemoryStore(500)
	dir := identity.NewMemoryDirectory()
	dir.FailCreate = func(a identity.NewAccount) error {
		if a.Email == "bad@x.com" {
			return errors.New("invalid email")
		}
		return nil
	}
	m := newTestMigrator(s, dir, identity.MatchIndex)

	res, err := m.Run(ctx, Input{
		Profiles:     decode.Decode("user_id;email\nu1;bad@x.com\nu2;good@x.com\n"),
		Roles:        decode.Decode("user_id;role\nu1;admin\nu2;user\n"),
		ProjectLinks: decode.Decode("user_id;project_id\nu1;p1\nu2;p1\n"),
	})
	require.NoError(err)
	require.Len(res.Phases, 3)
	require.Equal(1, res.Phases[0].Failed)

	for _, phase := range res.Phases[1:] {
		require.Equal(1, phase.Dropped, phase.Phase)
		require.Equal(1, phase.Written, phase.Phase)
		require.Equal(StatusDropped, phase.Outcomes[0].Status)
		require.Equal("u1", phase.Outcomes[0].SourceID)
	}
	require.Len(s.Documents("user_roles"), 1)
	require.Len(s.Documents("user_projects"), 1)
}

func TestConflictingSourceIDCreatesNoAccount(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := store.NewMemoryStore(500)
	dir := identity.NewMemoryDirectory()
	m := newTestMigrator(s, dir, identity.MatchLookup)

	idmap := NewIdentityMap()
	res := m.ImportProfiles(ctx, idmap, decode.Decode("user_id;email\nu1;a@x.com\nu1;other@x.com\nu1;A@x.com\n"))
	require.NoError(res.Err)
	require.Equal(1, res.Created)
	require.Equal(1, res.Matched)
	require.Equal(1, res.Failed)
	require.Equal(StatusFailed, res.Outcomes[1].Status)
	require.Contains(res.Outcomes[1].Reason, ErrDuplicateSource.Error())

	require.Equal(1, dir.Created)
	require.Len(dir.Accounts(), 1)
	require.Equal(1, idmap.Len())
}

func TestRerunKeepsCreatedAt(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := store.NewMemoryStore(500)
	dir := identity.NewMemoryDirectory(identity.Account{ID: "existing", Email: "bob@x.com"})
	in := Input{Profiles: decode.Decode("user_id;email;created_at\nu1;a@x.com;\nu2;bob@x.com;\n")}

	first := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := newTestMigrator(s, dir, identity.MatchIndex).Run(ctx, in)
	require.NoError(err)

	// a matched account without a profile document still gets one
	doc, ok, err := s.Get(ctx, "profiles", "existing")
	require.NoError(err)
	require.True(ok)
	require.Equal(first, doc.Fields["created_at"])

	later := newTestMigrator(s, dir, identity.MatchIndex)
	later.now = func() time.Time { return first.Add(48 * time.Hour) }
	res, err := later.Run(ctx, in)
	require.NoError(err)
	require.Equal(2, res.Phases[0].Matched)

	for _, doc := range s.Documents("profiles") {
		require.Equal(first, doc.Fields["created_at"], doc.ID)
	}
}

func TestRerunMatchesInsteadOfCreating(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := store.NewMemoryStore(500)
	dir := identity.NewMemoryDirectory()
	in := Input{
		Profiles:     decode.Decode("user_id;email;full_name\nu1;a@x.com;Ann\nu2;b@x.com;Ben\n"),
		Roles:        decode.Decode("user_id;role\nu1;admin\nu2;user\n"),
		ProjectLinks: decode.Decode("user_id;project_id\nu1;p1\nu1;p2\nu2;p1\nu404;p1\nu2;\n"),
	}

	var first map[string]string
	for run := 0; run < 3; run++ {
		res, err := newTestMigrator(s, dir, identity.MatchIndex).Run(ctx, in)
		require.NoError(err)
		if run == 0 {
			first = res.Map.Pairs()
			require.Equal(2, res.Phases[0].Created)
		} else {
			require.Equal(first, res.Map.Pairs())
			require.Zero(res.Phases[0].Created)
			require.Equal(2, res.Phases[0].Matched)
			require.Equal(3, res.Phases[2].Deleted)
		}
		links := res.Phases[2]
		require.Equal(3, links.Written)
		require.Equal(2, links.Dropped)

		require.Len(dir.Accounts(), 2)
		require.Len(s.Documents("profiles"), 2)
		require.Len(s.Documents("user_roles"), 2)
		require.Len(s.Documents("user_projects"), 3)
	}
}

func TestProfileCommitFailureAbortsRun(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	s := store.NewMemoryStore(500)
	s.FailCommit = func(ops []store.Op) error {
		if ops[0].Collection == "profiles" {
			return errors.New("permission denied")
		}
		return nil
	}
	m := newTestMigrator(s, identity.NewMemoryDirectory(), identity.MatchIndex)

	res, err := m.Run(ctx, Input{
		Profiles: decode.Decode("user_id;email\nu1;a@x.com\n"),
		Roles:    decode.Decode("user_id;role\nu1;admin\n"),
	})
	require.Error(err)
	require.Len(res.Phases, 1)
	require.Empty(s.Documents("user_roles"))
	require.False(res.Map.Frozen())
}

func TestMirrorErrorFailsPhase(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(500)
	mirror := &recordingMirror{err: errors.New("unavailable")}
	m := newTestMigrator(s, identity.NewMemoryDirectory(), identity.MatchIndex).WithMirror(mirror)

	res, err := m.Run(ctx, Input{
		Profiles: decode.Decode("user_id;email\nu1;a@x.com\n"),
		Roles:    decode.Decode("user_id;role\nu1;admin\n"),
	})
	require.ErrorContains(t, err, "mirroring roles")
	require.Len(t, res.Phases, 2)
	require.Len(t, s.Documents("user_roles"), 1)
}

func TestIdentityMap(t *testing.T) {
	require := require.New(t)
	m := NewIdentityMap()
	require.NoError(m.Put(Record{SourceID: "u1", DestID: "a"}))
	require.NoError(m.Put(Record{SourceID: "u1", DestID: "a"}))
	require.ErrorIs(m.Put(Record{SourceID: "u1", DestID: "b"}), ErrDuplicateSource)
	require.NoError(m.Put(Record{SourceID: "u2", DestID: "a"}))

	src, ok := m.SourceOf("a")
	require.True(ok)
	require.Equal("u1", src)
	require.Equal(2, m.Len())
	require.Len(m.Records(), 2)

	m.Freeze()
	require.ErrorIs(m.Put(Record{SourceID: "u3", DestID: "c"}), ErrMapFrozen)
	_, ok = m.Resolve("u3")
	require.False(ok)
}
