package authz

import (
	"context"
	"fmt"

	v1 "github.com/authzed/authzed-go/proto/authzed/api/v1"
	"github.com/rs/zerolog/log"

	"github.com/tallyworks/datamigrator/pkg/accounts"
)

// Mirror copies role and project membership edges into SpiceDB
type Mirror struct {
	writer RelationshipWriter
	schema AppendSchemaWriter

	schemaWritten bool
}

var _ accounts.Mirror = &Mirror{}

// NewMirror returns a mirror writing relationships through writer. The
// schema fragment is appended through schema before the first write.
func NewMirror(writer RelationshipWriter, schema AppendSchemaWriter) *Mirror {
	return &Mirror{writer: writer, schema: schema}
}

// MirrorRoles makes each user a member of exactly the role given for it.
// Previous role memberships of those users are removed first.
func (m *Mirror) MirrorRoles(ctx context.Context, roles []accounts.RoleAssignment) error {
	if err := m.ensureSchema(ctx); err != nil {
		return err
	}
	rels := make([]*v1.Relationship, 0, len(roles))
	for _, r := range roles {
		if err := m.writer.Delete(ctx, &v1.RelationshipFilter{
			ResourceType:     RoleType,
			OptionalRelation: MemberRel,
			OptionalSubjectFilter: &v1.SubjectFilter{
				SubjectType:       UserType,
				OptionalSubjectId: r.UserID,
			},
		}); err != nil {
			return fmt.Errorf("clearing roles of %s: %w", r.UserID, err)
		}
		rels = append(rels, memberOf(RoleType, r.Role, r.UserID))
	}
	if err := m.write(ctx, rels); err != nil {
		return fmt.Errorf("writing role relationships: %w", err)
	}
	log.Info().Int("relationships", len(rels)).Msg("mirrored roles")
	return nil
}

// ReplaceProjectMembers removes every project membership and writes links
// in their place
func (m *Mirror) ReplaceProjectMembers(ctx context.Context, links []accounts.ProjectLink) error {
	if err := m.ensureSchema(ctx); err != nil {
		return err
	}
	if err := m.writer.Delete(ctx, &v1.RelationshipFilter{
		ResourceType:     ProjectType,
		OptionalRelation: MemberRel,
	}); err != nil {
		return fmt.Errorf("clearing project members: %w", err)
	}
	rels := make([]*v1.Relationship, 0, len(links))
	for _, l := range links {
		rels = append(rels, memberOf(ProjectType, l.ProjectID, l.UserID))
	}
	if err := m.write(ctx, rels); err != nil {
		return fmt.Errorf("writing project members: %w", err)
	}
	log.Info().Int("relationships", len(rels)).Msg("mirrored project members")
	return nil
}

func (m *Mirror) write(ctx context.Context, rels []*v1.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	return m.writer.Write(ctx, touch(rels...))
}

func (m *Mirror) ensureSchema(ctx context.Context) error {
	if m.schemaWritten || m.schema == nil {
		return nil
	}
	if err := m.schema.Write(ctx, Schema); err != nil {
		return fmt.Errorf("writing schema: %w", err)
	}
	m.schemaWritten = true
	return nil
}
