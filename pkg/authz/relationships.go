package authz

import (
	"fmt"

	v1 "github.com/authzed/authzed-go/proto/authzed/api/v1"
)

// Object types and relations the mirror writes
const (
	UserType    = "user"
	RoleType    = "role"
	ProjectType = "project"
	MemberRel   = "member"
)

// Schema is the zed fragment describing the mirrored edges
const Schema = `
definition user {}

definition role {
	relation member: user
}

definition project {
	relation member: user
}
`

// RelString best-effort formats a relationship for debug logging
func RelString(r *v1.Relationship) string {
	if r == nil {
		return ""
	}
	var resType, resID, subType, subID string
	if r.Resource != nil {
		resType, resID = r.Resource.ObjectType, r.Resource.ObjectId
	}
	if r.Subject != nil && r.Subject.Object != nil {
		subType, subID = r.Subject.Object.ObjectType, r.Subject.Object.ObjectId
	}
	return fmt.Sprintf("%s:%s#%s@%s:%s", resType, resID, r.Relation, subType, subID)
}

// memberOf builds resourceType:resourceID#member@user:userID
func memberOf(resourceType, resourceID, userID string) *v1.Relationship {
	return &v1.Relationship{
		Resource: &v1.ObjectReference{ObjectType: resourceType, ObjectId: resourceID},
		Relation: MemberRel,
		Subject: &v1.SubjectReference{
			Object: &v1.ObjectReference{ObjectType: UserType, ObjectId: userID},
		},
	}
}

func touch(rels ...*v1.Relationship) []*v1.RelationshipUpdate {
	updates := make([]*v1.RelationshipUpdate, 0, len(rels))
	for _, r := range rels {
		updates = append(updates, &v1.RelationshipUpdate{
			Operation:    v1.RelationshipUpdate_OPERATION_TOUCH,
			Relationship: r,
		})
	}
	return updates
}
