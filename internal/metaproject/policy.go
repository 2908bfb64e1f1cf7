package metaproject

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Policy lookup errors. A query path that cannot resolve its inputs reports
// one of these; the boolean permission check never does.
var (
	// ErrUserNotInPolicy indicates the user holds no assignment at all.
	ErrUserNotInPolicy = errors.New("metaproject: user not in policy")
	// ErrProjectNotInPolicy indicates the user holds assignments, but none
	// on the given project.
	ErrProjectNotInPolicy = errors.New("metaproject: project not in policy for user")
)

// Policy is the set of (user, project, role) grants. Like the registries it
// is unsynchronized; the facade serializes access.
type Policy struct {
	assignments map[Assignment]struct{}
}

// NewPolicy returns an empty policy.
func NewPolicy() *Policy {
	return &Policy{assignments: make(map[Assignment]struct{})}
}

// Add records an assignment. Adding an existing triple is a no-op.
func (p *Policy) Add(a Assignment) {
	p.assignments[a] = struct{}{}
}

// Remove retracts an assignment. Removing an absent triple is a no-op.
func (p *Policy) Remove(a Assignment) {
	delete(p.assignments, a)
}

// Contains reports whether the exact triple is granted.
func (p *Policy) Contains(a Assignment) bool {
	_, ok := p.assignments[a]
	return ok
}

// RoleIDs returns the roles user holds on project, ordered by id.
func (p *Policy) RoleIDs(user UserID, project ProjectID) ([]RoleID, error) {
	inPolicy := false
	var roles []RoleID
	for a := range p.assignments {
		if a.User != user {
			continue
		}
		inPolicy = true
		if a.Project == project {
			roles = append(roles, a.Role)
		}
	}
	if !inPolicy {
		return nil, fmt.Errorf("%w: %s", ErrUserNotInPolicy, string(user))
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrProjectNotInPolicy, string(user), string(project))
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles, nil
}

// ProjectIDs returns the projects on which user holds at least one role,
// ordered by id.
func (p *Policy) ProjectIDs(user UserID) ([]ProjectID, error) {
	seen := make(map[ProjectID]struct{})
	for a := range p.assignments {
		if a.User == user {
			seen[a.Project] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUserNotInPolicy, string(user))
	}
	projects := make([]ProjectID, 0, len(seen))
	for id := range seen {
		projects = append(projects, id)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i] < projects[j] })
	return projects, nil
}

// RetractAll drops every assignment referencing the given user, project, or
// role id. Used when the referenced entity is deleted so the policy never
// points at missing ids.
func (p *Policy) RetractAll(match func(Assignment) bool) {
	for a := range p.assignments {
		if match(a) {
			delete(p.assignments, a)
		}
	}
}

// Len returns the number of assignments.
func (p *Policy) Len() int {
	return len(p.assignments)
}

// MarshalJSON encodes the policy as a sorted assignment list.
func (p *Policy) MarshalJSON() ([]byte, error) {
	list := make([]Assignment, 0, len(p.assignments))
	for a := range p.assignments {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].User != list[j].User {
			return list[i].User < list[j].User
		}
		if list[i].Project != list[j].Project {
			return list[i].Project < list[j].Project
		}
		return list[i].Role < list[j].Role
	})
	return json.Marshal(list)
}

// UnmarshalJSON decodes the policy from an assignment list.
func (p *Policy) UnmarshalJSON(data []byte) error {
	var list []Assignment
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	p.assignments = make(map[Assignment]struct{}, len(list))
	for _, a := range list {
		p.assignments[a] = struct{}{}
	}
	return nil
}
