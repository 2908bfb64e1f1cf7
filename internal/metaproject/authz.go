package metaproject

import "sort"

// The authorization gate: pure reads over the policy and the role and
// operation registries, answering "which roles", "which operations", and
// "may user U perform O on P".

// RolesFor resolves the roles user holds on project.
func (c *ServerConfiguration) RolesFor(user UserID, project ProjectID) ([]Role, error) {
	ids, err := c.Policy.RoleIDs(user, project)
	if err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(ids))
	for _, id := range ids {
		role, err := c.Roles.Get(id)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// OperationsFor resolves the union of operations user may perform on
// project, ordered by id.
func (c *ServerConfiguration) OperationsFor(user UserID, project ProjectID) ([]Operation, error) {
	roles, err := c.RolesFor(user, project)
	if err != nil {
		return nil, err
	}
	seen := make(map[OperationID]struct{})
	var ops []Operation
	for _, role := range roles {
		for _, opID := range role.Operations {
			if _, ok := seen[opID]; ok {
				continue
			}
			seen[opID] = struct{}{}
			op, err := c.Operations.Get(opID)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
	return ops, nil
}

// OperationsOfRole resolves the operation set of a single role, ordered by
// id. Fails with ErrUnknownID when the role or one of its operations cannot
// be resolved.
func (c *ServerConfiguration) OperationsOfRole(roleID RoleID) ([]Operation, error) {
	role, err := c.Roles.Get(roleID)
	if err != nil {
		return nil, err
	}
	ops := make([]Operation, 0, len(role.Operations))
	for _, opID := range role.Operations {
		op, err := c.Operations.Get(opID)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
	return ops, nil
}

// IsOperationAllowed reports whether any role user holds on project contains
// op in its operation set. "No" is a plain false, never an error: a user or
// project outside the policy simply is not allowed.
func (c *ServerConfiguration) IsOperationAllowed(op OperationID, project ProjectID, user UserID) bool {
	ids, err := c.Policy.RoleIDs(user, project)
	if err != nil {
		return false
	}
	for _, id := range ids {
		role, err := c.Roles.Get(id)
		if err != nil {
			continue
		}
		if role.Allows(op) {
			return true
		}
	}
	return false
}
