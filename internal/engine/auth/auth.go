package auth

import (
	"fmt"
	"sort"

	"taskboard/internal/domain"
)

// Permission ids checked by the engine.
const (
	ProjectRead   = "project.read"
	ProjectCreate = "project.create"
	ProjectUpdate = "project.update"
	ProjectDelete = "project.delete"
	TaskRead      = "task.read"
	TaskCreate    = "task.create"
	TaskUpdate    = "task.update"
	TaskDelete    = "task.delete"
	TaskAssign    = "task.assign"
	TaskStatus    = "task.status"
	CommentCreate = "comment.create"
	CommentUpdate = "comment.update"
	CommentDelete = "comment.delete"
	ActivityRead  = "activity.read"
	ActivityClear = "activity.clear"
	UserRead      = "user.read"
)

// AllPermissions lists every permission id in display order.
var AllPermissions = []string{
	ProjectRead, ProjectCreate, ProjectUpdate, ProjectDelete,
	TaskRead, TaskCreate, TaskUpdate, TaskDelete, TaskAssign, TaskStatus,
	CommentCreate, CommentUpdate, CommentDelete,
	ActivityRead, ActivityClear, UserRead,
}

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

var defaultTable = map[domain.Role][]string{
	domain.RoleAdmin: {
		ProjectRead, ProjectCreate, ProjectUpdate, ProjectDelete,
		TaskRead, TaskCreate, TaskUpdate, TaskDelete, TaskAssign,
		ActivityRead, ActivityClear, UserRead,
	},
	domain.RoleManager: {
		ProjectRead, ProjectUpdate,
		TaskRead, TaskCreate, TaskUpdate, TaskDelete, TaskAssign,
		ActivityRead, UserRead,
	},
	domain.RoleEmployee: {
		ProjectRead, TaskRead, TaskStatus,
		CommentCreate, CommentUpdate, CommentDelete,
		ActivityRead,
	},
}

// Policy is a role -> permission set table.
type Policy struct {
	roles map[domain.Role]map[string]struct{}
}

// Default returns the built-in capability table.
func Default() Policy {
	p, _ := New(nil)
	return p
}

// New builds a policy from the built-in table, replacing the permission list
// of every role present in overrides. Unknown permission ids are rejected.
func New(overrides map[string][]string) (Policy, error) {
	p := Policy{roles: map[domain.Role]map[string]struct{}{}}
	for role, perms := range defaultTable {
		p.roles[role] = toSet(perms)
	}
	known := toSet(AllPermissions)
	for name, perms := range overrides {
		role := domain.Role(name)
		if !role.Valid() {
			return Policy{}, fmt.Errorf("unknown role %q", name)
		}
		for _, perm := range perms {
			if _, ok := known[perm]; !ok {
				return Policy{}, fmt.Errorf("role %s: unknown permission %q", name, perm)
			}
		}
		p.roles[role] = toSet(perms)
	}
	return p, nil
}

// Permissions returns the sorted permission ids of role. Unknown roles have none.
func (p Policy) Permissions(role domain.Role) []string {
	set := p.roles[role]
	out := make([]string, 0, len(set))
	for perm := range set {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out
}

func (p Policy) Allowed(role domain.Role, perm string) bool {
	_, ok := p.roles[role][perm]
	return ok
}

// Require returns ForbiddenError when role lacks perm.
func (p Policy) Require(role domain.Role, perm string) error {
	if !p.Allowed(role, perm) {
		return ForbiddenError{Permission: perm}
	}
	return nil
}

func toSet(perms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(perms))
	for _, perm := range perms {
		set[perm] = struct{}{}
	}
	return set
}
