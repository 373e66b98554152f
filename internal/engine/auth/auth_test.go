package auth

import (
	"errors"
	"testing"

	"taskboard/internal/domain"
)

func TestDefaultTable(t *testing.T) {
	p := Default()
	cases := []struct {
		role    domain.Role
		perm    string
		allowed bool
	}{
		{domain.RoleAdmin, ProjectCreate, true},
		{domain.RoleAdmin, ProjectDelete, true},
		{domain.RoleAdmin, TaskStatus, false},
		{domain.RoleAdmin, CommentCreate, false},
		{domain.RoleManager, ProjectCreate, false},
		{domain.RoleManager, ProjectUpdate, true},
		{domain.RoleManager, TaskDelete, true},
		{domain.RoleManager, ActivityClear, false},
		{domain.RoleEmployee, TaskStatus, true},
		{domain.RoleEmployee, CommentDelete, true},
		{domain.RoleEmployee, TaskCreate, false},
		{domain.RoleEmployee, UserRead, false},
		{domain.Role("guest"), ProjectRead, false},
	}
	for _, tc := range cases {
		if got := p.Allowed(tc.role, tc.perm); got != tc.allowed {
			t.Errorf("%s/%s: allowed=%v want %v", tc.role, tc.perm, got, tc.allowed)
		}
	}
	if perms := p.Permissions("guest"); len(perms) != 0 {
		t.Fatalf("unknown role should have no permissions, got %v", perms)
	}
}

func TestRequireReturnsForbidden(t *testing.T) {
	err := Default().Require(domain.RoleEmployee, ProjectDelete)
	var fe ForbiddenError
	if !errors.As(err, &fe) || fe.Permission != ProjectDelete {
		t.Fatalf("expected ForbiddenError for %s, got %v", ProjectDelete, err)
	}
	if err := Default().Require(domain.RoleAdmin, ProjectDelete); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestOverrides(t *testing.T) {
	p, err := New(map[string][]string{"employee": {ProjectRead, TaskRead}})
	if err != nil {
		t.Fatal(err)
	}
	if p.Allowed(domain.RoleEmployee, TaskStatus) {
		t.Fatalf("override should replace the employee set")
	}
	if !p.Allowed(domain.RoleManager, TaskCreate) {
		t.Fatalf("roles without override keep defaults")
	}
	if _, err := New(map[string][]string{"intern": {ProjectRead}}); err == nil {
		t.Fatalf("expected unknown role error")
	}
	if _, err := New(map[string][]string{"admin": {"project.archive"}}); err == nil {
		t.Fatalf("expected unknown permission error")
	}
}
