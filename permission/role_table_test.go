package permission

import (
	"errors"
	"reflect"
	"testing"
)

func TestCatalogSize(t *testing.T) {
	if got := len(All()); got != 17 {
		t.Fatalf("expected 17 permissions, got %d", got)
	}
	if got := DefaultRegistry().Count(); got != 17 {
		t.Fatalf("expected registry to hold 17 permissions, got %d", got)
	}
	if _, err := DefaultRegistry().Register("extra:perm"); err == nil {
		t.Fatal("expected frozen registry to refuse registration")
	}
}

func TestAgentPermissionsExact(t *testing.T) {
	table := DefaultRoleTable()

	got := table.Permissions(RoleAgent).Permissions()
	want := []Permission{
		ChatRead, ChatWrite,
		AgentExecute,
		SystemRead,
		MemoryRead, MemoryWrite,
		FileUpload, FileDownload,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("agent permissions = %v, want %v", got, want)
	}
}

func TestAdminHoldsEveryPermission(t *testing.T) {
	table := DefaultRoleTable()
	admin := table.Permissions(RoleAdmin)

	for _, p := range All() {
		if !admin.Has(p) {
			t.Fatalf("admin lacks %s", p)
		}
	}
	for _, r := range Roles() {
		if !admin.Contains(table.Permissions(r)) {
			t.Fatalf("admin is not a superset of %s", r)
		}
	}
}

func TestGuestCannotManageSystem(t *testing.T) {
	table := DefaultRoleTable()
	if table.Permissions(RoleGuest).Has(SystemManage) {
		t.Fatal("guest must not hold system:manage")
	}
}

func TestNewRoleTableRejectsNarrowAdmin(t *testing.T) {
	def := DefaultRolePermissions()
	def[RoleAdmin] = []Permission{ChatRead}

	_, err := NewRoleTable(def)
	if !errors.Is(err, ErrAdminNotSuperset) {
		t.Fatalf("expected ErrAdminNotSuperset, got %v", err)
	}
}

func TestNewRoleTableRejectsIncompleteOrUnknown(t *testing.T) {
	def := DefaultRolePermissions()
	delete(def, RoleGuest)
	if _, err := NewRoleTable(def); err == nil {
		t.Fatal("expected missing role to be rejected")
	}

	def = DefaultRolePermissions()
	def["root"] = []Permission{ChatRead}
	if _, err := NewRoleTable(def); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}

	def = DefaultRolePermissions()
	def[RoleGuest] = append(def[RoleGuest], "chat:shout")
	if _, err := NewRoleTable(def); !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestEffectiveFallsBackToUser(t *testing.T) {
	table := DefaultRoleTable()
	user := table.Permissions(RoleUser)

	if got := table.Effective(nil); got != user {
		t.Fatalf("Effective(nil) = %s, want %s", got, user)
	}
	if got := table.Effective([]Role{"superuser"}); got != user {
		t.Fatalf("Effective(unknown) = %s, want %s", got, user)
	}
	if got := table.Effective([]Role{RoleGuest, RoleAgent}); got != table.Permissions(RoleGuest).Union(table.Permissions(RoleAgent)) {
		t.Fatalf("Effective(guest, agent) = %s", got)
	}
}

func TestManages(t *testing.T) {
	tests := []struct {
		manager, target Role
		want            bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleGuest, true},
		{RoleAdmin, RoleAgent, true},
		{RoleUser, RoleGuest, true},
		{RoleUser, RoleUser, true},
		{RoleUser, RoleAgent, false},
		{RoleUser, RoleAdmin, false},
		{RoleAgent, RoleAgent, true},
		{RoleAgent, RoleGuest, false},
		{RoleGuest, RoleGuest, true},
		{RoleGuest, RoleUser, false},
		{"root", RoleGuest, false},
	}

	for _, tt := range tests {
		if got := Manages(tt.manager, tt.target); got != tt.want {
			t.Fatalf("Manages(%s, %s) = %v, want %v", tt.manager, tt.target, got, tt.want)
		}
	}
}

func TestParseRoleAndPermission(t *testing.T) {
	if r, err := ParseRole("  Admin "); err != nil || r != RoleAdmin {
		t.Fatalf("ParseRole = %q, %v", r, err)
	}
	if _, err := ParseRole("superuser"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if p, err := ParsePermission("FILE:Upload"); err != nil || p != FileUpload {
		t.Fatalf("ParsePermission = %q, %v", p, err)
	}
	if _, err := ParsePermission("file:execute"); !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}

	rs, dropped := ParseRoles([]string{"user", "bogus", "USER", "guest"})
	if !reflect.DeepEqual(rs, []Role{RoleUser, RoleGuest}) {
		t.Fatalf("ParseRoles = %v", rs)
	}
	if !reflect.DeepEqual(dropped, []string{"bogus"}) {
		t.Fatalf("dropped = %v", dropped)
	}

	set, dropped := ParsePermissions([]string{"chat:read", "nope", "memory:write"})
	if set != NewSet(ChatRead, MemoryWrite) {
		t.Fatalf("ParsePermissions = %s", set)
	}
	if len(dropped) != 1 {
		t.Fatalf("dropped = %v", dropped)
	}
}
