package permission

import (
	"errors"
	"fmt"
)

// ErrAdminNotSuperset is returned by NewRoleTable when some role holds a
// permission admin lacks.
var ErrAdminNotSuperset = errors.New("permission: admin must hold every permission of every role")

// DefaultRolePermissions is the built-in role table.
func DefaultRolePermissions() map[Role][]Permission {
	return map[Role][]Permission{
		RoleAdmin: All(),
		RoleUser: {
			ChatRead, ChatWrite, ChatDelete,
			AgentExecute,
			SystemRead,
			UserRead,
			MemoryRead, MemoryWrite, MemoryDelete,
			FileUpload, FileDownload, FileDelete,
		},
		RoleAgent: {
			ChatRead, ChatWrite,
			AgentExecute,
			SystemRead,
			MemoryRead, MemoryWrite,
			FileUpload, FileDownload,
		},
		RoleGuest: {
			ChatRead,
			SystemRead,
		},
	}
}

// manages is the static descendant closure used by CanManage.
var manages = map[Role]map[Role]struct{}{
	RoleAdmin: {RoleAdmin: {}, RoleUser: {}, RoleAgent: {}, RoleGuest: {}},
	RoleUser:  {RoleUser: {}, RoleGuest: {}},
	RoleAgent: {RoleAgent: {}},
	RoleGuest: {RoleGuest: {}},
}

// RoleTable resolves roles to permission sets. It is immutable after
// construction and safe for concurrent use.
type RoleTable struct {
	sets map[Role]Set
}

// NewRoleTable builds a table from def. Every role must be defined, every
// permission must belong to the catalog, and admin must be a superset of
// every other role.
func NewRoleTable(def map[Role][]Permission) (*RoleTable, error) {
	t := &RoleTable{sets: make(map[Role]Set, len(roles))}

	for role, perms := range def {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
		var set Set
		for _, p := range perms {
			if !p.Valid() {
				return nil, fmt.Errorf("%w: %q in role %s", ErrUnknownPermission, p, role)
			}
			set = set.With(p)
		}
		t.sets[role] = set
	}

	for _, role := range roles {
		if _, ok := t.sets[role]; !ok {
			return nil, fmt.Errorf("permission: role %s is not defined", role)
		}
	}

	admin := t.sets[RoleAdmin]
	for _, role := range roles {
		if !admin.Contains(t.sets[role]) {
			missing := t.sets[role] &^ admin
			return nil, fmt.Errorf("%w: %s grants %s", ErrAdminNotSuperset, role, missing)
		}
	}

	return t, nil
}

// MustRoleTable is NewRoleTable for static definitions; it panics on error.
func MustRoleTable(def map[Role][]Permission) *RoleTable {
	t, err := NewRoleTable(def)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultRoleTable builds the table from DefaultRolePermissions.
func DefaultRoleTable() *RoleTable {
	return MustRoleTable(DefaultRolePermissions())
}

// Permissions returns the set for role. Unknown roles get the empty set.
func (t *RoleTable) Permissions(role Role) Set {
	return t.sets[role]
}

// Effective returns the union of the sets for rs, falling back to
// FallbackRole when rs holds no recognized role.
func (t *RoleTable) Effective(rs []Role) Set {
	var (
		set        Set
		recognized bool
	)
	for _, r := range rs {
		if s, ok := t.sets[r]; ok {
			set |= s
			recognized = true
		}
	}
	if !recognized {
		return t.sets[FallbackRole]
	}
	return set
}

// Manages reports whether manager's hierarchy contains target.
func Manages(manager, target Role) bool {
	_, ok := manages[manager][target]
	return ok
}
