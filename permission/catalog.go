package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Permission is one entry of the closed permission catalog.
type Permission string

const (
	ChatRead     Permission = "chat:read"
	ChatWrite    Permission = "chat:write"
	ChatDelete   Permission = "chat:delete"
	AgentExecute Permission = "agent:execute"
	AgentManage  Permission = "agent:manage"
	SystemRead   Permission = "system:read"
	SystemManage Permission = "system:manage"
	SystemAdmin  Permission = "system:admin"
	UserRead     Permission = "user:read"
	UserManage   Permission = "user:manage"
	UserDelete   Permission = "user:delete"
	MemoryRead   Permission = "memory:read"
	MemoryWrite  Permission = "memory:write"
	MemoryDelete Permission = "memory:delete"
	FileUpload   Permission = "file:upload"
	FileDownload Permission = "file:download"
	FileDelete   Permission = "file:delete"
)

// catalog order defines bit positions; append only.
var catalog = []Permission{
	ChatRead, ChatWrite, ChatDelete,
	AgentExecute, AgentManage,
	SystemRead, SystemManage, SystemAdmin,
	UserRead, UserManage, UserDelete,
	MemoryRead, MemoryWrite, MemoryDelete,
	FileUpload, FileDownload, FileDelete,
}

// Role is one entry of the closed role enumeration.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleGuest Role = "guest"
)

// FallbackRole is assumed when a caller carries no recognized role.
const FallbackRole = RoleUser

var roles = []Role{RoleAdmin, RoleUser, RoleAgent, RoleGuest}

var (
	// ErrUnknownPermission is returned for labels outside the catalog.
	ErrUnknownPermission = errors.New("permission: unknown permission")
	// ErrUnknownRole is returned for labels outside the role enumeration.
	ErrUnknownRole = errors.New("permission: unknown role")
)

// All returns the catalog in bit order.
func All() []Permission {
	return append([]Permission(nil), catalog...)
}

// Roles returns every role.
func Roles() []Role {
	return append([]Role(nil), roles...)
}

func (p Permission) String() string { return string(p) }

// Valid reports whether p belongs to the catalog.
func (p Permission) Valid() bool {
	_, ok := DefaultRegistry().Bit(string(p))
	return ok
}

func (r Role) String() string { return string(r) }

// Valid reports whether r belongs to the role enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleAgent, RoleGuest:
		return true
	}
	return false
}

// ParsePermission converts an untrusted label. Surrounding whitespace and
// case are ignored.
func ParsePermission(label string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(label)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, label)
	}
	return p, nil
}

// ParseRole converts an untrusted label. Surrounding whitespace and case are
// ignored.
func ParseRole(label string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(label)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, label)
	}
	return r, nil
}

// ParseRoles converts labels, dropping unknown ones and duplicates. The
// second return value lists what was dropped.
func ParseRoles(labels []string) ([]Role, []string) {
	var (
		out     []Role
		dropped []string
		seen    = make(map[Role]struct{}, len(labels))
	)
	for _, label := range labels {
		r, err := ParseRole(label)
		if err != nil {
			dropped = append(dropped, label)
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out, dropped
}

// ParsePermissions converts labels, dropping unknown ones. The second return
// value lists what was dropped.
func ParsePermissions(labels []string) (Set, []string) {
	var (
		set     Set
		dropped []string
	)
	for _, label := range labels {
		p, err := ParsePermission(label)
		if err != nil {
			dropped = append(dropped, label)
			continue
		}
		set = set.With(p)
	}
	return set, dropped
}

// RoleStrings converts roles to their labels.
func RoleStrings(rs []Role) []string {
	if len(rs) == 0 {
		return nil
	}
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
