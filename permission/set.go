package permission

import (
	"math/bits"
	"strings"
)

// Set is an immutable bitmask over the permission catalog. The zero value is
// the empty set. Bit positions come from DefaultRegistry.
type Set uint64

// NewSet returns the set holding perms. Labels outside the catalog are
// ignored.
func NewSet(perms ...Permission) Set {
	var s Set
	for _, p := range perms {
		s = s.With(p)
	}
	return s
}

// FullSet returns the set holding every catalog permission.
func FullSet() Set {
	return NewSet(catalog...)
}

func bitOf(p Permission) (int, bool) {
	return DefaultRegistry().Bit(string(p))
}

// Has reports whether p is in s.
func (s Set) Has(p Permission) bool {
	bit, ok := bitOf(p)
	if !ok {
		return false
	}
	return s&(1<<bit) != 0
}

// With returns s plus p.
func (s Set) With(p Permission) Set {
	bit, ok := bitOf(p)
	if !ok {
		return s
	}
	return s | 1<<bit
}

// Without returns s minus p.
func (s Set) Without(p Permission) Set {
	bit, ok := bitOf(p)
	if !ok {
		return s
	}
	return s &^ (1 << bit)
}

// Union returns s ∪ o.
func (s Set) Union(o Set) Set { return s | o }

// Contains reports whether s is a superset of o.
func (s Set) Contains(o Set) bool { return s&o == o }

// Len returns the number of permissions in s.
func (s Set) Len() int { return bits.OnesCount64(uint64(s)) }

// IsEmpty reports whether s holds no permission.
func (s Set) IsEmpty() bool { return s == 0 }

// Permissions lists s in catalog order.
func (s Set) Permissions() []Permission {
	if s == 0 {
		return nil
	}
	reg := DefaultRegistry()
	out := make([]Permission, 0, s.Len())
	for v := uint64(s); v != 0; v &= v - 1 {
		name, ok := reg.Name(bits.TrailingZeros64(v))
		if ok {
			out = append(out, Permission(name))
		}
	}
	return out
}

// Strings lists s as labels in catalog order.
func (s Set) Strings() []string {
	perms := s.Permissions()
	if perms == nil {
		return nil
	}
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func (s Set) String() string {
	return "{" + strings.Join(s.Strings(), ",") + "}"
}
