package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/atulya-tantra/authcore/permission"
	"github.com/sirupsen/logrus"
)

// Guard decides allow or deny for verified claims. It never sees raw
// tokens. Effective permissions are the union of the role sets, the
// token's explicit permissions and the subject's custom grants; a token
// without a recognized role is treated as FallbackRole, never admin.
// Refresh-kind claims hold no permissions and no roles.
type Guard struct {
	roles  *permission.RoleTable
	grants *permission.Grants
	svc    *Service
}

// NewGuard builds a standalone guard without metrics or audit.
func NewGuard(roles *permission.RoleTable, grants *permission.Grants) *Guard {
	if roles == nil {
		roles = permission.DefaultRoleTable()
	}
	if grants == nil {
		grants = permission.NewGrants()
	}
	return &Guard{roles: roles, grants: grants}
}

type requirementKind uint8

const (
	requirePermission requirementKind = iota + 1
	requireRole
)

// Requirement is what a protected operation demands of its caller.
type Requirement struct {
	kind  requirementKind
	perm  permission.Permission
	roles []permission.Role
}

// RequirePermission is satisfied when p is in the caller's effective set.
func RequirePermission(p permission.Permission) Requirement {
	return Requirement{kind: requirePermission, perm: p}
}

// RequireRole is satisfied when r is among the caller's effective roles.
func RequireRole(r permission.Role) Requirement {
	return Requirement{kind: requireRole, roles: []permission.Role{r}}
}

// RequireAnyRole is satisfied by any one of rs. With no roles it can never
// be satisfied.
func RequireAnyRole(rs ...permission.Role) Requirement {
	return Requirement{kind: requireRole, roles: append([]permission.Role(nil), rs...)}
}

// String describes r for denial messages and audit events.
func (r Requirement) String() string {
	switch r.kind {
	case requirePermission:
		return "permission " + string(r.perm)
	case requireRole:
		return "role " + strings.Join(permission.RoleStrings(r.roles), "|")
	default:
		return "invalid requirement"
	}
}

// effectiveRoles applies the fallback. Refresh claims have no roles.
func effectiveRoles(c *Claims) []permission.Role {
	if c == nil || c.Kind != KindAccess {
		return nil
	}
	if len(c.Roles) == 0 {
		return []permission.Role{permission.FallbackRole}
	}
	return c.Roles
}

// Permissions returns the effective permission set for c.
func (g *Guard) Permissions(c *Claims) permission.Set {
	if c == nil || c.Kind != KindAccess {
		return 0
	}
	set := g.roles.Effective(c.Roles)
	for _, p := range c.Permissions {
		set = set.With(p)
	}
	return set.Union(g.grants.Get(c.Subject))
}

// HasPermission reports whether p is in c's effective permission set.
func (g *Guard) HasPermission(c *Claims, p permission.Permission) bool {
	return g.Permissions(c).Has(p)
}

// HasRole reports whether r is among c's effective roles.
func (g *Guard) HasRole(c *Claims, r permission.Role) bool {
	for _, have := range effectiveRoles(c) {
		if have == r {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether c holds at least one of rs.
func (g *Guard) HasAnyRole(c *Claims, rs ...permission.Role) bool {
	for _, r := range rs {
		if g.HasRole(c, r) {
			return true
		}
	}
	return false
}

// Require returns nil when c satisfies req, ErrUnauthenticated for nil
// claims, and ErrPermissionDenied otherwise.
func (g *Guard) Require(ctx context.Context, c *Claims, req Requirement) error {
	if c == nil {
		return ErrUnauthenticated
	}

	var allowed bool
	switch req.kind {
	case requirePermission:
		allowed = g.HasPermission(c, req.perm)
	case requireRole:
		allowed = g.HasAnyRole(c, req.roles...)
	}

	if allowed {
		g.svc.metricInc(MetricAuthzAllowed)
		return nil
	}

	g.svc.metricInc(MetricAuthzDenied)
	g.svc.log().WithFields(logrus.Fields{
		"subject":     c.Subject,
		"kind":        c.Kind,
		"requirement": req.String(),
	}).Info("authorization denied")
	g.svc.emitAudit(ctx, auditEventAuthzDenied, false, c.Subject, c.TokenID, ErrPermissionDenied, func() map[string]string {
		return map[string]string{
			"requirement": req.String(),
			"kind":        string(c.Kind),
		}
	})
	return fmt.Errorf("%w: requires %s", ErrPermissionDenied, req)
}

// CanManage reports whether every effective role of target lies within the
// hierarchy of some effective role of manager.
func (g *Guard) CanManage(manager, target *Claims) bool {
	managerRoles := effectiveRoles(manager)
	targetRoles := effectiveRoles(target)
	if len(managerRoles) == 0 || len(targetRoles) == 0 {
		return false
	}

	for _, t := range targetRoles {
		covered := false
		for _, m := range managerRoles {
			if permission.Manages(m, t) {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// Grant adds a custom permission for userID. Granting an already held
// permission is a no-op.
func (g *Guard) Grant(ctx context.Context, userID string, p permission.Permission) error {
	return g.mutate(ctx, userID, p, true)
}

// Revoke removes a custom permission. Revoking the last grant forgets the
// user entirely; revoking an absent grant is a no-op.
func (g *Guard) Revoke(ctx context.Context, userID string, p permission.Permission) error {
	return g.mutate(ctx, userID, p, false)
}

// CustomPermissions returns the grants held by userID.
func (g *Guard) CustomPermissions(userID string) permission.Set {
	return g.grants.Get(userID)
}

func (g *Guard) mutate(ctx context.Context, userID string, p permission.Permission, add bool) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	var (
		changed bool
		err     error
	)
	if add {
		changed, err = g.grants.Grant(userID, p)
	} else {
		changed, err = g.grants.Revoke(userID, p)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !changed {
		return nil
	}

	event, metric := auditEventGrantAdded, MetricGrantAdded
	if !add {
		event, metric = auditEventGrantRevoked, MetricGrantRevoked
	}
	g.svc.metricInc(metric)
	g.svc.log().WithFields(logrus.Fields{
		"subject":    userID,
		"permission": p,
	}).Info(event)
	g.svc.emitAudit(ctx, event, true, userID, "", nil, func() map[string]string {
		return map[string]string{"permission": string(p)}
	})
	return nil
}
