// Package permission holds the closed role and permission catalogs, the
// static role table and the per-user grant map.
//
// # Representation
//
// A [Set] is a 64-bit mask. Bit positions are assigned by the frozen
// [DefaultRegistry] in catalog order and are stable for the lifetime of the
// process. Labels crossing a trust boundary (token claims, request bodies)
// are converted with [ParseRole] and [ParsePermission]; unknown labels never
// become a [Role] or [Permission] value.
//
// # Invariants
//
//   - [NewRoleTable] refuses a table in which admin is not a superset of
//     every other role.
//   - [Grants] never retains an empty set for a user.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore or jwt.
//   - Interpret raw tokens.
package permission
