// Package authcore is the authentication and authorization core of an
// assistant backend: it issues and verifies access and refresh tokens,
// hashes and checks passwords, resolves roles to permissions and guards
// protected operations.
//
// A [Service] is assembled once with [New]...[Builder.Build] and is safe for
// concurrent use. The request path is
//
//	bearer token -> Service.Verify -> *Claims -> Guard.Require -> handler
//
// Authentication failures match [ErrUnauthenticated] (HTTP 401);
// authorization failures match [ErrPermissionDenied] (HTTP 403).
//
// # Architecture boundaries
//
// authcore is the public surface. Token encoding lives in jwt/, hashing and
// password policy in password/, catalogs and the role table in permission/,
// optional login sessions in session/. Rate limiting and audit dispatch live
// under internal/.
//
// # What this package must NOT do
//
//   - Store accounts or passwords; callers provide an [AccountLookup].
//   - Log passwords, password hashes or raw tokens.
//   - Hold mutable state in package-level variables.
package authcore
