// Package middleware adapts the authcore token service and guard to
// net/http.
//
// [Authenticate] reads the bearer token, verifies it as an access token
// and stores the claims in the request context. [RequirePermission],
// [RequireRole] and [Require] run after it and consult the guard.
// Failures are written as a small JSON body:
//
//	{"error":"permission_denied","message":"forbidden"}
//
// with 401 for missing or bad credentials and 403 for denied access.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to authcore.Service).
//   - Make authorization decisions of its own.
//   - Echo token contents or internal error text to the client.
package middleware
