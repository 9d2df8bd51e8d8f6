// Package session tracks server-side login sessions.
//
// A [Manager] owns the lifecycle rules: opaque random ids, a default
// lifetime, expiry on read and a cap on concurrent sessions per user that
// evicts the least recently used. Persistence is delegated to a [Store]:
//
//   - [MemoryStore] keeps sessions in process memory.
//   - [RedisStore] keeps one JSON blob per session under <prefix>:s:<id>
//     with a TTL matching the expiry, plus a per-user id set under
//     <prefix>:su:<user>.
//
// Access tokens stay stateless. The session id travels in the sid claim
// and is checked when a refresh token is exchanged.
package session
