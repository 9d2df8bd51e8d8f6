// Package rate throttles failed logins.
//
// Two backends implement [Limiter]:
//
//   - [RedisLimiter]: fixed-window counters (INCR plus EXPIRE on the first
//     hit) shared by every replica. Keys are <prefix>:al:<identifier> and
//     <prefix>:ali:<ip>.
//   - [LocalLimiter]: per-key token buckets from golang.org/x/time/rate for
//     single-process deployments and tests.
//
// This package must not be imported outside the authcore module.
package rate
