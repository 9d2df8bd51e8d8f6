// Package password owns the password lifecycle: Argon2id hashing and
// verification, strength validation, scoring and generation.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Cost parameters are read back from the hash on verification, so raising
// them in [Config] never invalidates stored hashes. [Argon2.NeedsUpgrade]
// reports hashes produced with weaker parameters (and any legacy bcrypt
// hash) so callers can re-hash after the next successful login.
//
// # Strength rules
//
// [ValidateStrength] is the gate: it returns every failed rule in a fixed
// order. [Score] is an advisory 0..100 number for UX and never gates
// anything. [Generate] always returns a password that passes
// [ValidateStrength].
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
