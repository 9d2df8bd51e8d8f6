// Package sanitize cleans untrusted free text before it is stored or
// echoed, and flags input that looks like an injection attempt.
//
// [String] and [Sanitize] are a filter, not a parser. They escape HTML and
// strip a fixed catalog of markup-injection patterns; callers still need
// parameterized queries and contextual output encoding.
// [DetectSQLInjection] and [DetectXSS] exist for logging and alerting and
// should not be the only thing standing between input and a sink.
//
// # What this package must NOT do
//
//   - Import authcore or any token code.
//   - Reject input. Only [ValidateUpload], [ValidateEmail] and [ValidateURL]
//     return errors.
package sanitize
