// Package jwt signs and verifies access and refresh tokens.
//
// Tokens carry the subject, username, roles, explicit permissions and a
// "typ" claim naming their [Kind]. [Manager.Parse] pins the expected kind,
// so a refresh token is never accepted where an access token is required.
// Validity is the half-open interval [iat, exp) measured on the clock given
// in [Config], which lets tests move time deterministically.
package jwt
