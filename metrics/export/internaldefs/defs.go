package internaldefs

import (
	"github.com/atulya-tantra/authcore"
)

// CounterDef maps one authcore counter onto an exported series name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// AuditDroppedName is the series for authcore.Service.AuditDropped.
const (
	AuditDroppedName = "authcore_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher queue was full."
)

var CounterDefs = []CounterDef{
	{ID: authcore.MetricAccessIssued, Name: "authcore_access_issued_total", Help: "Access tokens issued."},
	{ID: authcore.MetricRefreshIssued, Name: "authcore_refresh_issued_total", Help: "Refresh tokens issued."},
	{ID: authcore.MetricVerifySuccess, Name: "authcore_verify_success_total", Help: "Tokens that verified."},
	{ID: authcore.MetricVerifyExpired, Name: "authcore_verify_expired_total", Help: "Tokens rejected as expired."},
	{ID: authcore.MetricVerifyInvalid, Name: "authcore_verify_invalid_total", Help: "Tokens rejected as invalid."},
	{ID: authcore.MetricAuthzAllowed, Name: "authcore_authz_allowed_total", Help: "Authorization checks that passed."},
	{ID: authcore.MetricAuthzDenied, Name: "authcore_authz_denied_total", Help: "Authorization checks that failed."},
	{ID: authcore.MetricGrantAdded, Name: "authcore_grant_added_total", Help: "Custom permission grants added."},
	{ID: authcore.MetricGrantRevoked, Name: "authcore_grant_revoked_total", Help: "Custom permission grants revoked."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins refused by the limiter."},
	{ID: authcore.MetricLoginInactive, Name: "authcore_login_inactive_total", Help: "Logins refused for inactive accounts."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh exchanges."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh exchanges."},
	{ID: authcore.MetricPasswordRehashNeeded, Name: "authcore_password_rehash_needed_total", Help: "Logins with a hash below current cost parameters."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricVerifyLatency, Name: "authcore_verify_latency_seconds", Help: "Token verification latency."},
}

// HistogramBounds are the finite upper bounds in seconds; the eighth
// bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// that publish one gauge per bucket.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the eight-bucket layout.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
