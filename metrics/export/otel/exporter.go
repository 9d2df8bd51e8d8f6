package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/atulya-tantra/authcore"
	"github.com/atulya-tantra/authcore/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is satisfied by *authcore.Service.
type MetricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// series is one authcore counter observed under a fixed attribute set.
type series struct {
	id    authcore.MetricID
	attrs attribute.Set
}

// counterGroup is one OTel instrument fed by several authcore counters.
type counterGroup struct {
	name   string
	unit   string
	help   string
	series []series
}

func outcome(id authcore.MetricID, key, value string) series {
	return series{id: id, attrs: attribute.NewSet(attribute.String(key, value))}
}

var counterGroups = []counterGroup{
	{
		name: "authcore.tokens.issued", unit: "{token}", help: "Tokens signed, by kind.",
		series: []series{
			outcome(authcore.MetricAccessIssued, "kind", "access"),
			outcome(authcore.MetricRefreshIssued, "kind", "refresh"),
		},
	},
	{
		name: "authcore.tokens.verified", unit: "{token}", help: "Token verifications, by outcome.",
		series: []series{
			outcome(authcore.MetricVerifySuccess, "outcome", "success"),
			outcome(authcore.MetricVerifyExpired, "outcome", "expired"),
			outcome(authcore.MetricVerifyInvalid, "outcome", "invalid"),
		},
	},
	{
		name: "authcore.authz.decisions", unit: "{decision}", help: "Guard decisions.",
		series: []series{
			outcome(authcore.MetricAuthzAllowed, "decision", "allowed"),
			outcome(authcore.MetricAuthzDenied, "decision", "denied"),
		},
	},
	{
		name: "authcore.grants.changes", unit: "{change}", help: "Custom permission grant changes.",
		series: []series{
			outcome(authcore.MetricGrantAdded, "op", "grant"),
			outcome(authcore.MetricGrantRevoked, "op", "revoke"),
		},
	},
	{
		name: "authcore.logins", unit: "{login}", help: "Login attempts, by outcome.",
		series: []series{
			outcome(authcore.MetricLoginSuccess, "outcome", "success"),
			outcome(authcore.MetricLoginFailure, "outcome", "invalid_credentials"),
			outcome(authcore.MetricLoginRateLimited, "outcome", "rate_limited"),
			outcome(authcore.MetricLoginInactive, "outcome", "inactive"),
		},
	},
	{
		name: "authcore.refreshes", unit: "{exchange}", help: "Refresh exchanges, by outcome.",
		series: []series{
			outcome(authcore.MetricRefreshSuccess, "outcome", "success"),
			outcome(authcore.MetricRefreshFailure, "outcome", "failure"),
		},
	},
	{
		name: "authcore.password.rehash_needed", unit: "{login}", help: "Logins whose hash is below current cost parameters.",
		series: []series{{id: authcore.MetricPasswordRehashNeeded}},
	},
}

// latencyBounds labels each cumulative bucket with its upper bound.
var latencyBounds = func() [8]attribute.Set {
	var out [8]attribute.Set
	for i, b := range internaldefs.HistogramBounds {
		out[i] = attribute.NewSet(attribute.Float64("le", b))
	}
	out[len(out)-1] = attribute.NewSet(attribute.String("le", "+Inf"))
	return out
}()

type observedGroup struct {
	instrument metric.Int64ObservableCounter
	series     []series
}

// Exporter keeps the callback registration alive until Close.
type Exporter struct {
	source       MetricsSource
	registration metric.Registration
	groups       []observedGroup
	latency      metric.Int64ObservableGauge
	latencyCount metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers the authcore instruments on meter. Pass an
// *authcore.Service as source.
func NewExporter(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source, groups: make([]observedGroup, 0, len(counterGroups))}
	observables := make([]metric.Observable, 0, len(counterGroups)+3)

	for _, g := range counterGroups {
		ins, err := meter.Int64ObservableCounter(g.name, metric.WithDescription(g.help), metric.WithUnit(g.unit))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", g.name, err)
		}
		e.groups = append(e.groups, observedGroup{instrument: ins, series: g.series})
		observables = append(observables, ins)
	}

	var err error
	e.latency, err = meter.Int64ObservableGauge(
		"authcore.tokens.verify.latency.bucket",
		metric.WithDescription("Cumulative verify latency samples at or below le seconds."),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency bucket gauge: %w", err)
	}
	e.latencyCount, err = meter.Int64ObservableGauge(
		"authcore.tokens.verify.latency.count",
		metric.WithDescription("Verify latency samples recorded."),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency count gauge: %w", err)
	}
	e.auditDropped, err = meter.Int64ObservableCounter(
		"authcore.audit.dropped",
		metric.WithDescription(internaldefs.AuditDroppedHelp),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.latency, e.latencyCount, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

// observe takes one snapshot per collection so all instruments agree.
// Counters absent from the snapshot (metrics disabled) are not reported.
func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for _, g := range e.groups {
		for _, s := range g.series {
			v, ok := snap.Counters[s.id]
			if !ok {
				continue
			}
			o.ObserveInt64(g.instrument, int64(v), metric.WithAttributeSet(s.attrs))
		}
	}

	if raw, ok := snap.Histograms[authcore.MetricVerifyLatency]; ok {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, v := range cumulative {
			o.ObserveInt64(e.latency, int64(v), metric.WithAttributeSet(latencyBounds[i]))
		}
		o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
