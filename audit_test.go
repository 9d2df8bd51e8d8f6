package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/atulya-tantra/authcore/permission"
)

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func auditTestConfig() Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false
	return cfg
}

// drainEvents closes the service, which flushes the dispatcher, and
// returns everything the sink received.
func drainEvents(svc *Service, sink *ChannelSink) []AuditEvent {
	svc.Close()
	var out []AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventTypes(events []AuditEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.EventType)
	}
	return out
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := NewChannelSink(16)
	env := newTestEnv(t, testConfig(), sink)
	seedAlice(t, env.accounts)

	_, _ = env.svc.Authenticate(context.Background(), "alice", "wrong")

	if got := drainEvents(env.svc, sink); len(got) != 0 {
		t.Fatalf("expected no events when audit is disabled, got %v", eventTypes(got))
	}
}

func TestAuditLoginEvents(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEnv(t, auditTestConfig(), sink)
	seedAlice(t, env.accounts)

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	_, _ = env.svc.Authenticate(ctx, "alice", "super-secret-password")
	pair, err := env.svc.Authenticate(ctx, "alice", alicePassword)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	events := drainEvents(env.svc, sink)
	want := []string{
		auditEventLoginFailure,
		auditEventTokenIssued,
		auditEventTokenIssued,
		auditEventLoginSuccess,
	}
	if strings.Join(eventTypes(events), ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", eventTypes(events), want)
	}

	failure := events[0]
	if failure.Success || failure.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("unexpected failure event: %+v", failure)
	}
	if failure.IP != "198.51.100.33" {
		t.Fatalf("expected client IP, got %q", failure.IP)
	}
	if !failure.Timestamp.Equal(env.clock.Now()) {
		t.Fatalf("timestamp = %v", failure.Timestamp)
	}

	for _, ev := range events {
		raw, _ := json.Marshal(ev)
		for _, secret := range []string{"super-secret-password", alicePassword, pair.AccessToken, pair.RefreshToken, testSecret} {
			if strings.Contains(string(raw), secret) {
				t.Fatalf("event %s leaked sensitive material", ev.EventType)
			}
		}
	}
}

func TestAuditGuardEvents(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEnv(t, auditTestConfig(), sink)
	ctx := context.Background()
	guard := env.svc.Guard()

	_, guest, err := env.svc.IssueAccess(ctx, "u-guest", "guest", []permission.Role{permission.RoleGuest}, nil)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	_ = guard.Require(ctx, guest, RequirePermission(permission.SystemManage))
	_ = guard.Grant(ctx, "u-guest", permission.SystemManage)
	_ = guard.Grant(ctx, "u-guest", permission.SystemManage)
	_ = guard.Revoke(ctx, "u-guest", permission.SystemManage)

	events := drainEvents(env.svc, sink)
	want := []string{
		auditEventTokenIssued,
		auditEventAuthzDenied,
		auditEventGrantAdded,
		auditEventGrantRevoked,
	}
	if strings.Join(eventTypes(events), ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", eventTypes(events), want)
	}
	if events[1].Error != string(auditErrPermissionDenied) || events[1].Subject != "u-guest" {
		t.Fatalf("unexpected denial event: %+v", events[1])
	}
}

func TestAuditTokenRejected(t *testing.T) {
	sink := NewChannelSink(16)
	env := newTestEnv(t, auditTestConfig(), sink)

	_, _ = env.svc.Verify(context.Background(), "not.a.token", KindAccess)

	events := drainEvents(env.svc, sink)
	if len(events) != 1 || events[0].EventType != auditEventTokenRejected {
		t.Fatalf("events = %v", eventTypes(events))
	}
	if events[0].Error != string(auditErrTokenInvalid) {
		t.Fatalf("error code = %q", events[0].Error)
	}
}

func TestAuditDropIfFullCountsDrops(t *testing.T) {
	cfg := auditTestConfig()
	cfg.Audit.BufferSize = 1
	cfg.Audit.DropIfFull = true

	sink := &gateSink{gate: make(chan struct{})}
	env := newTestEnv(t, cfg, sink)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _ = env.svc.Verify(ctx, "garbage", KindAccess)
	}
	if env.svc.AuditDropped() == 0 {
		t.Fatal("expected drops with a blocked sink and a one-slot buffer")
	}
	close(sink.gate)
}

func TestAuditJSONWriterSinkWithService(t *testing.T) {
	var buf syncBuffer
	env := newTestEnv(t, auditTestConfig(), NewJSONWriterSink(&buf))

	if _, _, err := env.svc.IssueRefresh(context.Background(), "u-1", "one"); err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}
	env.svc.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one JSON line, got %d", len(lines))
	}
	var ev AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if ev.EventType != auditEventTokenIssued || ev.Subject != "u-1" || ev.Metadata["kind"] != "refresh" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
