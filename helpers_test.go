package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/atulya-tantra/authcore/password"
	"github.com/atulya-tantra/authcore/permission"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testConfig keeps argon2 cheap; production checks are off.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.JWT.AccessTTL = 10 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Limiter.Backend = LimiterLocal
	cfg.Limiter.MaxLoginAttempts = 3
	cfg.Limiter.LoginCooldownDuration = time.Minute
	return cfg
}

func newTestHasher(t *testing.T) *password.Argon2 {
	t.Helper()
	h, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

type memAccounts struct {
	mu      sync.Mutex
	byKey   map[string]Account
	lookups int
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byKey: make(map[string]Account)}
}

// put indexes acct under both its username and its subject.
func (m *memAccounts) put(acct Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[acct.Username] = acct
	m.byKey[acct.Subject] = acct
}

func (m *memAccounts) LookupAccount(_ context.Context, identifier string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	acct, ok := m.byKey[identifier]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acct, nil
}

const alicePassword = "Correct-Horse-9!"

func seedAlice(t *testing.T, accounts *memAccounts) Account {
	t.Helper()
	hash, err := newTestHasher(t).Hash(alicePassword)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	acct := Account{
		Subject:      "u-alice",
		Username:     "alice",
		Roles:        []permission.Role{permission.RoleUser},
		PasswordHash: hash,
		Active:       true,
	}
	accounts.put(acct)
	return acct
}

type testEnv struct {
	svc      *Service
	clock    *fakeClock
	accounts *memAccounts
}

func newTestEnv(t *testing.T, cfg Config, sink AuditSink) *testEnv {
	t.Helper()

	clock := newFakeClock()
	accounts := newMemAccounts()
	b := New().
		WithConfig(cfg).
		WithClock(clock.Now).
		WithAccounts(accounts)
	if sink != nil {
		b = b.WithAuditSink(sink)
	}

	svc, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(svc.Close)

	return &testEnv{svc: svc, clock: clock, accounts: accounts}
}
