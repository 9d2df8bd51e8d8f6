package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/atulya-tantra/authcore"
	"github.com/atulya-tantra/authcore/password"
	"github.com/atulya-tantra/authcore/permission"
	"github.com/redis/go-redis/v9"
)

const loadtestPassword = "Load-Test-Pass-42!"

type loadtestOptions struct {
	users       int
	concurrency int
	ops         int
	logins      int
	redisAddr   string
}

func runLoadTest(env *cliEnv, args []string) error {
	var opts loadtestOptions
	fs := newFlagSet(env, "loadtest")
	fs.IntVar(&opts.users, "users", 1000, "number of distinct subjects")
	fs.IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	fs.IntVar(&opts.ops, "ops", 100000, "operations per token phase (issue, verify, authorize)")
	fs.IntVar(&opts.logins, "logins", 200, "operations in the login phase; 0 skips it")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address for the login limiter; if empty, REDIS_ADDR env or miniredis is used")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.logins < 0 {
		return errors.New("users, concurrency and ops must be > 0; logins must be >= 0")
	}
	if opts.ops < opts.users {
		return errors.New("ops must be >= users so every user receives a token")
	}
	return loadTest(context.Background(), env, opts)
}

func loadTest(ctx context.Context, env *cliEnv, opts loadtestOptions) error {
	addr := opts.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start miniredis: %w", err)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Fprintf(env.stdout, "using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Fprintf(env.stdout, "using redis at %s\n", addr)
	}
	defer cleanup()

	secret, err := password.GenerateToken(32)
	if err != nil {
		return err
	}
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(secret)
	cfg.Limiter.Backend = authcore.LimiterRedis
	cfg.Limiter.KeyPrefix = "authctl-loadtest"
	// Cheapest accepted argon2id cost keeps the login phase about the limiter.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	accounts := &loadtestAccounts{byName: make(map[string]authcore.Account, opts.users)}
	svc, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccounts(accounts).
		Build()
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Fprintf(env.stdout, "seeding %d users...\n", opts.users)
	startSeed := time.Now()
	if err := accounts.seed(svc, opts.users); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	tokens := make([]string, opts.users)
	claims := make([]*authcore.Claims, opts.users)
	issueStats := runPhase(opts.ops, opts.concurrency, 7919, func(r *rand.Rand, i int) error {
		idx := i % opts.users
		acct := accounts.list[idx]
		tok, c, err := svc.IssueAccess(ctx, acct.Subject, acct.Username, acct.Roles, nil)
		if err != nil {
			return err
		}
		// The first pass over the users fills one slot each.
		if i < opts.users {
			tokens[idx] = tok
			claims[idx] = c
		}
		return nil
	})

	verifyStats := runPhase(opts.ops, opts.concurrency, 6151, func(r *rand.Rand, _ int) error {
		_, err := svc.Verify(ctx, tokens[r.Intn(len(tokens))], authcore.KindAccess)
		return err
	})

	catalog := permission.All()
	guard := svc.Guard()
	var denied int64
	authorizeStats := runPhase(opts.ops, opts.concurrency, 4099, func(r *rand.Rand, _ int) error {
		c := claims[r.Intn(len(claims))]
		err := guard.Require(ctx, c, authcore.RequirePermission(catalog[r.Intn(len(catalog))]))
		if errors.Is(err, authcore.ErrPermissionDenied) {
			atomic.AddInt64(&denied, 1)
			return nil
		}
		return err
	})

	fmt.Fprintln(env.stdout, "---- results ----")
	printStats(env, "issue", issueStats)
	printStats(env, "verify", verifyStats)
	printStats(env, "authorize", authorizeStats)
	fmt.Fprintf(env.stdout, "authorize: denied=%d (expected for roles lacking the drawn permission)\n", denied)

	if opts.logins > 0 {
		loginStats := runPhase(opts.logins, opts.concurrency, 2053, func(r *rand.Rand, _ int) error {
			acct := accounts.list[r.Intn(len(accounts.list))]
			_, err := svc.Authenticate(ctx, acct.Username, loadtestPassword)
			return err
		})
		printStats(env, "login", loginStats)
	}

	snap := svc.MetricsSnapshot()
	fmt.Fprintf(env.stdout, "metrics: verify_success=%d verify_invalid=%d authz_denied=%d login_success=%d\n",
		snap.Counters[authcore.MetricVerifySuccess],
		snap.Counters[authcore.MetricVerifyInvalid],
		snap.Counters[authcore.MetricAuthzDenied],
		snap.Counters[authcore.MetricLoginSuccess],
	)
	return nil
}

// runPhase spreads ops calls of fn over concurrency workers and records the
// latency of each call. fn receives a per-worker rand source and the
// operation index.
func runPhase(ops, concurrency int, seedStep int64, fn func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedStep))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	stats := phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
	if total > 0 {
		stats.opsPerS = float64(len(samples)) / total.Seconds()
	}
	return stats
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(env *cliEnv, name string, s phaseStats) {
	fmt.Fprintf(env.stdout, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// loadtestAccounts cycles through every role so the authorize phase sees a
// realistic mix of grants and denials.
type loadtestAccounts struct {
	byName map[string]authcore.Account
	list   []authcore.Account
}

func (a *loadtestAccounts) seed(svc *authcore.Service, n int) error {
	// One hash serves every user; argon2id is the slow part of seeding.
	hash, err := svc.HashPassword(loadtestPassword)
	if err != nil {
		return err
	}
	roles := permission.Roles()
	for i := 0; i < n; i++ {
		acct := authcore.Account{
			Subject:      fmt.Sprintf("sub-%d", i),
			Username:     fmt.Sprintf("user-%d", i),
			Roles:        []permission.Role{roles[i%len(roles)]},
			PasswordHash: hash,
			Active:       true,
		}
		a.byName[acct.Username] = acct
		a.byName[acct.Subject] = acct
		a.list = append(a.list, acct)
	}
	return nil
}

func (a *loadtestAccounts) LookupAccount(_ context.Context, identifier string) (authcore.Account, error) {
	acct, ok := a.byName[identifier]
	if !ok {
		return authcore.Account{}, authcore.ErrAccountNotFound
	}
	return acct, nil
}
