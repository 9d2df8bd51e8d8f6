package permission

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestGrantRevokeRoundTrip(t *testing.T) {
	g := NewGrants()

	before := g.Get("u1")

	changed, err := g.Grant("u1", SystemManage)
	if err != nil || !changed {
		t.Fatalf("Grant = %v, %v", changed, err)
	}
	changed, err = g.Grant("u1", SystemManage)
	if err != nil || changed {
		t.Fatalf("second Grant should be a no-op: %v, %v", changed, err)
	}
	if !g.Get("u1").Has(SystemManage) {
		t.Fatal("expected grant to be visible")
	}

	changed, err = g.Revoke("u1", SystemManage)
	if err != nil || !changed {
		t.Fatalf("Revoke = %v, %v", changed, err)
	}
	changed, err = g.Revoke("u1", SystemManage)
	if err != nil || changed {
		t.Fatalf("second Revoke should be a no-op: %v, %v", changed, err)
	}

	if g.Get("u1") != before {
		t.Fatal("revoke must restore the previous set exactly")
	}
	if g.Len() != 0 {
		t.Fatalf("expected no retained entries, got %d", g.Len())
	}
}

func TestRevokeKeepsOtherGrants(t *testing.T) {
	g := NewGrants()
	_, _ = g.Grant("u1", ChatDelete)
	_, _ = g.Grant("u1", FileDelete)

	if _, err := g.Revoke("u1", ChatDelete); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if got := g.Get("u1"); got != NewSet(FileDelete) {
		t.Fatalf("remaining grants = %s", got)
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", g.Len())
	}
}

func TestGrantUnknownPermission(t *testing.T) {
	g := NewGrants()
	if _, err := g.Grant("u1", "root:everything"); !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
	if _, err := g.Revoke("u1", "root:everything"); !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestGrantsConcurrentAccess(t *testing.T) {
	g := NewGrants()

	const workers = 16
	const perWorker = 500

	var wg sync.WaitGroup
	wg.Add(workers * 2)
	for i := 0; i < workers; i++ {
		uid := fmt.Sprintf("u%d", i%4)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, _ = g.Grant(uid, MemoryDelete)
				_, _ = g.Revoke(uid, MemoryDelete)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s := g.Get(uid)
				if !s.IsEmpty() && s != NewSet(MemoryDelete) {
					t.Errorf("observed partial set %s", s)
					return
				}
			}
		}()
	}
	wg.Wait()

	if g.Len() != 0 {
		t.Fatalf("expected all grants revoked, got %d entries", g.Len())
	}
}
