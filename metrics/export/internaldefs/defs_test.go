package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterDefsUniqueAndPrefixed(t *testing.T) {
	seenID := map[int]bool{}
	seenName := map[string]bool{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "authcore_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
		if seenID[int(def.ID)] || seenName[def.Name] {
			t.Fatalf("duplicate counter %q", def.Name)
		}
		seenID[int(def.ID)] = true
		seenName[def.Name] = true
	}
	if len(HistogramBoundSuffix) != len(HistogramBounds)+1 {
		t.Fatal("every finite bound plus +Inf needs a suffix")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("CumulativeBuckets = %v, want %v", got, want)
	}
}
