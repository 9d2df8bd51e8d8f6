package permission

import "testing"

// FuzzParsePermission checks that only catalog labels are ever accepted.
func FuzzParsePermission(f *testing.F) {
	for _, p := range All() {
		f.Add(string(p))
	}
	f.Add("")
	f.Add("chat:")
	f.Add(" CHAT:READ ")
	f.Add("chat:read\x00")
	f.Add("admin")

	f.Fuzz(func(t *testing.T, label string) {
		p, err := ParsePermission(label)
		if err != nil {
			return
		}
		if !p.Valid() {
			t.Fatalf("accepted %q as non-catalog permission %q", label, p)
		}
		if !FullSet().Has(p) {
			t.Fatalf("accepted %q outside the full set", p)
		}
	})
}

// FuzzParseRole checks that only enumerated roles are ever accepted.
func FuzzParseRole(f *testing.F) {
	for _, r := range Roles() {
		f.Add(string(r))
	}
	f.Add("")
	f.Add("Administrator")
	f.Add("root")

	f.Fuzz(func(t *testing.T, label string) {
		r, err := ParseRole(label)
		if err != nil {
			return
		}
		if !r.Valid() {
			t.Fatalf("accepted %q as non-enumerated role %q", label, r)
		}
	})
}
