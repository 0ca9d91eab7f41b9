package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pgrls/pgrls/internal/models"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeFile(t, `
defaults:
  anonymous_jwt_claims:
    role: anon
  authenticated_jwt_claims:
    role: authenticated

tables:
  public.todos:
    scenarios:
      - name: anonymous
        claims:
          role: anon
        expected:
          SELECT: DENY
          INSERT: DENY

storage_buckets:
  avatars:
    scenarios:
      - name: authenticated
        expected:
          SELECT: ALLOW
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tc, ok := cfg.Tables["public.todos"]
	if !ok {
		t.Fatalf("expected public.todos table config")
	}
	if len(tc.Scenarios) != 1 || tc.Scenarios[0].Name != "anonymous" {
		t.Fatalf("unexpected scenarios: %+v", tc.Scenarios)
	}
	if tc.Scenarios[0].Expected[models.OpSelect] != models.ExpectDeny {
		t.Errorf("expected SELECT DENY, got %v", tc.Scenarios[0].Expected[models.OpSelect])
	}

	bucket, ok := cfg.StorageBuckets["avatars"]
	if !ok {
		t.Fatalf("expected avatars bucket config")
	}
	if bucket.Scenarios[0].Expected[models.OpSelect] != models.ExpectAllow {
		t.Errorf("expected SELECT ALLOW for avatars bucket")
	}

	if cfg.Defaults.AnonymousJWTClaims["role"] != "anon" {
		t.Errorf("expected anonymous default claims to round-trip")
	}
}

func TestLoadUnknownOpRejected(t *testing.T) {
	path := writeFile(t, `
tables:
  public.todos:
    scenarios:
      - name: anonymous
        expected:
          FROBNICATE: DENY
`)
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unknown op name")
	}
}

func TestLoadUnknownExpectationRejected(t *testing.T) {
	path := writeFile(t, `
tables:
  public.todos:
    scenarios:
      - name: anonymous
        expected:
          SELECT: MAYBE
`)
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unknown expectation value")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error loading a missing policy file")
	}
}

func TestLoadCustomOps(t *testing.T) {
	path := writeFile(t, `
tables:
  public.todos:
    ops:
      - SELECT
      - INSERT
    scenarios:
      - name: anonymous
        expected:
          SELECT: DENY
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tc := cfg.Tables["public.todos"]
	if len(tc.CustomOps) != 2 {
		t.Fatalf("expected 2 custom ops, got %d", len(tc.CustomOps))
	}
	if tc.CustomOps[0] != models.OpSelect || tc.CustomOps[1] != models.OpInsert {
		t.Errorf("unexpected custom ops: %v", tc.CustomOps)
	}
}
