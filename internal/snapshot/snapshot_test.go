package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/pgrls/pgrls/internal/models"
)

func TestToSnapshotFromResults(t *testing.T) {
	results := models.TestResults{
		Results: []models.TestResult{
			{TableKey: "public.posts", ScenarioName: "anonymous", Op: models.OpSelect, Actual: models.Deny},
			{TableKey: "public.posts", ScenarioName: "anonymous", Op: models.OpInsert, Actual: models.Deny},
		},
	}
	snap := ToSnapshot(results)
	if snap["public.posts"]["anonymous"][models.OpSelect] != models.Deny {
		t.Errorf("expected SELECT cell to be DENY")
	}
	if snap["public.posts"]["anonymous"][models.OpInsert] != models.Deny {
		t.Errorf("expected INSERT cell to be DENY")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	snap := models.PolicySnapshot{
		"public.posts": {
			"anonymous": {models.OpSelect: models.Deny},
		},
	}
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	if err := Save(path, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded["public.posts"]["anonymous"][models.OpSelect] != models.Deny {
		t.Errorf("round-tripped snapshot lost its value")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Error("expected an error loading a missing snapshot file")
	}
}

// TestDiffLeakClassification is scenario 5 from the spec's concrete
// scenarios: a DENY -> ALLOW transition classifies as a leak with the
// documented message format.
func TestDiffLeakClassification(t *testing.T) {
	previous := models.PolicySnapshot{
		"public.posts": {"anonymous": {models.OpSelect: models.Deny}},
	}
	current := models.PolicySnapshot{
		"public.posts": {"anonymous": {models.OpSelect: models.Allow}},
	}

	result := Diff(previous, current)
	if len(result.Leaks) != 1 {
		t.Fatalf("expected 1 leak, got %d", len(result.Leaks))
	}
	want := "public.posts -> anonymous -> SELECT (changed from DENY to ALLOW)"
	if got := result.Leaks[0].String(); got != want {
		t.Errorf("leak message = %q, want %q", got, want)
	}
	if result.IsIdentical() {
		t.Error("a result with a leak should not be identical")
	}
}

func TestDiffNewlyIntroduced(t *testing.T) {
	previous := models.PolicySnapshot{}
	current := models.PolicySnapshot{
		"public.posts": {"anonymous": {models.OpSelect: models.Deny}},
	}
	result := Diff(previous, current)
	if len(result.NewPermissions) != 1 {
		t.Fatalf("expected 1 newly-introduced entry, got %d", len(result.NewPermissions))
	}
	if result.NewPermissions[0].Previous != nil {
		t.Error("a newly-introduced entry should have a nil Previous")
	}
}

func TestDiffRegressionOnAllowToDeny(t *testing.T) {
	previous := models.PolicySnapshot{
		"public.posts": {"anonymous": {models.OpSelect: models.Allow}},
	}
	current := models.PolicySnapshot{
		"public.posts": {"anonymous": {models.OpSelect: models.Deny}},
	}
	result := Diff(previous, current)
	if len(result.Regressions) != 1 {
		t.Fatalf("expected 1 regression, got %d", len(result.Regressions))
	}
	if len(result.Leaks) != 0 {
		t.Error("an ALLOW -> DENY transition must not classify as a leak")
	}
}

func TestDiffNoChangeIgnored(t *testing.T) {
	previous := models.PolicySnapshot{
		"public.posts": {"anonymous": {models.OpSelect: models.Deny}},
	}
	current := models.PolicySnapshot{
		"public.posts": {"anonymous": {models.OpSelect: models.Deny}},
	}
	result := Diff(previous, current)
	if !result.IsIdentical() {
		t.Error("identical snapshots should diff to IsIdentical() == true")
	}
}

// TestDiffAntisymmetry exercises P6: diff(A,B).leaks corresponds to
// diff(B,A).regressions for the same DENY<->ALLOW transition.
func TestDiffAntisymmetry(t *testing.T) {
	a := models.PolicySnapshot{"public.posts": {"anonymous": {models.OpSelect: models.Deny}}}
	b := models.PolicySnapshot{"public.posts": {"anonymous": {models.OpSelect: models.Allow}}}

	ab := Diff(a, b)
	ba := Diff(b, a)

	if len(ab.Leaks) != 1 {
		t.Fatalf("expected diff(a,b) to have 1 leak, got %d", len(ab.Leaks))
	}
	if len(ba.Regressions) != 1 {
		t.Fatalf("expected diff(b,a) to have 1 regression, got %d", len(ba.Regressions))
	}
}
