package models

import "testing"

func TestConnectionContextSafeForProbing(t *testing.T) {
	cases := []struct {
		name string
		ctx  ConnectionContext
		safe bool
	}{
		{"clean role", ConnectionContext{RoleName: "app_test"}, true},
		{"superuser", ConnectionContext{RoleName: "postgres", IsSuperuser: true}, false},
		{"global dml", ConnectionContext{RoleName: "writer", HasGlobalDML: true}, false},
		{"create privilege", ConnectionContext{RoleName: "owner", HasCreatePrivilege: true}, false},
	}
	for _, c := range cases {
		if got := c.ctx.SafeForProbing(); got != c.safe {
			t.Errorf("%s: SafeForProbing() = %v, want %v", c.name, got, c.safe)
		}
	}
}

func TestPolicyInfoAppliesTo(t *testing.T) {
	all := PolicyInfo{IsAllCommands: true}
	if !all.AppliesTo(OpSelect) || !all.AppliesTo(OpDelete) {
		t.Error("an ALL policy should apply to every op")
	}

	selectOnly := PolicyInfo{Command: OpSelect}
	if !selectOnly.AppliesTo(OpSelect) {
		t.Error("a SELECT policy should apply to SELECT")
	}
	if selectOnly.AppliesTo(OpInsert) {
		t.Error("a SELECT policy should not apply to INSERT")
	}
}

func TestTableKey(t *testing.T) {
	if got := TableKey("public", "todos"); got != "public.todos" {
		t.Errorf("TableKey() = %q, want %q", got, "public.todos")
	}
	tm := TableMeta{Schema: "public", Name: "todos"}
	if tm.Key() != "public.todos" {
		t.Errorf("TableMeta.Key() = %q, want %q", tm.Key(), "public.todos")
	}
}

func TestDiffEntryString(t *testing.T) {
	deny := Deny
	e := DiffEntry{
		TableKey:     "public.posts",
		ScenarioName: "anonymous",
		Op:           OpSelect,
		Previous:     &deny,
		Current:      Allow,
	}
	want := "public.posts -> anonymous -> SELECT (changed from DENY to ALLOW)"
	if got := e.String(); got != want {
		t.Errorf("DiffEntry.String() = %q, want %q", got, want)
	}
}

func TestSnapshotComparisonIsIdentical(t *testing.T) {
	empty := SnapshotComparisonResult{}
	if !empty.IsIdentical() {
		t.Error("an empty comparison result should be identical")
	}
	withLeak := SnapshotComparisonResult{Leaks: []DiffEntry{{}}}
	if withLeak.IsIdentical() {
		t.Error("a comparison result with a leak should not be identical")
	}
}
