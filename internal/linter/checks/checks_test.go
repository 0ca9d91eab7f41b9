package checks

import (
	"testing"

	"github.com/pgrls/pgrls/internal/models"
)

func strp(s string) *string { return &s }

func table(name string) models.TableMeta {
	return models.TableMeta{Schema: "public", Name: name}
}

func TestAlwaysTrueUsingFiresOnlyOnLiteralTrue(t *testing.T) {
	c := alwaysTrueUsingCheck{}
	cases := []struct {
		expr      string
		expectHit bool
	}{
		{"true", true},
		{"(true)", true},
		{" true ", true}, // trimmed internally before comparison
		{"auth.uid() = user_id", false},
		{"true OR auth.uid() = user_id", false},
	}
	for _, c2 := range cases {
		policy := models.PolicyInfo{Name: "p", UsingExpression: strp(c2.expr)}
		issues := c.Inspect(table("leaky"), policy)
		if gotHit := len(issues) > 0; gotHit != c2.expectHit {
			t.Errorf("Inspect(%q) hit=%v, want %v", c2.expr, gotHit, c2.expectHit)
		}
	}
}

func TestAlwaysTrueUsingNilExpression(t *testing.T) {
	c := alwaysTrueUsingCheck{}
	issues := c.Inspect(table("t"), models.PolicyInfo{Name: "p"})
	if len(issues) != 0 {
		t.Errorf("expected no issues for a nil using_expression, got %d", len(issues))
	}
}

func TestNoAuthUIDCheck(t *testing.T) {
	c := noAuthUIDCheckCheck{}

	// SELECT policy referencing auth.uid() should not fire.
	ok := models.PolicyInfo{Name: "owner_select", Command: models.OpSelect, UsingExpression: strp("auth.uid() = user_id")}
	if issues := c.Inspect(table("todos"), ok); len(issues) != 0 {
		t.Errorf("expected no issue when auth.uid() is present, got %d", len(issues))
	}

	// SELECT policy without auth.uid() should fire.
	missing := models.PolicyInfo{Name: "open_select", Command: models.OpSelect, UsingExpression: strp("status = 'public'")}
	if issues := c.Inspect(table("todos"), missing); len(issues) != 1 {
		t.Errorf("expected one issue when auth.uid() is absent, got %d", len(issues))
	}

	// Non-SELECT commands are out of scope for this check.
	insertPolicy := models.PolicyInfo{Name: "ins", Command: models.OpInsert, UsingExpression: strp("status = 'public'")}
	if issues := c.Inspect(table("todos"), insertPolicy); len(issues) != 0 {
		t.Errorf("expected INSERT command to be out of scope, got %d issues", len(issues))
	}
}

func TestPermissiveForAll(t *testing.T) {
	c := permissiveForAllCheck{}
	pub := models.PolicyInfo{Name: "p", Roles: []string{"PUBLIC"}}
	if issues := c.Inspect(table("t"), pub); len(issues) != 1 {
		t.Errorf("expected PUBLIC role to fire PERMISSIVE_FOR_ALL, got %d issues", len(issues))
	}

	scoped := models.PolicyInfo{Name: "p", Roles: []string{"authenticated"}}
	if issues := c.Inspect(table("t"), scoped); len(issues) != 0 {
		t.Errorf("expected a scoped role list not to fire, got %d issues", len(issues))
	}
}

func TestMissingWithCheck(t *testing.T) {
	c := missingWithCheckCheck{}

	noCheck := models.PolicyInfo{Name: "p", Command: models.OpInsert, UsingExpression: strp("true")}
	if issues := c.Inspect(table("t"), noCheck); len(issues) != 1 {
		t.Errorf("expected missing with_check to fire, got %d issues", len(issues))
	}

	withCheck := models.PolicyInfo{Name: "p", Command: models.OpUpdate, UsingExpression: strp("true"), WithCheckExpression: strp("true")}
	if issues := c.Inspect(table("t"), withCheck); len(issues) != 0 {
		t.Errorf("expected a present with_check not to fire, got %d issues", len(issues))
	}

	selectPolicy := models.PolicyInfo{Name: "p", Command: models.OpSelect, UsingExpression: strp("true")}
	if issues := c.Inspect(table("t"), selectPolicy); len(issues) != 0 {
		t.Errorf("expected SELECT to be out of scope for MISSING_WITH_CHECK, got %d issues", len(issues))
	}
}
