package checks

import (
	"strings"

	"github.com/pgrls/pgrls/internal/linter"
	"github.com/pgrls/pgrls/internal/models"
)

func init() {
	linter.Register(noAuthUIDCheckCheck{})
}

type noAuthUIDCheckCheck struct{}

func (noAuthUIDCheckCheck) ID() string                     { return "NO_AUTH_UID_CHECK" }
func (noAuthUIDCheckCheck) Severity() models.LintSeverity { return models.LintHigh }

func (c noAuthUIDCheckCheck) Inspect(table models.TableMeta, policy models.PolicyInfo) []models.LintIssue {
	if !policy.AppliesTo(models.OpSelect) {
		return nil
	}
	if policy.UsingExpression == nil {
		return nil
	}
	normalized := strings.TrimSpace(*policy.UsingExpression)
	if normalized == "" || normalized == "true" || normalized == "(true)" {
		return nil // covered by ALWAYS_TRUE_USING, not this check
	}
	if strings.Contains(normalized, "auth.uid()") {
		return nil
	}
	return []models.LintIssue{{
		Severity:   c.Severity(),
		CheckID:    c.ID(),
		PolicyFQN:  table.Key() + "." + policy.Name,
		IssueText:  "SELECT policy does not reference auth.uid(); confirm it is not meant to scope rows to the caller",
		Expression: *policy.UsingExpression,
		FixHint:    "if this policy should restrict to the owning row, add a comparison against auth.uid()",
	}}
}
