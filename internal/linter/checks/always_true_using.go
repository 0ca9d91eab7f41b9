package checks

import (
	"strings"

	"github.com/pgrls/pgrls/internal/linter"
	"github.com/pgrls/pgrls/internal/models"
)

func init() {
	linter.Register(alwaysTrueUsingCheck{})
}

type alwaysTrueUsingCheck struct{}

func (alwaysTrueUsingCheck) ID() string                     { return "ALWAYS_TRUE_USING" }
func (alwaysTrueUsingCheck) Severity() models.LintSeverity { return models.LintCritical }

func (c alwaysTrueUsingCheck) Inspect(table models.TableMeta, policy models.PolicyInfo) []models.LintIssue {
	if policy.UsingExpression == nil {
		return nil
	}
	normalized := strings.TrimSpace(*policy.UsingExpression)
	if normalized != "true" && normalized != "(true)" {
		return nil
	}
	return []models.LintIssue{{
		Severity:   c.Severity(),
		CheckID:    c.ID(),
		PolicyFQN:  table.Key() + "." + policy.Name,
		IssueText:  "using_expression is unconditionally true; every role can read/modify every row",
		Expression: *policy.UsingExpression,
		FixHint:    "replace the unconditional USING clause with a condition that scopes access to the caller",
	}}
}
