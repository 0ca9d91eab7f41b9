package checks

import (
	"strings"

	"github.com/pgrls/pgrls/internal/linter"
	"github.com/pgrls/pgrls/internal/models"
)

func init() {
	linter.Register(alwaysTrueWithCheckCheck{})
}

type alwaysTrueWithCheckCheck struct{}

func (alwaysTrueWithCheckCheck) ID() string                     { return "ALWAYS_TRUE_WITH_CHECK" }
func (alwaysTrueWithCheckCheck) Severity() models.LintSeverity { return models.LintCritical }

func (c alwaysTrueWithCheckCheck) Inspect(table models.TableMeta, policy models.PolicyInfo) []models.LintIssue {
	if policy.WithCheckExpression == nil {
		return nil
	}
	normalized := strings.TrimSpace(*policy.WithCheckExpression)
	if normalized != "true" && normalized != "(true)" {
		return nil
	}
	return []models.LintIssue{{
		Severity:   c.Severity(),
		CheckID:    c.ID(),
		PolicyFQN:  table.Key() + "." + policy.Name,
		IssueText:  "with_check_expression is unconditionally true; any row shape can be written",
		Expression: *policy.WithCheckExpression,
		FixHint:    "replace the unconditional WITH CHECK clause with a condition that validates the written row",
	}}
}
