package checks

import (
	"github.com/pgrls/pgrls/internal/linter"
	"github.com/pgrls/pgrls/internal/models"
)

func init() {
	linter.Register(missingWithCheckCheck{})
}

type missingWithCheckCheck struct{}

func (missingWithCheckCheck) ID() string                     { return "MISSING_WITH_CHECK" }
func (missingWithCheckCheck) Severity() models.LintSeverity { return models.LintMedium }

func (c missingWithCheckCheck) Inspect(table models.TableMeta, policy models.PolicyInfo) []models.LintIssue {
	if !policy.AppliesTo(models.OpInsert) && !policy.AppliesTo(models.OpUpdate) {
		return nil
	}
	if policy.UsingExpression == nil {
		return nil
	}
	if policy.WithCheckExpression != nil {
		return nil
	}
	return []models.LintIssue{{
		Severity:   c.Severity(),
		CheckID:    c.ID(),
		PolicyFQN:  table.Key() + "." + policy.Name,
		IssueText:  "INSERT/UPDATE policy has a using_expression but no with_check_expression; Postgres falls back to using_expression for the check, which may not be intended",
		Expression: *policy.UsingExpression,
		FixHint:    "add an explicit WITH CHECK clause rather than relying on the USING clause fallback",
	}}
}
