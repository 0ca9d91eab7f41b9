package checks

import (
	"github.com/pgrls/pgrls/internal/linter"
	"github.com/pgrls/pgrls/internal/models"
)

func init() {
	linter.Register(permissiveForAllCheck{})
}

type permissiveForAllCheck struct{}

func (permissiveForAllCheck) ID() string                     { return "PERMISSIVE_FOR_ALL" }
func (permissiveForAllCheck) Severity() models.LintSeverity { return models.LintMedium }

func (c permissiveForAllCheck) Inspect(table models.TableMeta, policy models.PolicyInfo) []models.LintIssue {
	for _, role := range policy.Roles {
		if role == "PUBLIC" {
			return []models.LintIssue{{
				Severity:  c.Severity(),
				CheckID:   c.ID(),
				PolicyFQN: table.Key() + "." + policy.Name,
				IssueText: "policy applies to PUBLIC rather than a named role; it evaluates for every connecting role",
				FixHint:   "scope the policy's TO clause to the specific roles it is meant to govern",
			}}
		}
	}
	return nil
}
