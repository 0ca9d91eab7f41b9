// Package linter implements the static policy linter (C3): a registry of
// checks run against every decompiled policy expression, plus the
// independent sensitive-column scan. The registry pattern mirrors the
// teacher's internal/check package: each check self-registers via init().
package linter

import (
	"sort"

	"github.com/pgrls/pgrls/internal/models"
)

// Check inspects a single policy and reports zero or more issues.
type Check interface {
	ID() string
	Severity() models.LintSeverity
	Inspect(table models.TableMeta, policy models.PolicyInfo) []models.LintIssue
}

var registry []Check

// Register adds a check to the package-level registry. Called from the
// init() of each file under internal/linter/checks.
func Register(c Check) {
	registry = append(registry, c)
}

// ResetRegistry clears all registered checks. Exposed for tests that need a
// clean slate.
func ResetRegistry() {
	registry = nil
}

// AllRegistered returns every registered check, sorted by ID for
// deterministic run order.
func AllRegistered() []Check {
	out := make([]Check, len(registry))
	copy(out, registry)
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Lint runs every registered check against every policy on every table and
// returns the aggregated, severity-bucketed result.
func Lint(tables []models.TableMeta) models.LintResults {
	var results models.LintResults

	checks := AllRegistered()
	for _, t := range tables {
		for _, p := range t.Policies {
			for _, c := range checks {
				for _, issue := range c.Inspect(t, p) {
					results.Issues = append(results.Issues, issue)
					switch issue.Severity {
					case models.LintCritical:
						results.Critical++
					case models.LintHigh:
						results.High++
					case models.LintMedium:
						results.Medium++
					case models.LintLow:
						results.Low++
					}
				}
			}
		}
	}

	sort.Slice(results.Issues, func(i, j int) bool {
		if results.Issues[i].PolicyFQN != results.Issues[j].PolicyFQN {
			return results.Issues[i].PolicyFQN < results.Issues[j].PolicyFQN
		}
		return results.Issues[i].CheckID < results.Issues[j].CheckID
	})

	return results
}
