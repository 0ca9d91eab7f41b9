// Package reporter renders the core's output types to JSON and markdown.
// Scope is deliberately narrow: spec.md §1 excludes human-readable terminal
// formatting, colored output, and spinners from the core, so this package
// carries only the two machine- and human-readable formats the CLI needs to
// hand a caller something usable without reaching for a templating engine.
package reporter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgrls/pgrls/internal/models"
)

// Format names a supported output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// RenderTestResults renders a TestResults record in the given format.
func RenderTestResults(results models.TestResults, format Format) (string, error) {
	if format == FormatJSON {
		return toJSON(results)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Test Results\n\n")
	fmt.Fprintf(&b, "Total: %d  Passed: %d  Failed: %d  Errored: %d  Skipped: %d  (%dms)\n\n",
		results.Total, results.Passed, results.Failed, results.Errored, results.Skipped, results.DurationMS)
	fmt.Fprintf(&b, "| Table | Scenario | Op | Expected | Actual | Pass |\n|---|---|---|---|---|---|\n")
	for _, r := range results.Results {
		mark := "yes"
		if !r.Passed {
			mark = "no"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n", r.TableKey, r.ScenarioName, r.Op, r.Expected, r.Actual, mark)
	}
	return b.String(), nil
}

// RenderCoverageReport renders a CoverageReport in the given format.
func RenderCoverageReport(report models.CoverageReport, format Format) (string, error) {
	if format == FormatJSON {
		return toJSON(report)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Coverage Report\n\n")
	fmt.Fprintf(&b, "| Table | RLS | Anon SELECT | Anon INSERT | Anon UPDATE | Anon DELETE | Auth SELECT | Auth INSERT | Auth UPDATE | Auth DELETE |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|---|---|---|---|\n")
	for _, row := range report.Rows {
		fmt.Fprintf(&b, "| %s | %v | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			row.TableKey, row.RLSEnabled,
			outcomeOrDash(row.Anonymous, models.OpSelect), outcomeOrDash(row.Anonymous, models.OpInsert),
			outcomeOrDash(row.Anonymous, models.OpUpdate), outcomeOrDash(row.Anonymous, models.OpDelete),
			outcomeOrDash(row.Authenticated, models.OpSelect), outcomeOrDash(row.Authenticated, models.OpInsert),
			outcomeOrDash(row.Authenticated, models.OpUpdate), outcomeOrDash(row.Authenticated, models.OpDelete))
	}
	return b.String(), nil
}

// RenderAuditResults renders lint + sensitive-column findings.
func RenderAuditResults(audit models.AuditResults, format Format) (string, error) {
	if format == FormatJSON {
		return toJSON(audit)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Audit Results\n\n")
	fmt.Fprintf(&b, "Critical: %d  High: %d  Medium: %d  Low: %d\n\n", audit.Lint.Critical, audit.Lint.High, audit.Lint.Medium, audit.Lint.Low)
	for _, issue := range audit.Lint.Issues {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", issue.Severity, issue.CheckID, issue.IssueText)
	}
	if len(audit.SensitiveColumns) > 0 {
		fmt.Fprintf(&b, "\n## Sensitive columns\n\n")
		for _, issue := range audit.SensitiveColumns {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", issue.Severity, issue.CheckID, issue.IssueText)
		}
	}
	return b.String(), nil
}

// RenderSnapshotComparison renders a diff result.
func RenderSnapshotComparison(cmp models.SnapshotComparisonResult, format Format) (string, error) {
	if format == FormatJSON {
		return toJSON(cmp)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Snapshot Diff\n\n")
	if cmp.IsIdentical() {
		fmt.Fprintf(&b, "No changes detected.\n")
		return b.String(), nil
	}
	for _, e := range cmp.Leaks {
		fmt.Fprintf(&b, "- LEAK: %s\n", e)
	}
	for _, e := range cmp.Regressions {
		fmt.Fprintf(&b, "- REGRESSION: %s\n", e)
	}
	for _, e := range cmp.NewPermissions {
		fmt.Fprintf(&b, "- NEW: %s\n", e)
	}
	return b.String(), nil
}

func outcomeOrDash(m map[models.Op]models.Outcome, op models.Op) string {
	if o, ok := m[op]; ok {
		return o.String()
	}
	return "-"
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	return string(data), nil
}
