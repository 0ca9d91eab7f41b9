package linter

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgrls/pgrls/internal/models"
)

// sensitiveColumnPattern matches column names that plausibly hold secrets.
var sensitiveColumnPattern = regexp.MustCompile(`(?i)(password|secret|token|ssn|credit_card|api_key|private_key|salary|bank_account)`)

// exposedToRoles are the roles whose grants on a sensitive column are worth
// flagging; a grant to any internal service role is not.
// information_schema reports grants to PUBLIC with the grantee "PUBLIC".
var exposedToRoles = []string{"anon", "authenticated", "PUBLIC"}

// ScanSensitiveColumns finds columns matching sensitiveColumnPattern that
// are granted to anon, authenticated, or public, and reports each as a HIGH
// issue. This check is independent of the policy linter: it runs off
// information_schema column/privilege catalogs, not pg_policy.
func ScanSensitiveColumns(ctx context.Context, pool *pgxpool.Pool, schemas []string) ([]models.LintIssue, error) {
	const query = `
SELECT c.table_schema, c.table_name, c.column_name, g.grantee
FROM information_schema.columns c
JOIN information_schema.role_column_grants g
  ON g.table_schema = c.table_schema
 AND g.table_name = c.table_name
 AND g.column_name = c.column_name
WHERE c.table_schema = ANY($1)
  AND g.grantee = ANY($2)
  AND g.privilege_type = 'SELECT'
ORDER BY c.table_schema, c.table_name, c.column_name
`
	rows, err := pool.Query(ctx, query, schemas, exposedToRoles)
	if err != nil {
		return nil, fmt.Errorf("query column grants: %w", err)
	}
	defer rows.Close()

	var issues []models.LintIssue
	for rows.Next() {
		var schema, table, column, grantee string
		if err := rows.Scan(&schema, &table, &column, &grantee); err != nil {
			return nil, fmt.Errorf("scan column grant row: %w", err)
		}
		if !sensitiveColumnPattern.MatchString(column) {
			continue
		}
		issues = append(issues, models.LintIssue{
			Severity:  models.LintHigh,
			CheckID:   "SENSITIVE_COLUMN_EXPOSED",
			PolicyFQN: fmt.Sprintf("%s.%s.%s", schema, table, column),
			IssueText: fmt.Sprintf("column %q looks sensitive and is granted SELECT to %q", column, grantee),
			FixHint:   "revoke the column grant or move the column behind a security-definer view",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column grant rows: %w", err)
	}
	return issues, nil
}
