package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pgrls/pgrls/internal/models"
)

func loadPrimaryKeyColumns(ctx context.Context, tx pgx.Tx, schema, table string) ([]string, error) {
	const query = `
SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name
 AND kcu.table_schema = tc.table_schema
WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.ordinal_position
`
	rows, err := tx.Query(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("query primary key columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan pk column row: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pk column rows: %w", err)
	}
	return cols, nil
}

// attemptMutation implements both UPDATE and DELETE: locate a visible row
// via its primary key, then issue a targeted no-op mutation against it.
func attemptMutation(ctx context.Context, tx pgx.Tx, req models.ProbeRequest) models.ProbeOutcome {
	pkCols, err := loadPrimaryKeyColumns(ctx, tx, req.Schema, req.Table)
	if err != nil {
		return models.ProbeOutcome{Result: models.ErrorOutcome, Reason: err.Error()}
	}
	if len(pkCols) == 0 {
		return models.ProbeOutcome{Result: models.Skipped, Reason: "no primary key — mutation probe would be ambiguous"}
	}

	qt := qualifiedTable(req.Schema, req.Table)
	pkSelect := ""
	for i, c := range pkCols {
		if i > 0 {
			pkSelect += ", "
		}
		pkSelect += quoteIdent(c)
	}

	locateStmt := fmt.Sprintf("SELECT %s FROM %s LIMIT 1", pkSelect, qt)
	locateArgs := []any{}
	if req.BucketID != "" {
		locateStmt = fmt.Sprintf("SELECT %s FROM %s WHERE bucket_id = $1 LIMIT 1", pkSelect, qt)
		locateArgs = append(locateArgs, req.BucketID)
	}
	row := tx.QueryRow(ctx, locateStmt, locateArgs...)
	pkValues := make([]any, len(pkCols))
	pkPtrs := make([]any, len(pkCols))
	for i := range pkValues {
		pkPtrs[i] = &pkValues[i]
	}
	if err := row.Scan(pkPtrs...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Cannot distinguish "policy denies" from "table empty under this
			// claim"; by contract, treat as DENY.
			return models.ProbeOutcome{Result: models.Deny, Reason: "no row visible to locate a mutation target"}
		}
		return classifyError(err)
	}

	whereClause := ""
	args := make([]any, 0, len(pkCols))
	for i, c := range pkCols {
		if i > 0 {
			whereClause += " AND "
		}
		whereClause += fmt.Sprintf("%s = $%d", quoteIdent(c), i+1)
		args = append(args, pkValues[i])
	}

	var stmt string
	switch req.Op {
	case models.OpUpdate:
		stmt = fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s", qt, quoteIdent(pkCols[0]), quoteIdent(pkCols[0]), whereClause)
	case models.OpDelete:
		stmt = fmt.Sprintf("DELETE FROM %s WHERE %s", qt, whereClause)
	}

	tag, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return classifyError(err)
	}
	if tag.RowsAffected() > 0 {
		return models.ProbeOutcome{Result: models.Allow}
	}
	return models.ProbeOutcome{Result: models.Deny, Reason: "mutation affected zero rows"}
}
