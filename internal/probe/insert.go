package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pgrls/pgrls/internal/models"
)

type columnMeta struct {
	Name       string
	DataType   string
	HasDefault bool
}

func loadColumns(ctx context.Context, tx pgx.Tx, schema, table string) ([]columnMeta, error) {
	const query = `
SELECT column_name, data_type, column_default IS NOT NULL
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position
`
	rows, err := tx.Query(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("query information_schema.columns: %w", err)
	}
	defer rows.Close()

	var cols []columnMeta
	for rows.Next() {
		var c columnMeta
		if err := rows.Scan(&c.Name, &c.DataType, &c.HasDefault); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return cols, nil
}

// valueFor implements the INSERT value generator's deterministic rules over
// column name and declared type.
func valueFor(c columnMeta) string {
	lowerType := strings.ToLower(c.DataType)
	switch {
	case (c.Name == "id" || c.Name == "user_id") && lowerType == "uuid":
		return "auth.uid()"
	case lowerType == "uuid":
		return uuidLiteral()
	case strings.Contains(lowerType, "text") || strings.Contains(lowerType, "char"):
		return "'test'"
	case strings.Contains(lowerType, "int") || strings.Contains(lowerType, "numeric") || strings.Contains(lowerType, "decimal"):
		return "1"
	case lowerType == "boolean":
		return "true"
	default:
		return "DEFAULT"
	}
}

func attemptInsert(ctx context.Context, tx pgx.Tx, req models.ProbeRequest) models.ProbeOutcome {
	cols, err := loadColumns(ctx, tx, req.Schema, req.Table)
	if err != nil {
		return models.ProbeOutcome{Result: models.ErrorOutcome, Reason: err.Error()}
	}

	qt := qualifiedTable(req.Schema, req.Table)

	var names []string
	var values []string
	for _, c := range cols {
		if c.Name == "bucket_id" && req.BucketID != "" {
			names = append(names, quoteIdent(c.Name))
			values = append(values, fmt.Sprintf("'%s'", strings.ReplaceAll(req.BucketID, "'", "''")))
			continue
		}
		if c.HasDefault {
			continue
		}
		names = append(names, quoteIdent(c.Name))
		values = append(values, valueFor(c))
	}

	var stmt string
	if len(names) == 0 {
		stmt = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", qt)
	} else {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qt, strings.Join(names, ", "), strings.Join(values, ", "))
	}

	_, err = tx.Exec(ctx, stmt)
	if err != nil {
		return classifyError(err)
	}
	return models.ProbeOutcome{Result: models.Allow}
}
