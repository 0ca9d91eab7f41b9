// Package probe implements the probe engine (C4), the heart of the system:
// it executes one (schema, table, op, claims) probe under transactional
// containment and classifies the outcome. No probe ever leaves a durable
// side effect, and no probe ever returns a Go error for an expected SQL
// outcome — every result is a models.ProbeOutcome.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgrls/pgrls/internal/models"
)

const savepointName = "test_probe"

// Engine executes probes against a pool.
type Engine struct {
	pool *pgxpool.Pool
}

// New builds a probe Engine over an already-validated pool.
func New(pool *pgxpool.Pool) *Engine {
	return &Engine{pool: pool}
}

// Probe runs the full BEGIN -> install identity -> SAVEPOINT -> attempt ->
// classify -> ROLLBACK TO SAVEPOINT -> ROLLBACK protocol for req on a fresh
// pooled connection, and never returns a Go error: a failure of the
// containment steps themselves becomes a models.ProbeOutcome of result
// ERROR, and errors from the attempted operation go through classifyError.
func (e *Engine) Probe(ctx context.Context, req models.ProbeRequest) models.ProbeOutcome {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return models.ProbeOutcome{Result: models.ErrorOutcome, Reason: fmt.Sprintf("acquire connection: %v", err)}
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return models.ProbeOutcome{Result: models.ErrorOutcome, Reason: fmt.Sprintf("begin transaction: %v", err)}
	}
	// Unconditional rollback: even on success, nothing the probe did is ever
	// committed. This is the outer half of the double-rollback protocol.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := installIdentity(ctx, tx, req.Claims); err != nil {
		return models.ProbeOutcome{Result: models.ErrorOutcome, Reason: fmt.Sprintf("install identity: %v", err)}
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("SAVEPOINT %s", savepointName)); err != nil {
		return models.ProbeOutcome{Result: models.ErrorOutcome, Reason: fmt.Sprintf("establish savepoint: %v", err)}
	}

	outcome := attempt(ctx, tx, req)

	if _, err := tx.Exec(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", savepointName)); err != nil {
		return models.ProbeOutcome{Result: models.ErrorOutcome, Reason: fmt.Sprintf("rollback to savepoint: %v", err)}
	}

	return outcome
}

// installIdentity sets the session-local GUCs that simulate the caller: the
// JWT claims GUC and the active role. Both are transaction-scoped (the
// "true" argument to set_config, and SET LOCAL) and cannot escape to other
// pool users.
func installIdentity(ctx context.Context, tx pgx.Tx, claims models.Claims) error {
	payload, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}

	if _, err := tx.Exec(ctx, "SELECT set_config('request.jwt.claims', $1, true)", string(payload)); err != nil {
		return fmt.Errorf("set request.jwt.claims: %w", err)
	}

	role := claims.Role()
	sessionRole := "anon"
	if role == "authenticated" {
		sessionRole = "authenticated"
	}
	if !isValidIdentifier(sessionRole) {
		return fmt.Errorf("invalid session role %q", sessionRole)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL ROLE %s", sessionRole)); err != nil {
		return fmt.Errorf("set local role: %w", err)
	}

	if role != "" && role != "authenticated" {
		if _, err := tx.Exec(ctx, "SELECT set_config('role', $1, true)", role); err != nil {
			return fmt.Errorf("set role guc: %w", err)
		}
	}

	return nil
}

func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// quoteIdent double-quotes an identifier for safe interpolation. The caller
// is responsible for validating the identifier came from the catalog, not
// from unsanitized external input.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func qualifiedTable(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}

func attempt(ctx context.Context, tx pgx.Tx, req models.ProbeRequest) models.ProbeOutcome {
	switch req.Op {
	case models.OpSelect:
		return attemptSelect(ctx, tx, req)
	case models.OpInsert:
		return attemptInsert(ctx, tx, req)
	case models.OpUpdate, models.OpDelete:
		return attemptMutation(ctx, tx, req)
	default:
		return models.ProbeOutcome{Result: models.ErrorOutcome, Reason: fmt.Sprintf("unknown operation %s", req.Op)}
	}
}

func attemptSelect(ctx context.Context, tx pgx.Tx, req models.ProbeRequest) models.ProbeOutcome {
	qt := qualifiedTable(req.Schema, req.Table)
	stmt := fmt.Sprintf("SELECT * FROM %s LIMIT 1", qt)
	args := []any{}
	if req.BucketID != "" {
		stmt = fmt.Sprintf("SELECT * FROM %s WHERE bucket_id = $1 LIMIT 1", qt)
		args = append(args, req.BucketID)
	}
	rows, err := tx.Query(ctx, stmt, args...)
	if err != nil {
		return classifyError(err)
	}
	defer rows.Close()

	hasRow := rows.Next()
	rows.Close()
	if err := rows.Err(); err != nil {
		return classifyError(err)
	}
	if hasRow {
		return models.ProbeOutcome{Result: models.Allow}
	}
	return models.ProbeOutcome{Result: models.Deny, Reason: "no row visible under this claim"}
}

// classifyError maps a driver error to an Outcome per the error
// classification table: 42501 or a permission-denied/policy message -> DENY;
// 23505 -> ALLOW (duplicate key, the write-check passed); anything else ->
// ALLOW with the reason captured. An error that is not a Postgres error at
// all (e.g. a lost connection) is returned as ERROR.
func classifyError(err error) models.ProbeOutcome {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501":
			return models.ProbeOutcome{Result: models.Deny, Reason: pgErr.Message}
		case "23505":
			return models.ProbeOutcome{Result: models.Allow, Reason: "duplicate key: write-check passed"}
		}
		msg := strings.ToLower(pgErr.Message)
		if strings.Contains(msg, "permission denied") || strings.Contains(msg, "policy") {
			return models.ProbeOutcome{Result: models.Deny, Reason: pgErr.Message}
		}
		return models.ProbeOutcome{Result: models.Allow, Reason: pgErr.Message}
	}
	return models.ProbeOutcome{Result: models.ErrorOutcome, Reason: err.Error()}
}

func uuidLiteral() string {
	return "'" + uuid.NewString() + "'"
}
