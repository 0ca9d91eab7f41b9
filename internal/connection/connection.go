// Package connection implements the connection gatekeeper: it opens a pool
// against the supplied connection string, verifies the logged-in role's
// privilege profile, and refuses to hand back a pool the probe engine could
// not safely drive.
package connection

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgrls/pgrls/internal/models"
	"github.com/pgrls/pgrls/internal/rlserrors"
)

// Config holds the parameters needed to open a pool.
type Config struct {
	Host        string
	Port        int
	DBName      string
	User        string
	Password    string
	DSN         string
	Parallelism int // pool capacity; clamped to [1, 10] per the concurrency model
}

// Gatekeeper owns the pool and the verified privilege profile of the role
// that opened it. It is created once at startup and is read-only for the
// duration of a run.
type Gatekeeper struct {
	Pool    *pgxpool.Pool
	Profile models.ConnectionContext
}

func clampParallelism(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}

// Connect opens a pool from Config, sized to Parallelism, and immediately
// runs the privilege-profile diagnostic. A role that is a superuser, has
// global DML, or has CREATE on the current database is rejected: a
// superuser bypasses RLS entirely (false ALLOWs), and CREATE or global DML
// lets a role escape transactional containment.
func Connect(ctx context.Context, cfg Config) (*Gatekeeper, error) {
	connStr := cfg.DSN
	if connStr == "" {
		connStr = buildConnString(cfg)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, rlserrors.Wrap(rlserrors.KindConnection, "parse connection string", err)
	}
	poolCfg.MaxConns = int32(clampParallelism(cfg.Parallelism))

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, rlserrors.Wrap(rlserrors.KindConnection, "open connection pool", err)
	}

	profile, err := loadPrivilegeProfile(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, rlserrors.Wrap(rlserrors.KindConnection, "load privilege profile", err)
	}

	if !profile.SafeForProbing() {
		pool.Close()
		return nil, rejectionError(profile)
	}

	return &Gatekeeper{Pool: pool, Profile: profile}, nil
}

// Close releases the pool.
func (g *Gatekeeper) Close() {
	g.Pool.Close()
}

func rejectionError(p models.ConnectionContext) error {
	var offending string
	switch {
	case p.IsSuperuser:
		offending = "superuser"
	case p.HasGlobalDML:
		offending = "global DML grant"
	case p.HasCreatePrivilege:
		offending = "CREATE privilege on the current database"
	}
	return rlserrors.New(rlserrors.KindPrivilegeRejection,
		fmt.Sprintf("role %q rejected: has %s, which makes safe probing impossible", p.RoleName, offending))
}

// GetPGVersion returns the PostgreSQL server version string.
func GetPGVersion(ctx context.Context, pool *pgxpool.Pool) (string, error) {
	var version string
	if err := pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("get pg version: %w", err)
	}
	return version, nil
}

func buildConnString(cfg Config) string {
	parts := ""
	if cfg.Host != "" {
		parts += fmt.Sprintf("host=%s ", cfg.Host)
	}
	if cfg.Port != 0 {
		parts += fmt.Sprintf("port=%d ", cfg.Port)
	}
	if cfg.DBName != "" {
		parts += fmt.Sprintf("dbname=%s ", cfg.DBName)
	}
	if cfg.User != "" {
		parts += fmt.Sprintf("user=%s ", cfg.User)
	}
	if cfg.Password != "" {
		parts += fmt.Sprintf("password=%s ", cfg.Password)
	}
	return parts
}
