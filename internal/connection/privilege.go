package connection

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgrls/pgrls/internal/models"
)

// loadPrivilegeProfile runs the one-shot diagnostic query that determines
// whether the logged-in role is safe to drive the probe engine with. It
// checks pg_roles for superuser status, looks for a database-level CREATE
// grant, and looks for any table-level INSERT/UPDATE/DELETE grant reachable
// without RLS evaluation (a role holding BYPASSRLS or owning tables it is
// meant to be probed against would otherwise see false ALLOWs).
func loadPrivilegeProfile(ctx context.Context, pool *pgxpool.Pool) (models.ConnectionContext, error) {
	var profile models.ConnectionContext

	const roleQuery = `
SELECT current_user,
       (SELECT rolsuper OR rolbypassrls FROM pg_catalog.pg_roles WHERE rolname = current_user),
       has_database_privilege(current_database(), 'CREATE')
`
	if err := pool.QueryRow(ctx, roleQuery).Scan(&profile.RoleName, &profile.IsSuperuser, &profile.HasCreatePrivilege); err != nil {
		return profile, fmt.Errorf("query role privilege flags: %w", err)
	}

	const grantQuery = `
SELECT table_schema || '.' || table_name || ':' || privilege_type
FROM information_schema.role_table_grants
WHERE grantee = current_user
  AND table_schema NOT IN ('pg_catalog', 'information_schema')
  AND privilege_type IN ('INSERT', 'UPDATE', 'DELETE')
ORDER BY 1
`
	rows, err := pool.Query(ctx, grantQuery)
	if err != nil {
		return profile, fmt.Errorf("query table grants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var grant string
		if err := rows.Scan(&grant); err != nil {
			return profile, fmt.Errorf("scan table grant: %w", err)
		}
		profile.TableSpecificPrivileges = append(profile.TableSpecificPrivileges, grant)
	}
	if err := rows.Err(); err != nil {
		return profile, fmt.Errorf("iterate table grants: %w", err)
	}

	const globalDMLQuery = `
SELECT EXISTS (
    SELECT 1
    FROM information_schema.role_table_grants
    WHERE grantee = current_user
      AND table_schema NOT IN ('pg_catalog', 'information_schema')
      AND privilege_type IN ('INSERT', 'UPDATE', 'DELETE')
      AND is_grantable = 'YES'
) OR EXISTS (
    SELECT 1 FROM pg_catalog.pg_roles r
    JOIN pg_catalog.pg_auth_members m ON m.member = r.oid
    JOIN pg_catalog.pg_roles g ON g.oid = m.roleid
    WHERE r.rolname = current_user AND g.rolname IN ('pg_write_all_data')
)
`
	if err := pool.QueryRow(ctx, globalDMLQuery).Scan(&profile.HasGlobalDML); err != nil {
		return profile, fmt.Errorf("query global dml membership: %w", err)
	}

	return profile, nil
}
