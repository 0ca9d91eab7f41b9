// Package catalog implements the catalog introspector (C2): it discovers
// relations with row-level security, decompiles their attached policies,
// and enumerates storage buckets, so the rest of the system never has to
// touch pg_catalog directly.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgrls/pgrls/internal/models"
	"github.com/pgrls/pgrls/internal/rlserrors"
)

// Warning is a non-fatal finding surfaced during discovery, such as a table
// with RLS disabled entirely.
type Warning struct {
	TableKey string
	Message  string
}

// DiscoveryResult bundles everything the introspector found.
type DiscoveryResult struct {
	Tables         []models.TableMeta
	StorageBuckets []models.StorageBucketMeta
	Warnings       []Warning
}

// alwaysExcludedSchemas are the true system catalogs, excluded even when
// includeSystemSchemas broadens the scan beyond public.
var alwaysExcludedSchemas = []string{
	"information_schema", "pg_catalog", "pg_toast",
}

// Discover runs the full relation + policy + storage scan. When
// includeSystemSchemas is false, scanRelations restricts to the public
// schema; when true, it broadens to every schema except the true system
// catalogs (information_schema, pg_catalog, pg_toast).
func Discover(ctx context.Context, pool *pgxpool.Pool, includeSystemSchemas bool) (*DiscoveryResult, error) {
	tables, err := scanRelations(ctx, pool, includeSystemSchemas)
	if err != nil {
		return nil, rlserrors.Wrap(rlserrors.KindCatalogQuery, "scan relations", err)
	}

	result := &DiscoveryResult{}

	for i := range tables {
		t := &tables[i]
		policies, err := loadPolicies(ctx, pool, t.Schema, t.Name)
		if err != nil {
			return nil, rlserrors.Wrap(rlserrors.KindCatalogQuery,
				fmt.Sprintf("load policies for %s", t.Key()), err)
		}
		t.Policies = policies

		if !t.RLSEnabled {
			result.Warnings = append(result.Warnings, Warning{
				TableKey: t.Key(),
				Message:  "row-level security is disabled; this table is fully readable/writable by any role with a table grant",
			})
		}
	}
	sort.Slice(tables, func(i, j int) bool {
		if tables[i].Schema != tables[j].Schema {
			return tables[i].Schema < tables[j].Schema
		}
		return tables[i].Name < tables[j].Name
	})
	result.Tables = tables

	buckets, err := scanStorageBuckets(ctx, pool)
	if err != nil {
		return nil, rlserrors.Wrap(rlserrors.KindCatalogQuery, "scan storage buckets", err)
	}
	result.StorageBuckets = buckets

	return result, nil
}

func scanRelations(ctx context.Context, pool *pgxpool.Pool, includeSystemSchemas bool) ([]models.TableMeta, error) {
	query := `
SELECT n.nspname, c.relname, c.relrowsecurity, c.relforcerowsecurity
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind = 'r'
`
	args := []any{}
	if includeSystemSchemas {
		query += " AND n.nspname != ALL($1)"
		args = append(args, alwaysExcludedSchemas)
	} else {
		query += " AND n.nspname = $1"
		args = append(args, "public")
	}
	query += " ORDER BY n.nspname, c.relname"

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pg_class/pg_namespace: %w", err)
	}
	defer rows.Close()

	var tables []models.TableMeta
	for rows.Next() {
		var t models.TableMeta
		if err := rows.Scan(&t.Schema, &t.Name, &t.RLSEnabled, &t.RLSForced); err != nil {
			return nil, fmt.Errorf("scan relation row: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relation rows: %w", err)
	}
	return tables, nil
}

// loadPolicies decompiles every pg_policy row attached to schema.table via
// pg_get_expr, resolving the policy's role OIDs through pg_roles. A policy
// whose polroles is {0} (PUBLIC) resolves to no role names and is reported
// with the single role "PUBLIC".
func loadPolicies(ctx context.Context, pool *pgxpool.Pool, schema, table string) ([]models.PolicyInfo, error) {
	const query = `
SELECT p.polname,
       p.polcmd,
       pg_catalog.pg_get_expr(p.polqual, p.polrelid) AS using_expr,
       pg_catalog.pg_get_expr(p.polwithcheck, p.polrelid) AS check_expr,
       COALESCE(
           array_agg(r.rolname) FILTER (WHERE r.rolname IS NOT NULL),
           ARRAY[]::name[]
       ) AS roles
FROM pg_catalog.pg_policy p
JOIN pg_catalog.pg_class c ON c.oid = p.polrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN LATERAL unnest(p.polroles) AS role_oid ON p.polroles <> '{0}'
LEFT JOIN pg_catalog.pg_roles r ON r.oid = role_oid
WHERE n.nspname = $1 AND c.relname = $2
GROUP BY p.polname, p.polcmd, p.polqual, p.polwithcheck, p.polrelid
ORDER BY p.polname
`
	rows, err := pool.Query(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("query pg_policy: %w", err)
	}
	defer rows.Close()

	var policies []models.PolicyInfo
	for rows.Next() {
		var (
			name       string
			polcmd     string
			usingExpr  *string
			checkExpr  *string
			roleNames  []string
		)
		if err := rows.Scan(&name, &polcmd, &usingExpr, &checkExpr, &roleNames); err != nil {
			return nil, fmt.Errorf("scan policy row: %w", err)
		}
		if len(roleNames) == 0 {
			roleNames = []string{"PUBLIC"}
		}

		p := models.PolicyInfo{
			Name:                name,
			Roles:               roleNames,
			UsingExpression:     usingExpr,
			WithCheckExpression: checkExpr,
		}
		switch polcmd {
		case "*":
			p.IsAllCommands = true
		case "r":
			p.Command = models.OpSelect
		case "a":
			p.Command = models.OpInsert
		case "w":
			p.Command = models.OpUpdate
		case "d":
			p.Command = models.OpDelete
		default:
			p.IsAllCommands = true
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy rows: %w", err)
	}
	return policies, nil
}

// scanStorageBuckets enumerates storage.buckets when the storage schema is
// present; its absence is not an error since bucket auditing is optional in
// a non-Supabase deployment.
func scanStorageBuckets(ctx context.Context, pool *pgxpool.Pool) ([]models.StorageBucketMeta, error) {
	var present bool
	if err := pool.QueryRow(ctx, "SELECT to_regclass('storage.buckets') IS NOT NULL").Scan(&present); err != nil {
		return nil, fmt.Errorf("check storage.buckets availability: %w", err)
	}
	if !present {
		return nil, nil
	}

	rows, err := pool.Query(ctx, "SELECT id, name, public FROM storage.buckets ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query storage.buckets: %w", err)
	}
	defer rows.Close()

	var buckets []models.StorageBucketMeta
	for rows.Next() {
		var b models.StorageBucketMeta
		if err := rows.Scan(&b.BucketID, &b.Name, &b.IsPublic); err != nil {
			return nil, fmt.Errorf("scan bucket row: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bucket rows: %w", err)
	}

	if len(buckets) > 0 {
		sharedPolicies, err := loadPolicies(ctx, pool, "storage", "objects")
		if err != nil {
			return nil, fmt.Errorf("load storage.objects policies: %w", err)
		}
		for i := range buckets {
			buckets[i].Policies = sharedPolicies
		}
	}

	return buckets, nil
}
