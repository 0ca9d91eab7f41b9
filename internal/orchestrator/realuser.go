package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgrls/pgrls/internal/models"
)

// realUserClaims looks up a single auth.users record by email, falling
// back to a string comparison against id, and synthesizes JWT claims from
// (sub, email, role, app_metadata). This is diagnostic: it reveals what the
// named user can actually do, independent of the declared policy file.
func realUserClaims(ctx context.Context, pool *pgxpool.Pool, identifier string) (models.Claims, error) {
	const query = `
SELECT id::text, email, role, COALESCE(raw_app_meta_data, '{}'::jsonb)
FROM auth.users
WHERE email = $1 OR id::text = $1
LIMIT 1
`
	var (
		id, email, role string
		appMetaRaw      []byte
	)
	if err := pool.QueryRow(ctx, query, identifier).Scan(&id, &email, &role, &appMetaRaw); err != nil {
		return nil, fmt.Errorf("look up auth.users for %q: %w", identifier, err)
	}

	var appMeta map[string]any
	if err := json.Unmarshal(appMetaRaw, &appMeta); err != nil {
		return nil, fmt.Errorf("unmarshal app_metadata for %q: %w", identifier, err)
	}

	return models.Claims{
		"sub":           id,
		"email":         email,
		"role":          role,
		"app_metadata":  appMeta,
	}, nil
}

// realUserOverride builds a config containing exactly one ALLOW-everywhere
// scenario per table discovered by the catalog introspector (and per storage
// bucket), not per table already declared in the policy file: per spec,
// real-user mode is diagnostic — it reveals what the named user can actually
// do against everything in scope, independent of the declared policy file.
func realUserOverride(cfg *models.PolicyConfig, claims models.Claims, tables []models.TableMeta, buckets []models.StorageBucketMeta, targetTable string) *models.PolicyConfig {
	scenario := models.Scenario{
		Name:   "real-user",
		Claims: claims,
		Expected: map[models.Op]models.Expectation{
			models.OpSelect: models.ExpectAllow,
			models.OpInsert: models.ExpectAllow,
			models.OpUpdate: models.ExpectAllow,
			models.OpDelete: models.ExpectAllow,
		},
	}

	out := &models.PolicyConfig{
		Tables:         map[string]models.TableTestConfig{},
		StorageBuckets: map[string]models.TableTestConfig{},
		Defaults:       cfg.Defaults,
	}
	for _, t := range tables {
		key := t.Key()
		if targetTable != "" && targetTable != key {
			continue
		}
		out.Tables[key] = models.TableTestConfig{Scenarios: []models.Scenario{scenario}}
	}
	for _, b := range buckets {
		if targetTable != "" && targetTable != b.Name {
			continue
		}
		out.StorageBuckets[b.Name] = models.TableTestConfig{Scenarios: []models.Scenario{scenario}}
	}
	return out
}
