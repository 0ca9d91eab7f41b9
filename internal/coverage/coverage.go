// Package coverage implements the coverage report builder (C6): it
// projects TestResults and table metadata into a per-table access matrix
// (role x op), sorted by (schema, name).
package coverage

import (
	"sort"
	"strings"

	"github.com/pgrls/pgrls/internal/models"
)

const (
	anonymousScenario     = "anonymous"
	authenticatedScenario = "authenticated"
)

// allowAllOps is the synthetic matrix used for tables with RLS disabled:
// access is gated only by grants, which this engine does not model, so
// every op is reported ALLOW to match the observable security semantic.
func allowAllOps() map[models.Op]models.Outcome {
	m := map[models.Op]models.Outcome{}
	for _, op := range models.AllOps {
		m[op] = models.Allow
	}
	return m
}

// Build projects results against tables into a sorted CoverageReport.
// Tables with RLS disabled receive a synthetic full-ALLOW row and any
// results for them are ignored. Build issues no probes itself; the
// orchestrator does not skip RLS-disabled tables, so a declared one is
// still probed before its results are discarded here.
func Build(tables []models.TableMeta, results models.TestResults) models.CoverageReport {
	byTable := map[string][]models.TestResult{}
	for _, r := range results.Results {
		byTable[r.TableKey] = append(byTable[r.TableKey], r)
	}

	var rows []models.CoverageRow
	for _, t := range tables {
		row := models.CoverageRow{
			TableKey:      t.Key(),
			RLSEnabled:    t.RLSEnabled,
			Anonymous:     map[models.Op]models.Outcome{},
			Authenticated: map[models.Op]models.Outcome{},
		}
		if !t.RLSEnabled {
			row.Anonymous = allowAllOps()
			row.Authenticated = allowAllOps()
			rows = append(rows, row)
			continue
		}
		for _, r := range byTable[t.Key()] {
			if strings.EqualFold(r.ScenarioName, anonymousScenario) {
				row.Anonymous[r.Op] = r.Actual
			}
			if strings.EqualFold(r.ScenarioName, authenticatedScenario) {
				row.Authenticated[r.Op] = r.Actual
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].TableKey < rows[j].TableKey })
	return models.CoverageReport{Rows: rows}
}
