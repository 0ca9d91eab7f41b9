// Package snapshot implements the snapshot + diff engine (C7): it reduces a
// test run to a PolicySnapshot, persists it as YAML, and compares two
// snapshots with the leak/regression/new-permission classification.
package snapshot

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pgrls/pgrls/internal/models"
	"github.com/pgrls/pgrls/internal/rlserrors"
)

// ToSnapshot reduces a TestResults record to the flattened PolicySnapshot
// shape suitable for durable storage.
func ToSnapshot(results models.TestResults) models.PolicySnapshot {
	snap := models.PolicySnapshot{}
	for _, r := range results.Results {
		byScenario, ok := snap[r.TableKey]
		if !ok {
			byScenario = map[string]map[models.Op]models.Outcome{}
			snap[r.TableKey] = byScenario
		}
		byOp, ok := byScenario[r.ScenarioName]
		if !ok {
			byOp = map[models.Op]models.Outcome{}
			byScenario[r.ScenarioName] = byOp
		}
		byOp[r.Op] = r.Actual
	}
	return snap
}

// Save writes snap to path as YAML.
func Save(path string, snap models.PolicySnapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return rlserrors.Wrap(rlserrors.KindConfiguration, "marshal snapshot", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return rlserrors.Wrap(rlserrors.KindConfiguration, "write snapshot file", err)
	}
	return nil
}

// Load reads and parses a snapshot file written by Save.
func Load(path string) (models.PolicySnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rlserrors.Wrap(rlserrors.KindConfiguration, "read snapshot file", err)
	}
	var snap models.PolicySnapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, rlserrors.Wrap(rlserrors.KindConfiguration, "parse snapshot file", err)
	}
	return snap, nil
}

// Diff compares previous against current, classifying every cell-level
// change. isIdentical is true iff no leak, regression, or new-permission
// entry fired.
func Diff(previous, current models.PolicySnapshot) models.SnapshotComparisonResult {
	var result models.SnapshotComparisonResult

	type cellKey struct {
		tableKey     string
		scenarioName string
		op           models.Op
	}

	cells := map[cellKey]struct{}{}
	for tableKey, byScenario := range previous {
		for scenarioName, byOp := range byScenario {
			for op := range byOp {
				cells[cellKey{tableKey, scenarioName, op}] = struct{}{}
			}
		}
	}
	for tableKey, byScenario := range current {
		for scenarioName, byOp := range byScenario {
			for op := range byOp {
				cells[cellKey{tableKey, scenarioName, op}] = struct{}{}
			}
		}
	}

	var keys []cellKey
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].tableKey != keys[j].tableKey {
			return keys[i].tableKey < keys[j].tableKey
		}
		if keys[i].scenarioName != keys[j].scenarioName {
			return keys[i].scenarioName < keys[j].scenarioName
		}
		return keys[i].op < keys[j].op
	})

	for _, k := range keys {
		prevOutcome, prevOK := lookup(previous, k.tableKey, k.scenarioName, k.op)
		currOutcome, currOK := lookup(current, k.tableKey, k.scenarioName, k.op)
		if !currOK {
			continue // a cell that disappeared entirely is not classified
		}

		entry := models.DiffEntry{
			TableKey:     k.tableKey,
			ScenarioName: k.scenarioName,
			Op:           k.op,
			Current:      currOutcome,
		}

		switch {
		case !prevOK:
			entry.Classification = models.NewlyIntroduced
			result.NewPermissions = append(result.NewPermissions, entry)
		case prevOutcome == models.Deny && currOutcome == models.Allow:
			entry.Previous = &prevOutcome
			entry.Classification = models.Leak
			result.Leaks = append(result.Leaks, entry)
		case prevOutcome != currOutcome:
			entry.Previous = &prevOutcome
			entry.Classification = models.Regression
			result.Regressions = append(result.Regressions, entry)
		default:
			// no change; ignored
		}
	}

	return result
}

func lookup(snap models.PolicySnapshot, tableKey, scenarioName string, op models.Op) (models.Outcome, bool) {
	byScenario, ok := snap[tableKey]
	if !ok {
		return 0, false
	}
	byOp, ok := byScenario[scenarioName]
	if !ok {
		return 0, false
	}
	outcome, ok := byOp[op]
	return outcome, ok
}
