// Package orchestrator implements the test orchestrator (C5): it expands a
// loaded policy configuration into probe tasks, runs them with bounded
// parallelism, and aggregates a deterministic TestResults record. The
// worker pool shape mirrors a fixed-size goroutine pool pulling tasks off a
// buffered channel and funneling results back through a single channel read
// by one aggregating goroutine, rather than a shared mutex-guarded slice.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/pgrls/pgrls/internal/models"
	"github.com/pgrls/pgrls/internal/probe"
)

// Options configures a test run.
type Options struct {
	TargetTable          string
	IncludeSystemSchemas bool
	Parallelism          int
	AsUser               string // email or stringified user id; enables real-user mode
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

// task is one per-table scheduling unit: a table and every (scenario, op)
// triple declared for it.
type task struct {
	tableKey string
	schema   string
	table    string
	bucketID string
	triples  []triple
}

type triple struct {
	scenario models.Scenario
	op       models.Op
}

// Engine is the subset of the probe engine the orchestrator depends on,
// narrowed to ease substitution in tests.
type Engine interface {
	Probe(ctx context.Context, req models.ProbeRequest) models.ProbeOutcome
}

var _ Engine = (*probe.Engine)(nil)

// Run expands cfg into tasks scoped by tables/buckets, executes them with
// bounded parallelism, and returns an aggregated, sorted TestResults. pool
// is used only for real-user mode's auth.users lookup; it may be nil when
// opts.AsUser is empty.
func Run(ctx context.Context, eng Engine, pool *pgxpool.Pool, tables []models.TableMeta, buckets []models.StorageBucketMeta, cfg *models.PolicyConfig, opts Options) (models.TestResults, error) {
	start := time.Now()

	effectiveCfg := cfg
	if opts.AsUser != "" {
		claims, err := realUserClaims(ctx, pool, opts.AsUser)
		if err != nil {
			return models.TestResults{}, err
		}
		effectiveCfg = realUserOverride(cfg, claims, tables, buckets, opts.TargetTable)
	}

	tasks := buildTasks(tables, buckets, effectiveCfg, opts)

	results := runTasks(ctx, eng, tasks, clampParallelism(opts.Parallelism))

	sort.Slice(results, func(i, j int) bool {
		if results[i].TableKey != results[j].TableKey {
			return results[i].TableKey < results[j].TableKey
		}
		if results[i].ScenarioName != results[j].ScenarioName {
			return results[i].ScenarioName < results[j].ScenarioName
		}
		return results[i].Op < results[j].Op
	})

	agg := models.TestResults{Results: results, DurationMS: time.Since(start).Milliseconds()}
	for _, r := range results {
		agg.Total++
		switch {
		case r.Actual == models.Skipped:
			agg.Skipped++
		case r.Actual == models.ErrorOutcome:
			agg.Errored++
		case r.Passed:
			agg.Passed++
		default:
			agg.Failed++
		}
	}
	return agg, nil
}

func buildTasks(tables []models.TableMeta, buckets []models.StorageBucketMeta, cfg *models.PolicyConfig, opts Options) []task {
	var tasks []task

	for _, t := range tables {
		key := t.Key()
		if opts.TargetTable != "" && opts.TargetTable != key {
			continue
		}
		tc, ok := cfg.Tables[key]
		if !ok {
			continue
		}
		tasks = append(tasks, task{
			tableKey: key,
			schema:   t.Schema,
			table:    t.Name,
			triples:  expandTriples(tc),
		})
	}

	for _, b := range buckets {
		key := b.Name
		if opts.TargetTable != "" && opts.TargetTable != key {
			continue
		}
		tc, ok := cfg.StorageBuckets[key]
		if !ok {
			continue
		}
		tasks = append(tasks, task{
			tableKey: key,
			schema:   "storage",
			table:    "objects",
			bucketID: b.BucketID,
			triples:  expandTriples(tc),
		})
	}

	return tasks
}

// expandTriples flattens each scenario's expected ops into (scenario, op)
// pairs, restricted to tc.CustomOps when the table declares that subset.
func expandTriples(tc models.TableTestConfig) []triple {
	var allowed map[models.Op]bool
	if len(tc.CustomOps) > 0 {
		allowed = make(map[models.Op]bool, len(tc.CustomOps))
		for _, op := range tc.CustomOps {
			allowed[op] = true
		}
	}

	var triples []triple
	for _, scenario := range tc.Scenarios {
		for op := range scenario.Expected {
			if allowed != nil && !allowed[op] {
				continue
			}
			triples = append(triples, triple{scenario: scenario, op: op})
		}
	}
	return triples
}

// runTasks drives a fixed-size worker pool: workers pull tasks off a
// buffered channel and push per-probe TestResults onto a single results
// channel, drained by one aggregating goroutine.
func runTasks(ctx context.Context, eng Engine, tasks []task, workerCount int) []models.TestResult {
	taskCh := make(chan task, len(tasks))
	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)

	resultCh := make(chan models.TestResult, 64)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for t := range taskCh {
				select {
				case <-ctx.Done():
					log.Info().Int("worker", workerID).Str("table", t.tableKey).Msg("orchestrator cancelled before task start")
					return
				default:
				}
				runTask(ctx, eng, t, resultCh)
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var results []models.TestResult
	for r := range resultCh {
		results = append(results, r)
	}
	return results
}

func runTask(ctx context.Context, eng Engine, t task, out chan<- models.TestResult) {
	for _, tr := range t.triples {
		start := time.Now()
		req := models.ProbeRequest{
			Schema:   t.schema,
			Table:    t.table,
			Op:       tr.op,
			Claims:   tr.scenario.Claims,
			BucketID: t.bucketID,
		}
		outcome := eng.Probe(ctx, req)
		expected := tr.scenario.Expected[tr.op]

		result := models.TestResult{
			TableKey:     t.tableKey,
			ScenarioName: tr.scenario.Name,
			Op:           tr.op,
			Expected:     expected,
			Actual:       outcome.Result,
			Passed:       outcome.Result.MatchesExpectation(expected),
			DurationMS:   time.Since(start).Milliseconds(),
		}
		if outcome.Result == models.ErrorOutcome || outcome.Result == models.Skipped {
			result.ErrorMessage = outcome.Reason
		}
		out <- result
	}
}

