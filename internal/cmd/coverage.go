package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgrls/pgrls/internal/coverage"
	"github.com/pgrls/pgrls/internal/orchestrator"
	"github.com/pgrls/pgrls/internal/policy"
	"github.com/pgrls/pgrls/internal/probe"
	"github.com/pgrls/pgrls/internal/reporter"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Project RLS test results into a per-table access matrix",
	RunE:  runCoverage,
}

var (
	coverageConn                 connFlags
	coverageOutput                outputFlags
	coveragePolicyFile            string
	coverageIncludeSystemSchemas  bool
	coverageParallelism           int
)

func init() {
	addConnFlags(coverageCmd, &coverageConn)
	addOutputFlags(coverageCmd, &coverageOutput)
	coverageCmd.Flags().StringVar(&coveragePolicyFile, "policy", "", "Path to the policy configuration file (required)")
	coverageCmd.Flags().BoolVar(&coverageIncludeSystemSchemas, "include-system-schemas", false, "Include system/internal schemas in discovery")
	coverageCmd.Flags().IntVar(&coverageParallelism, "parallelism", 4, "Number of concurrent probe workers (1-10)")
	coverageCmd.MarkFlagRequired("policy")
}

func runCoverage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := policy.Load(coveragePolicyFile)
	if err != nil {
		return fmt.Errorf("load policy file: %w", err)
	}

	gk, err := openGatekeeper(ctx, coverageConn, coverageParallelism)
	if err != nil {
		return err
	}
	defer gk.Close()

	discovery, err := discover(ctx, gk, coverageIncludeSystemSchemas)
	if err != nil {
		return err
	}

	eng := probe.New(gk.Pool)
	results, err := orchestrator.Run(ctx, eng, gk.Pool, discovery.Tables, discovery.StorageBuckets, cfg, orchestrator.Options{
		IncludeSystemSchemas: coverageIncludeSystemSchemas,
		Parallelism:          coverageParallelism,
	})
	if err != nil {
		return fmt.Errorf("run probes: %w", err)
	}

	report := coverage.Build(discovery.Tables, results)

	rendered, err := reporter.RenderCoverageReport(report, reporter.Format(coverageOutput.Format))
	if err != nil {
		return fmt.Errorf("render coverage report: %w", err)
	}
	return writeOutput(rendered, coverageOutput.Output, coverageOutput.Format, coverageConn.DBName)
}
