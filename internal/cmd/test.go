package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgrls/pgrls/internal/orchestrator"
	"github.com/pgrls/pgrls/internal/policy"
	"github.com/pgrls/pgrls/internal/probe"
	"github.com/pgrls/pgrls/internal/reporter"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Probe RLS policies against a declared policy file and report pass/fail",
	RunE:  runTest,
}

var (
	testConn               connFlags
	testOutput             outputFlags
	testPolicyFile         string
	testTargetTable        string
	testIncludeSystemSchem bool
	testParallelism        int
	testAsUser             string
)

func init() {
	addConnFlags(testCmd, &testConn)
	addOutputFlags(testCmd, &testOutput)
	testCmd.Flags().StringVar(&testPolicyFile, "policy", "", "Path to the policy configuration file (required)")
	testCmd.Flags().StringVar(&testTargetTable, "table", "", "Restrict testing to a single table")
	testCmd.Flags().BoolVar(&testIncludeSystemSchem, "include-system-schemas", false, "Include system/internal schemas in discovery")
	testCmd.Flags().IntVar(&testParallelism, "parallelism", 4, "Number of concurrent probe workers (1-10)")
	testCmd.Flags().StringVar(&testAsUser, "as-user", "", "Run as a real user (email or id) instead of the declared scenarios")
	testCmd.MarkFlagRequired("policy")
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := policy.Load(testPolicyFile)
	if err != nil {
		return fmt.Errorf("load policy file: %w", err)
	}

	gk, err := openGatekeeper(ctx, testConn, testParallelism)
	if err != nil {
		return err
	}
	defer gk.Close()

	discovery, err := discover(ctx, gk, testIncludeSystemSchem)
	if err != nil {
		return err
	}

	eng := probe.New(gk.Pool)
	results, err := orchestrator.Run(ctx, eng, gk.Pool, discovery.Tables, discovery.StorageBuckets, cfg, orchestrator.Options{
		TargetTable:          testTargetTable,
		IncludeSystemSchemas: testIncludeSystemSchem,
		Parallelism:          testParallelism,
		AsUser:               testAsUser,
	})
	if err != nil {
		return fmt.Errorf("run test: %w", err)
	}

	rendered, err := reporter.RenderTestResults(results, reporter.Format(testOutput.Format))
	if err != nil {
		return fmt.Errorf("render results: %w", err)
	}
	if err := writeOutput(rendered, testOutput.Output, testOutput.Format, testConn.DBName); err != nil {
		return err
	}

	if results.Failed > 0 || results.Errored > 0 {
		os.Exit(1)
	}
	return nil
}
