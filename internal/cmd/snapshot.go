package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgrls/pgrls/internal/orchestrator"
	"github.com/pgrls/pgrls/internal/policy"
	"github.com/pgrls/pgrls/internal/probe"
	"github.com/pgrls/pgrls/internal/reporter"
	"github.com/pgrls/pgrls/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run probes and persist a policy snapshot for later regression detection",
	RunE:  runSnapshot,
}

var (
	snapshotConn                connFlags
	snapshotPolicyFile          string
	snapshotOutPath             string
	snapshotIncludeSystemSchemas bool
	snapshotParallelism         int
)

func init() {
	addConnFlags(snapshotCmd, &snapshotConn)
	snapshotCmd.Flags().StringVar(&snapshotPolicyFile, "policy", "", "Path to the policy configuration file (required)")
	snapshotCmd.Flags().StringVar(&snapshotOutPath, "out", "snapshot.yaml", "Path to write the snapshot file")
	snapshotCmd.Flags().BoolVar(&snapshotIncludeSystemSchemas, "include-system-schemas", false, "Include system/internal schemas in discovery")
	snapshotCmd.Flags().IntVar(&snapshotParallelism, "parallelism", 4, "Number of concurrent probe workers (1-10)")
	snapshotCmd.MarkFlagRequired("policy")

	snapshotCmd.AddCommand(diffCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := policy.Load(snapshotPolicyFile)
	if err != nil {
		return fmt.Errorf("load policy file: %w", err)
	}

	gk, err := openGatekeeper(ctx, snapshotConn, snapshotParallelism)
	if err != nil {
		return err
	}
	defer gk.Close()

	discovery, err := discover(ctx, gk, snapshotIncludeSystemSchemas)
	if err != nil {
		return err
	}

	eng := probe.New(gk.Pool)
	results, err := orchestrator.Run(ctx, eng, gk.Pool, discovery.Tables, discovery.StorageBuckets, cfg, orchestrator.Options{
		IncludeSystemSchemas: snapshotIncludeSystemSchemas,
		Parallelism:          snapshotParallelism,
	})
	if err != nil {
		return fmt.Errorf("run probes: %w", err)
	}

	snap := snapshot.ToSnapshot(results)
	if err := snapshot.Save(snapshotOutPath, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote snapshot to %s\n", snapshotOutPath)
	return nil
}

var diffCmd = &cobra.Command{
	Use:   "diff <previous> <current>",
	Short: "Compare two policy snapshots and classify changes",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

var diffOutput outputFlags

func init() {
	addOutputFlags(diffCmd, &diffOutput)
}

func runDiff(cmd *cobra.Command, args []string) error {
	previous, err := snapshot.Load(args[0])
	if err != nil {
		return fmt.Errorf("load previous snapshot: %w", err)
	}
	current, err := snapshot.Load(args[1])
	if err != nil {
		return fmt.Errorf("load current snapshot: %w", err)
	}

	result := snapshot.Diff(previous, current)

	rendered, err := reporter.RenderSnapshotComparison(result, reporter.Format(diffOutput.Format))
	if err != nil {
		return fmt.Errorf("render diff: %w", err)
	}
	if err := writeOutput(rendered, diffOutput.Output, diffOutput.Format, ""); err != nil {
		return err
	}

	if len(result.Leaks) > 0 {
		os.Exit(1)
	}
	return nil
}
