package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgrls/pgrls/internal/linter"
	_ "github.com/pgrls/pgrls/internal/linter/checks"
	"github.com/pgrls/pgrls/internal/models"
	"github.com/pgrls/pgrls/internal/reporter"
)

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Statically lint RLS policy expressions and scan for sensitive-column exposure",
	RunE:  runLint,
}

var (
	lintConn                 connFlags
	lintOutput               outputFlags
	lintIncludeSystemSchemas bool
)

func init() {
	addConnFlags(lintCmd, &lintConn)
	addOutputFlags(lintCmd, &lintOutput)
	lintCmd.Flags().BoolVar(&lintIncludeSystemSchemas, "include-system-schemas", false, "Include system/internal schemas in discovery")
}

func runLint(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	gk, err := openGatekeeper(ctx, lintConn, 1)
	if err != nil {
		return err
	}
	defer gk.Close()

	discovery, err := discover(ctx, gk, lintIncludeSystemSchemas)
	if err != nil {
		return err
	}

	lintResults := linter.Lint(discovery.Tables)

	schemas := schemasInScope(discovery.Tables)
	sensitive, err := linter.ScanSensitiveColumns(ctx, gk.Pool, schemas)
	if err != nil {
		return fmt.Errorf("scan sensitive columns: %w", err)
	}

	audit := models.AuditResults{Lint: lintResults, SensitiveColumns: sensitive}

	rendered, err := reporter.RenderAuditResults(audit, reporter.Format(lintOutput.Format))
	if err != nil {
		return fmt.Errorf("render audit results: %w", err)
	}
	if err := writeOutput(rendered, lintOutput.Output, lintOutput.Format, lintConn.DBName); err != nil {
		return err
	}

	if lintResults.Critical > 0 || lintResults.High > 0 || len(sensitive) > 0 {
		os.Exit(1)
	}
	return nil
}

func schemasInScope(tables []models.TableMeta) []string {
	seen := map[string]bool{}
	var schemas []string
	for _, t := range tables {
		if !seen[t.Schema] {
			seen[t.Schema] = true
			schemas = append(schemas, t.Schema)
		}
	}
	return schemas
}
