// Package cmd implements the CLI commands for pgrls.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "pgrls",
	Short: "Audit and probe PostgreSQL row-level-security policies",
	Long:  "pgrls discovers, lints, and dynamically probes row-level-security policies on a PostgreSQL (typically Supabase) database under simulated JWT claims.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(coverageCmd)
	rootCmd.AddCommand(snapshotCmd)
}

// Execute runs the root command. Called from main().
func Execute() error {
	return rootCmd.Execute()
}

// connFlags are the connection flags shared by every subcommand.
type connFlags struct {
	DSN      string
	Host     string
	Port     int
	DBName   string
	User     string
	Password string
}

// outputFlags are the output flags shared by every subcommand.
type outputFlags struct {
	Format string
	Output string
}

func addConnFlags(cmd *cobra.Command, f *connFlags) {
	cmd.Flags().StringVar(&f.DSN, "dsn", "", "PostgreSQL connection URI (postgres://...)")
	cmd.Flags().StringVarP(&f.Host, "host", "H", "", "Database host")
	cmd.Flags().IntVarP(&f.Port, "port", "p", 5432, "Database port")
	cmd.Flags().StringVarP(&f.DBName, "dbname", "d", "", "Database name")
	cmd.Flags().StringVarP(&f.User, "user", "U", "", "Database user")
	cmd.Flags().StringVarP(&f.Password, "password", "W", "", "Database password")
}

func addOutputFlags(cmd *cobra.Command, f *outputFlags) {
	cmd.Flags().StringVarP(&f.Format, "format", "f", "json", "Report format (json, markdown)")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "Output file path (default: ./reports/<dbname>_<timestamp>.<ext>)")
}
