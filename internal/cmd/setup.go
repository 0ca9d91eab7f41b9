package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pgrls/pgrls/internal/catalog"
	"github.com/pgrls/pgrls/internal/connection"
)

// openGatekeeper connects and runs the privilege-profile diagnostic,
// returning a ready-to-use Gatekeeper sized to parallelism.
func openGatekeeper(ctx context.Context, cf connFlags, parallelism int) (*connection.Gatekeeper, error) {
	gk, err := connection.Connect(ctx, connection.Config{
		Host:        cf.Host,
		Port:        cf.Port,
		DBName:      cf.DBName,
		User:        cf.User,
		Password:    cf.Password,
		DSN:         cf.DSN,
		Parallelism: parallelism,
	})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return gk, nil
}

func discover(ctx context.Context, gk *connection.Gatekeeper, includeSystemSchemas bool) (*catalog.DiscoveryResult, error) {
	result, err := catalog.Discover(ctx, gk.Pool, includeSystemSchemas)
	if err != nil {
		return nil, fmt.Errorf("discover catalog: %w", err)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.TableKey, w.Message)
	}
	return result, nil
}

func writeOutput(content, outputPath, format, dbname string) error {
	path := outputPath
	if path == "" {
		path = MakeDefaultOutputPath(format, dbname)
	} else {
		path = MakeOutputPath(path, format, dbname)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	return nil
}
