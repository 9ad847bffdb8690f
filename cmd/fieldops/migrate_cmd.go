package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aquanorte/fieldops/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema SQL files in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}
}

func runMigrate(ctx context.Context) error {
	conf := configuration.Use()

	files, err := migrationFiles(conf.MigrationsDir)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("read migrations dir: %w", err))
	}
	if len(files) == 0 {
		return withCode(exitUsage, fmt.Errorf("no .sql files in %s", conf.MigrationsDir))
	}

	pool, err := connectDB(ctx)
	if err != nil {
		return withCode(exitDB, err)
	}
	defer pool.Close()

	for _, file := range files {
		stmts, err := os.ReadFile(file)
		if err != nil {
			return withCode(exitUsage, err)
		}
		if _, err := pool.Exec(ctx, string(stmts)); err != nil {
			return withCode(exitDB, fmt.Errorf("apply %s: %w", filepath.Base(file), err))
		}
		fmt.Printf("applied %s\n", filepath.Base(file))
	}
	return nil
}

// migrationFiles lists the .sql files of a directory in lexical order, which
// is the apply order given the numeric file name prefix convention.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
