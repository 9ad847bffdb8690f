package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aquanorte/fieldops/modules/fieldops/importing"
	"github.com/aquanorte/fieldops/modules/fieldops/infrastructure/persistence"
	"github.com/aquanorte/fieldops/modules/fieldops/services"
	"github.com/aquanorte/fieldops/pkg/composables"
	"github.com/aquanorte/fieldops/pkg/configuration"
	"github.com/aquanorte/fieldops/pkg/eventbus"
)

type importCmdOptions struct {
	file       string
	keep       bool
	jsonOutput bool
}

func newImportCmd() *cobra.Command {
	var opts importCmdOptions

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Reconcile a semicolon-delimited work report CSV against the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.file = args[0]
			return runImport(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.keep, "keep", false, "Keep the source file after processing")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the full result as JSON")

	return cmd
}

func runImport(ctx context.Context, opts importCmdOptions) error {
	if strings.TrimSpace(opts.file) == "" {
		return withCode(exitUsage, fmt.Errorf("a CSV file is required"))
	}

	conf := configuration.Use()
	logger := conf.Logger()
	path := resolveUploadPath(conf.Import.UploadsPath, opts.file)

	whitelist := importing.DefaultDebrisWhitelist()
	if path := conf.Import.DebrisWhitelistPath; path != "" {
		loaded, err := importing.LoadDebrisWhitelist(path)
		if err != nil {
			return withCode(exitValidation, fmt.Errorf("debris whitelist: %w", err))
		}
		whitelist = loaded
	}

	pool, err := connectDB(ctx)
	if err != nil {
		return withCode(exitDB, err)
	}
	defer pool.Close()

	ctx = composables.WithPool(ctx, pool)

	svc := services.NewImportService(
		persistence.NewWorkOrderRepository(),
		persistence.NewVehicleRepository(),
		persistence.NewCatalogItemRepository(),
		persistence.NewLineItemRepository(),
		eventbus.NewEventPublisher(logger),
		logger,
		services.ImportServiceOptions{
			Whitelist:  whitelist,
			WindowDays: conf.Import.HeuristicWindowDays,
		},
	)

	var result *importing.Result
	if opts.keep {
		f, err := os.Open(path)
		if err != nil {
			return withCode(exitUsage, err)
		}
		defer f.Close()
		result, err = svc.Import(ctx, f)
		if err != nil {
			return withCode(exitValidation, err)
		}
	} else {
		result, err = svc.ImportFile(ctx, path)
		if err != nil {
			return withCode(exitValidation, err)
		}
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printResult(result)
	}

	if !result.Ok() {
		return withCode(exitValidation, fmt.Errorf("%d group(s) failed", len(result.Errors)))
	}
	return nil
}

// resolveUploadPath falls back to the configured uploads directory for
// relative names that do not exist as given.
func resolveUploadPath(uploadsDir, path string) string {
	if uploadsDir == "" || filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(uploadsDir, path)
}

func printResult(result *importing.Result) {
	fmt.Printf("rows processed:  %d\n", result.Summary.RowsProcessed)
	fmt.Printf("unique groups:   %d (normal %d, additional %d)\n",
		result.Summary.UniqueGroups,
		result.Summary.Breakdown.Normal,
		result.Summary.Breakdown.Additional,
	)
	fmt.Printf("work orders:     %d created, %d updated\n", result.DB.Created, result.DB.Updated)

	for _, warning := range result.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
	for _, groupErr := range result.Errors {
		fmt.Printf("error: group %s: %s\n", groupErr.Key, groupErr.Reason)
		for _, row := range groupErr.SampleRows {
			fmt.Printf("  %s\n", row)
		}
	}
}
