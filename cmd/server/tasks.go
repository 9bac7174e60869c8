package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"certhub/internal/certificate/spreadsheet"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a .xlsx or .csv file of certificates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			sheet, err := spreadsheet.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := a.startDatabase(); err != nil {
				return fmt.Errorf("database unavailable: %w", err)
			}

			summary, err := a.service.Import(ctx, sheet.Rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d rows: %d inserted, %d already present\n",
				summary.Processed, summary.Inserted, summary.Skipped)
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention pass and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.startDatabase(); err != nil {
				a.logger.Warn().Err(err).Msg("database unavailable, only upload files will be swept")
			}
			report := a.sweeper.Sweep(ctx)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if len(report.Errors) > 0 {
				return fmt.Errorf("sweep finished with %d errors", len(report.Errors))
			}
			return nil
		},
	}
}
