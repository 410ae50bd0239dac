package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ecomstudio/internal/cli"
)

func newComputeCommand() *cobra.Command {
	var (
		at     string
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Print the period statistics report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--now must be RFC 3339: %w", err)
				}
				now = t
			}

			cfg, logger, err := initEnv()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			be, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer be.Cleanup()

			report, err := cli.NewStatsEngine(cfg, be.Reader, logger).ComputeAll(ctx, now)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			if pretty {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Complete() {
				return fmt.Errorf("%d combinations defaulted to zero", len(report.Failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "now", "", "Reference instant in RFC 3339 (default: current time)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	return cmd
}
