package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ecomstudio/internal/core"
	"ecomstudio/internal/services"
)

func newRecordCommand() *cobra.Command {
	var (
		amount      string
		userID      string
		description string
		at          string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a ledger transaction",
		Long:  `Record a credit transaction. Negative amounts are spends, positive amounts are top-ups.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.RecordRequest{UserID: userID, Amount: amount, Description: description}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC 3339: %w", err)
				}
				req.OccurredAt = t
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

			e, err := be.Ledger.Record(ctx, req)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"id":          e.ID,
				"user_id":     e.UserID,
				"occurred_at": e.OccurredAt.UTC(),
				"amount":      core.FormatCredits(e.Amount),
				"direction":   e.Direction(),
			})
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Signed credit amount, e.g. -12.50 or 100 (required)")
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.Flags().StringVar(&description, "description", "", "Free-form description")
	cmd.Flags().StringVar(&at, "at", "", "Occurrence time in RFC 3339 (default: now)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
