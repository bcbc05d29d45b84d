package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/garden-tender/report"
	"github.com/onnwee/garden-tender/resetclock"
	"github.com/onnwee/garden-tender/stock"
)

func newStockCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
		retries int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Fetch the current shop stock and weather once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fetcher, err := stock.NewFetcher(stock.Options{BaseURL: baseURL, Timeout: timeout, Retries: retries})
			if err != nil {
				return err
			}
			res, err := fetcher.Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch stock: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			t := now()
			text := report.Render(report.Update{
				Kind:      report.KindInitial,
				Number:    1,
				Result:    *res,
				Now:       t,
				StartedAt: t,
				NextCheck: resetclock.Until(resetclock.Gear, t),
			})
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", envOr("STOCK_API_BASE_URL", stock.DefaultBaseURL), "stock API base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", stock.DefaultTimeout, "per-request timeout")
	cmd.Flags().IntVar(&retries, "retries", 0, "retries per endpoint on transport errors")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parsed result as JSON")
	return cmd
}

func newResetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resets",
		Short: "Print time until each shop resets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), report.Resets(now()))
			return err
		},
	}
}
