package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FINGERPRINT",
	Short: "Show everything known about one normalized query",
	Long: `Merges the statistics of a single query fingerprint across every node
into one detailed record. The fingerprint is the value printed by
"clickaudit queries", decimal or 0x-prefixed hex.`,
	Example: `  clickaudit inspect 0xdeadbeef --last 24h
  clickaudit inspect 3735928559 --last 7d --out json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fingerprint, err := parseFingerprint(args[0])
		if err != nil {
			return err
		}
		filter, err := buildQueryFilter()
		if err != nil {
			return err
		}
		render, err := newRenderer()
		if err != nil {
			return err
		}

		r, cleanup, err := newRunner(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		detail, err := r.InspectQuery(cmd.Context(), fingerprint, filter)
		if err != nil {
			return err
		}
		if err := render.QueryDetail(detail); err != nil {
			return err
		}
		pushTelemetry()
		return nil
	},
}

func parseFingerprint(s string) (uint64, error) {
	fingerprint, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q, want decimal or 0x-prefixed hex: %w", s, err)
	}
	return fingerprint, nil
}

func init() {
	registerQueryFilterFlags(inspectCmd)
	registerConnectionFlags(inspectCmd)
	rootCmd.AddCommand(inspectCmd)
}
