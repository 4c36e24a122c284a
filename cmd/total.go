package cmd

import (
	"github.com/spf13/cobra"
)

var totalCmd = &cobra.Command{
	Use:   "total",
	Short: "Sum query activity across the whole cluster",
	Example: `  clickaudit total --last 24h
  clickaudit total --from 2026-08-01 --query-user etl --out yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
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

		totals, err := r.TotalQueries(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if err := render.Totals(totals); err != nil {
			return err
		}
		pushTelemetry()
		return nil
	},
}

func init() {
	registerQueryFilterFlags(totalCmd)
	registerConnectionFlags(totalCmd)
	rootCmd.AddCommand(totalCmd)
}
