package cmd

import (
	"github.com/spf13/cobra"

	"github.com/clickaudit/clickaudit/internal/analyzer"
)

var (
	flagSortBy string
	flagLimit  int
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Rank the heaviest normalized queries across the cluster",
	Example: `  clickaudit queries --last 24h
  clickaudit queries --last 7d --sort-by memory-impact --limit 10
  clickaudit queries --from 2026-08-01 --to 2026-08-15 --database shop --out json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sortBy, err := analyzer.ParseSortBy(flagSortBy)
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

		top, err := r.TopQueries(cmd.Context(), filter, flagLimit, sortBy)
		if err != nil {
			return err
		}
		if err := render.Queries(top); err != nil {
			return err
		}
		pushTelemetry()
		return nil
	},
}

func init() {
	queriesCmd.Flags().StringVar(&flagSortBy, "sort-by", string(analyzer.SortByTotalImpact), "ranking metric: "+analyzer.SortByNames())
	queriesCmd.Flags().IntVar(&flagLimit, "limit", 5, "number of queries to report")
	registerQueryFilterFlags(queriesCmd)
	registerConnectionFlags(queriesCmd)
	rootCmd.AddCommand(queriesCmd)
}
