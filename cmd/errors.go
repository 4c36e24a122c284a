package cmd

import (
	"github.com/spf13/cobra"

	"github.com/clickaudit/clickaudit/internal/clickhouse"
)

var (
	flagErrorsLast     string
	flagErrorsMinCount uint64
	flagErrorCodes     []int32
	flagErrorsLimit    int
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Rank the most frequent server errors across the cluster",
	Example: `  clickaudit errors
  clickaudit errors --last 24h --min-count 10
  clickaudit errors --code 241 --code 60 --out json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		last, err := parseWindow(flagErrorsLast)
		if err != nil {
			return err
		}
		filter := clickhouse.ErrorsFilter{
			Last:     last,
			MinCount: flagErrorsMinCount,
			Codes:    flagErrorCodes,
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

		top, err := r.TopErrors(cmd.Context(), filter, flagErrorsLimit)
		if err != nil {
			return err
		}
		if err := render.Errors(top); err != nil {
			return err
		}
		pushTelemetry()
		return nil
	},
}

func init() {
	errorsCmd.Flags().StringVar(&flagErrorsLast, "last", "", "only errors seen within this window, like 12h or 7d")
	errorsCmd.Flags().Uint64Var(&flagErrorsMinCount, "min-count", 0, "only errors with at least this many occurrences")
	errorsCmd.Flags().Int32SliceVar(&flagErrorCodes, "code", nil, "only these error codes (repeatable)")
	errorsCmd.Flags().IntVar(&flagErrorsLimit, "limit", 5, "number of errors to report")
	registerConnectionFlags(errorsCmd)
	rootCmd.AddCommand(errorsCmd)
}
