package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/clickaudit/clickaudit/internal/clickhouse"
)

var (
	flagFrom             string
	flagTo               string
	flagLast             string
	flagQueryUsers       []string
	flagDatabases        []string
	flagTables           []string
	flagMinQueryDuration time.Duration
	flagMinReadRows      uint64
	flagMinReadData      string
)

func registerQueryFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagFrom, "from", "", "absolute lower time bound, RFC3339 or YYYY-MM-DD")
	cmd.Flags().StringVar(&flagTo, "to", "", "exclusive upper time bound, RFC3339 or YYYY-MM-DD")
	cmd.Flags().StringVar(&flagLast, "last", "", "relative window ending now, like 90m, 12h or 7d")
	cmd.Flags().StringArrayVar(&flagQueryUsers, "query-user", nil, "only queries run by this user (repeatable)")
	cmd.Flags().StringArrayVar(&flagDatabases, "database", nil, "only queries touching this database (repeatable)")
	cmd.Flags().StringArrayVar(&flagTables, "table", nil, "only queries touching this table, as db.table (repeatable)")
	cmd.Flags().DurationVar(&flagMinQueryDuration, "min-query-duration", 0, "only queries at least this slow")
	cmd.Flags().Uint64Var(&flagMinReadRows, "min-read-rows", 0, "only queries reading at least this many rows")
	cmd.Flags().StringVar(&flagMinReadData, "min-read-data", "", "only queries reading at least this much data, like 512MiB")
	cmd.MarkFlagsMutuallyExclusive("from", "last")
	cmd.MarkFlagsOneRequired("from", "last")
}

func buildQueryFilter() (clickhouse.QueryLogFilter, error) {
	from, err := parseTimestamp(flagFrom)
	if err != nil {
		return clickhouse.QueryLogFilter{}, err
	}
	to, err := parseTimestamp(flagTo)
	if err != nil {
		return clickhouse.QueryLogFilter{}, err
	}
	last, err := parseWindow(flagLast)
	if err != nil {
		return clickhouse.QueryLogFilter{}, err
	}

	var minReadBytes uint64
	if flagMinReadData != "" {
		minReadBytes, err = humanize.ParseBytes(flagMinReadData)
		if err != nil {
			return clickhouse.QueryLogFilter{}, fmt.Errorf("invalid --min-read-data %q: %w", flagMinReadData, err)
		}
	}

	filter := clickhouse.QueryLogFilter{
		From:         from,
		To:           to,
		Last:         last,
		Users:        flagQueryUsers,
		Databases:    flagDatabases,
		Tables:       flagTables,
		MinDuration:  flagMinQueryDuration,
		MinReadRows:  flagMinReadRows,
		MinReadBytes: minReadBytes,
	}
	return filter, filter.Validate()
}

// parseTimestamp accepts RFC3339 or a bare date, which means midnight
// UTC of that day.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q, want RFC3339 or YYYY-MM-DD", s)
}

// parseWindow accepts standard durations plus a day suffix, so --last 7d
// works the way people expect.
func parseWindow(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if days, found := strings.CutSuffix(s, "d"); found && !strings.ContainsAny(days, "hms") {
		n, err := strconv.ParseFloat(days, 64)
		if err == nil && n > 0 {
			return time.Duration(n * 24 * float64(time.Hour)), nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
