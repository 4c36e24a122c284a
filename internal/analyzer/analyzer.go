// Package analyzer merges the pre-aggregated rows streamed out of the
// cluster into final, ranked reports. It is the single consumer of the
// pipeline channel: node goroutines produce, one analyzer goroutine owns
// the grouping table, so the table needs no locking. Draining runs until
// the producer side closes the channel; ranking happens exactly once,
// over the fully merged state.
package analyzer

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/clickaudit/clickaudit/internal/clickhouse"
)

// SortBy selects the ranking metric for query reports.
type SortBy string

const (
	SortByTotalImpact   SortBy = "total-impact"
	SortByIOImpact      SortBy = "io-impact"
	SortByCPUImpact     SortBy = "cpu-impact"
	SortByMemoryImpact  SortBy = "memory-impact"
	SortByTimeImpact    SortBy = "time-impact"
	SortByNetworkImpact SortBy = "network-impact"
	SortByDuration      SortBy = "duration"
	SortByReadRows      SortBy = "read-rows"
	SortByReadBytes     SortBy = "read-bytes"
	SortByMemoryUsage   SortBy = "memory-usage"
)

var sortByValues = []SortBy{
	SortByTotalImpact,
	SortByIOImpact,
	SortByCPUImpact,
	SortByMemoryImpact,
	SortByTimeImpact,
	SortByNetworkImpact,
	SortByDuration,
	SortByReadRows,
	SortByReadBytes,
	SortByMemoryUsage,
}

// ParseSortBy maps a CLI value onto a ranking metric.
func ParseSortBy(s string) (SortBy, error) {
	for _, v := range sortByValues {
		if s == string(v) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown sort metric %q, valid values: %s", s, SortByNames())
}

// SortByNames lists the valid metric names for CLI help text.
func SortByNames() string {
	names := make([]string, 0, len(sortByValues))
	for _, v := range sortByValues {
		names = append(names, string(v))
	}
	return strings.Join(names, ", ")
}

func (s SortBy) metric(q clickhouse.QueryStats) uint64 {
	switch s {
	case SortByIOImpact:
		return q.IOImpact
	case SortByCPUImpact:
		return q.CPUImpact
	case SortByMemoryImpact:
		return q.MemoryImpact
	case SortByTimeImpact:
		return q.TimeImpact
	case SortByNetworkImpact:
		return q.NetworkImpact
	case SortByDuration:
		return q.DurationMs
	case SortByReadRows:
		return q.ReadRows
	case SortByReadBytes:
		return q.ReadBytes
	case SortByMemoryUsage:
		return q.MemoryUsage
	default:
		return q.TotalImpact
	}
}

// TopQueries drains rows until the channel closes, merges them by
// fingerprint and returns the limit highest groups by the chosen metric.
// Exact metric ties order by fingerprint ascending so rankings are stable
// across runs. limit <= 0 returns every group.
func TopQueries(rows <-chan clickhouse.QueryStats, limit int, sortBy SortBy) []clickhouse.QueryStats {
	groups := make(map[uint64]clickhouse.QueryStats)
	for row := range rows {
		if merged, ok := groups[row.Fingerprint]; ok {
			groups[row.Fingerprint] = mergeQueryStats(merged, row)
		} else {
			row.Users = dedupSorted(row.Users)
			row.Databases = dedupSorted(row.Databases)
			row.Tables = dedupSorted(row.Tables)
			groups[row.Fingerprint] = row
		}
	}

	ranked := make([]clickhouse.QueryStats, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, g)
	}
	slices.SortFunc(ranked, func(a, b clickhouse.QueryStats) int {
		if c := cmp.Compare(sortBy.metric(b), sortBy.metric(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.Fingerprint, b.Fingerprint)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// TotalQueries drains rows until the channel closes and folds every
// node's ungrouped aggregate into one cluster-wide total.
func TotalQueries(rows <-chan clickhouse.QueryTotals) clickhouse.QueryTotals {
	var total clickhouse.QueryTotals
	for row := range rows {
		total = mergeQueryTotals(total, row)
	}
	return total
}

// TopErrors drains rows until the channel closes, merges them by error
// code and ranks by count descending. Count ties order by code ascending;
// that tie-break is fixed, not configurable.
func TopErrors(rows <-chan clickhouse.ErrorStats, limit int) []clickhouse.ErrorStats {
	groups := make(map[int32]clickhouse.ErrorStats)
	for row := range rows {
		if merged, ok := groups[row.Code]; ok {
			groups[row.Code] = mergeErrorStats(merged, row)
		} else {
			groups[row.Code] = row
		}
	}

	ranked := make([]clickhouse.ErrorStats, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, g)
	}
	slices.SortFunc(ranked, func(a, b clickhouse.ErrorStats) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// mergeQueryStats folds two partial aggregations of the same fingerprint.
// Counters and the five impact dimensions are node-local partial sums, so
// they add; the total is recomputed from the merged dimensions, which
// keeps total == sum of parts exact even when an addition saturates.
func mergeQueryStats(a, b clickhouse.QueryStats) clickhouse.QueryStats {
	merged := a

	merged.DurationMs = satAdd(a.DurationMs, b.DurationMs)
	merged.ReadRows = satAdd(a.ReadRows, b.ReadRows)
	merged.ReadBytes = satAdd(a.ReadBytes, b.ReadBytes)
	merged.MemoryUsage = satAdd(a.MemoryUsage, b.MemoryUsage)
	merged.UserTimeUs = satAdd(a.UserTimeUs, b.UserTimeUs)
	merged.SystemTimeUs = satAdd(a.SystemTimeUs, b.SystemTimeUs)
	merged.NetworkReceiveBytes = satAdd(a.NetworkReceiveBytes, b.NetworkReceiveBytes)
	merged.NetworkSendBytes = satAdd(a.NetworkSendBytes, b.NetworkSendBytes)

	if b.FirstSeen.Before(merged.FirstSeen) {
		merged.FirstSeen = b.FirstSeen
	}
	if b.LastSeen.After(merged.LastSeen) {
		merged.LastSeen = b.LastSeen
	}

	merged.Users = dedupSorted(append(merged.Users, b.Users...))
	merged.Databases = dedupSorted(append(merged.Databases, b.Databases...))
	merged.Tables = dedupSorted(append(merged.Tables, b.Tables...))

	merged.IOImpact = satAdd(a.IOImpact, b.IOImpact)
	merged.NetworkImpact = satAdd(a.NetworkImpact, b.NetworkImpact)
	merged.CPUImpact = satAdd(a.CPUImpact, b.CPUImpact)
	merged.MemoryImpact = satAdd(a.MemoryImpact, b.MemoryImpact)
	merged.TimeImpact = satAdd(a.TimeImpact, b.TimeImpact)
	merged.TotalImpact = satSum(merged.IOImpact, merged.NetworkImpact, merged.CPUImpact, merged.MemoryImpact, merged.TimeImpact)

	return merged
}

func mergeQueryTotals(a, b clickhouse.QueryTotals) clickhouse.QueryTotals {
	var merged clickhouse.QueryTotals

	merged.QueriesCount = satAdd(a.QueriesCount, b.QueriesCount)
	merged.DurationMs = satAdd(a.DurationMs, b.DurationMs)
	merged.ReadRows = satAdd(a.ReadRows, b.ReadRows)
	merged.ReadBytes = satAdd(a.ReadBytes, b.ReadBytes)
	merged.MemoryUsage = satAdd(a.MemoryUsage, b.MemoryUsage)
	merged.UserTimeUs = satAdd(a.UserTimeUs, b.UserTimeUs)
	merged.SystemTimeUs = satAdd(a.SystemTimeUs, b.SystemTimeUs)
	merged.NetworkReceiveBytes = satAdd(a.NetworkReceiveBytes, b.NetworkReceiveBytes)
	merged.NetworkSendBytes = satAdd(a.NetworkSendBytes, b.NetworkSendBytes)

	merged.IOImpact = satAdd(a.IOImpact, b.IOImpact)
	merged.NetworkImpact = satAdd(a.NetworkImpact, b.NetworkImpact)
	merged.CPUImpact = satAdd(a.CPUImpact, b.CPUImpact)
	merged.MemoryImpact = satAdd(a.MemoryImpact, b.MemoryImpact)
	merged.TimeImpact = satAdd(a.TimeImpact, b.TimeImpact)
	merged.TotalImpact = satSum(merged.IOImpact, merged.NetworkImpact, merged.CPUImpact, merged.MemoryImpact, merged.TimeImpact)

	return merged
}

// mergeErrorStats keeps the first-seen name and message: nodes report the
// same code with identical symbols, and the first occurrence already
// carries them. Only count and recency accumulate.
func mergeErrorStats(a, b clickhouse.ErrorStats) clickhouse.ErrorStats {
	merged := a
	merged.Count = satAdd(a.Count, b.Count)
	if b.LastErrorTime.After(merged.LastErrorTime) {
		merged.LastErrorTime = b.LastErrorTime
	}
	return merged
}

// satAdd adds unsigned counters, clamping at the maximum instead of
// wrapping.
func satAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return math.MaxUint64
}

func satSum(values ...uint64) uint64 {
	var sum uint64
	for _, v := range values {
		sum = satAdd(sum, v)
	}
	return sum
}

func dedupSorted(values []string) []string {
	if len(values) == 0 {
		return values
	}
	slices.Sort(values)
	return slices.Compact(values)
}
