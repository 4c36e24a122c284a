package clickhouse

import (
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// The query_log templates aggregate per node and weigh the local sums into
// impact scores so heterogeneous resource dimensions rank on one axis:
//
//	io_impact      = read_rows * 100 + read_bytes * 1
//	network_impact = (recv_bytes + send_bytes) * 10
//	cpu_impact     = (user_time_us + system_time_us) * 10000
//	memory_impact  = memory_usage * 10
//	time_impact    = duration_ms * 1000000
//	total_impact   = sum of the five
//
// The weights are a ranking policy; changing them changes how reports
// compare against older runs.
const queryStatsSQL = `
WITH
    sum(query_duration_ms) AS total_query_duration_ms,
    sum(read_rows) AS total_read_rows,
    sum(read_bytes) AS total_read_bytes,
    sum(memory_usage) AS total_memory_usage,
    sum(ProfileEvents['UserTimeMicroseconds']) AS total_user_time_us,
    sum(ProfileEvents['SystemTimeMicroseconds']) AS total_system_time_us,
    sum(ProfileEvents['NetworkReceiveBytes']) AS total_network_receive_bytes,
    sum(ProfileEvents['NetworkSendBytes']) AS total_network_send_bytes
SELECT
    normalized_query_hash,
    any(query) AS query,
    min(event_time) AS min_event_time,
    max(event_time) AS max_event_time,
    total_query_duration_ms,
    total_read_rows,
    total_read_bytes,
    total_memory_usage,
    total_user_time_us,
    total_system_time_us,
    total_network_receive_bytes,
    total_network_send_bytes,
    groupUniqArray(user) AS users,
    arrayDistinct(arrayFlatten(groupArray(databases))) AS databases,
    arrayDistinct(arrayFlatten(groupArray(tables))) AS tables,
    total_read_rows * 100 + total_read_bytes * 1 AS io_impact,
    (total_network_receive_bytes + total_network_send_bytes) * 10 AS network_impact,
    (total_user_time_us + total_system_time_us) * 10000 AS cpu_impact,
    total_memory_usage * 10 AS memory_impact,
    total_query_duration_ms * 1000000 AS time_impact,
    io_impact + network_impact + cpu_impact + memory_impact + time_impact AS total_impact
FROM query_log
WHERE type != 'QueryStart' AND query_kind = 'Select' %s
GROUP BY normalized_query_hash`

// Same shape constrained to one fingerprint; the hash placeholder comes
// before the filter's parameters.
const queryStatsByFingerprintSQL = `
WITH
    sum(query_duration_ms) AS total_query_duration_ms,
    sum(read_rows) AS total_read_rows,
    sum(read_bytes) AS total_read_bytes,
    sum(memory_usage) AS total_memory_usage,
    sum(ProfileEvents['UserTimeMicroseconds']) AS total_user_time_us,
    sum(ProfileEvents['SystemTimeMicroseconds']) AS total_system_time_us,
    sum(ProfileEvents['NetworkReceiveBytes']) AS total_network_receive_bytes,
    sum(ProfileEvents['NetworkSendBytes']) AS total_network_send_bytes
SELECT
    normalized_query_hash,
    any(query) AS query,
    min(event_time) AS min_event_time,
    max(event_time) AS max_event_time,
    total_query_duration_ms,
    total_read_rows,
    total_read_bytes,
    total_memory_usage,
    total_user_time_us,
    total_system_time_us,
    total_network_receive_bytes,
    total_network_send_bytes,
    groupUniqArray(user) AS users,
    arrayDistinct(arrayFlatten(groupArray(databases))) AS databases,
    arrayDistinct(arrayFlatten(groupArray(tables))) AS tables,
    total_read_rows * 100 + total_read_bytes * 1 AS io_impact,
    (total_network_receive_bytes + total_network_send_bytes) * 10 AS network_impact,
    (total_user_time_us + total_system_time_us) * 10000 AS cpu_impact,
    total_memory_usage * 10 AS memory_impact,
    total_query_duration_ms * 1000000 AS time_impact,
    io_impact + network_impact + cpu_impact + memory_impact + time_impact AS total_impact
FROM query_log
WHERE type != 'QueryStart' AND query_kind = 'Select'
  AND normalized_query_hash = ? %s
GROUP BY normalized_query_hash`

const queryTotalsSQL = `
WITH
    sum(query_duration_ms) AS total_query_duration_ms,
    sum(read_rows) AS total_read_rows,
    sum(read_bytes) AS total_read_bytes,
    sum(memory_usage) AS total_memory_usage,
    sum(ProfileEvents['UserTimeMicroseconds']) AS total_user_time_us,
    sum(ProfileEvents['SystemTimeMicroseconds']) AS total_system_time_us,
    sum(ProfileEvents['NetworkReceiveBytes']) AS total_network_receive_bytes,
    sum(ProfileEvents['NetworkSendBytes']) AS total_network_send_bytes
SELECT
    count() AS queries_count,
    total_query_duration_ms,
    total_read_rows,
    total_read_bytes,
    total_memory_usage,
    total_user_time_us,
    total_system_time_us,
    total_network_receive_bytes,
    total_network_send_bytes,
    total_read_rows * 100 + total_read_bytes * 1 AS io_impact,
    (total_network_receive_bytes + total_network_send_bytes) * 10 AS network_impact,
    (total_user_time_us + total_system_time_us) * 10000 AS cpu_impact,
    total_memory_usage * 10 AS memory_impact,
    total_query_duration_ms * 1000000 AS time_impact,
    io_impact + network_impact + cpu_impact + memory_impact + time_impact AS total_impact
FROM query_log
WHERE type != 'QueryStart' AND query_kind = 'Select' %s`

const errorStatsSQL = `
SELECT
    code,
    any(name) AS name,
    sum(value) AS count,
    max(last_error_time) AS last_error_time,
    any(last_error_message) AS last_error_message
FROM system.errors
WHERE 1 = 1
  %s
GROUP BY code
HAVING 1 = 1
  %s`

func scanQueryStats(rows driver.Rows) (QueryStats, error) {
	var s QueryStats
	if err := rows.Scan(
		&s.Fingerprint,
		&s.Query,
		&s.FirstSeen,
		&s.LastSeen,
		&s.DurationMs,
		&s.ReadRows,
		&s.ReadBytes,
		&s.MemoryUsage,
		&s.UserTimeUs,
		&s.SystemTimeUs,
		&s.NetworkReceiveBytes,
		&s.NetworkSendBytes,
		&s.Users,
		&s.Databases,
		&s.Tables,
		&s.IOImpact,
		&s.NetworkImpact,
		&s.CPUImpact,
		&s.MemoryImpact,
		&s.TimeImpact,
		&s.TotalImpact,
	); err != nil {
		return QueryStats{}, fmt.Errorf("%w: %s", ErrInvalidScan, err)
	}
	return s, nil
}

func scanQueryTotals(rows driver.Rows) (QueryTotals, error) {
	var t QueryTotals
	if err := rows.Scan(
		&t.QueriesCount,
		&t.DurationMs,
		&t.ReadRows,
		&t.ReadBytes,
		&t.MemoryUsage,
		&t.UserTimeUs,
		&t.SystemTimeUs,
		&t.NetworkReceiveBytes,
		&t.NetworkSendBytes,
		&t.IOImpact,
		&t.NetworkImpact,
		&t.CPUImpact,
		&t.MemoryImpact,
		&t.TimeImpact,
		&t.TotalImpact,
	); err != nil {
		return QueryTotals{}, fmt.Errorf("%w: %s", ErrInvalidScan, err)
	}
	return t, nil
}

func scanErrorStats(rows driver.Rows) (ErrorStats, error) {
	var e ErrorStats
	if err := rows.Scan(
		&e.Code,
		&e.Name,
		&e.Count,
		&e.LastErrorTime,
		&e.LastErrorMessage,
	); err != nil {
		return ErrorStats{}, fmt.Errorf("%w: %s", ErrInvalidScan, err)
	}
	return e, nil
}
