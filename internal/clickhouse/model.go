package clickhouse

import (
	"time"
)

// QueryStats is one merged group of the query log, keyed by the server-side
// normalized_query_hash. Counters are cumulative sums, the time bounds are
// the observation window and the identity sets are deduplicated. A row
// scanned from a single node carries that node's local aggregation; merged
// records accumulate across nodes.
type QueryStats struct {
	Fingerprint uint64 `json:"fingerprint" yaml:"fingerprint"`
	Query       string `json:"query" yaml:"query"`

	FirstSeen time.Time `json:"first_seen" yaml:"first_seen"`
	LastSeen  time.Time `json:"last_seen" yaml:"last_seen"`

	DurationMs          uint64 `json:"duration_ms" yaml:"duration_ms"`
	ReadRows            uint64 `json:"read_rows" yaml:"read_rows"`
	ReadBytes           uint64 `json:"read_bytes" yaml:"read_bytes"`
	MemoryUsage         uint64 `json:"memory_usage" yaml:"memory_usage"`
	UserTimeUs          uint64 `json:"user_time_us" yaml:"user_time_us"`
	SystemTimeUs        uint64 `json:"system_time_us" yaml:"system_time_us"`
	NetworkReceiveBytes uint64 `json:"network_receive_bytes" yaml:"network_receive_bytes"`
	NetworkSendBytes    uint64 `json:"network_send_bytes" yaml:"network_send_bytes"`

	Users     []string `json:"users" yaml:"users"`
	Databases []string `json:"databases" yaml:"databases"`
	Tables    []string `json:"tables" yaml:"tables"`

	IOImpact      uint64 `json:"io_impact" yaml:"io_impact"`
	NetworkImpact uint64 `json:"network_impact" yaml:"network_impact"`
	CPUImpact     uint64 `json:"cpu_impact" yaml:"cpu_impact"`
	MemoryImpact  uint64 `json:"memory_impact" yaml:"memory_impact"`
	TimeImpact    uint64 `json:"time_impact" yaml:"time_impact"`
	TotalImpact   uint64 `json:"total_impact" yaml:"total_impact"`
}

// QueryTotals is the ungrouped aggregate over every matching query.
type QueryTotals struct {
	QueriesCount uint64 `json:"queries_count" yaml:"queries_count"`

	DurationMs          uint64 `json:"duration_ms" yaml:"duration_ms"`
	ReadRows            uint64 `json:"read_rows" yaml:"read_rows"`
	ReadBytes           uint64 `json:"read_bytes" yaml:"read_bytes"`
	MemoryUsage         uint64 `json:"memory_usage" yaml:"memory_usage"`
	UserTimeUs          uint64 `json:"user_time_us" yaml:"user_time_us"`
	SystemTimeUs        uint64 `json:"system_time_us" yaml:"system_time_us"`
	NetworkReceiveBytes uint64 `json:"network_receive_bytes" yaml:"network_receive_bytes"`
	NetworkSendBytes    uint64 `json:"network_send_bytes" yaml:"network_send_bytes"`

	IOImpact      uint64 `json:"io_impact" yaml:"io_impact"`
	NetworkImpact uint64 `json:"network_impact" yaml:"network_impact"`
	CPUImpact     uint64 `json:"cpu_impact" yaml:"cpu_impact"`
	MemoryImpact  uint64 `json:"memory_impact" yaml:"memory_impact"`
	TimeImpact    uint64 `json:"time_impact" yaml:"time_impact"`
	TotalImpact   uint64 `json:"total_impact" yaml:"total_impact"`
}

// ErrorStats is one server error code with its cumulative occurrence count
// across nodes. Name and message keep the first-seen value; the timestamp
// keeps the most recent occurrence.
type ErrorStats struct {
	Code             int32     `json:"code" yaml:"code"`
	Name             string    `json:"name" yaml:"name"`
	Count            uint64    `json:"count" yaml:"count"`
	LastErrorTime    time.Time `json:"last_error_time" yaml:"last_error_time"`
	LastErrorMessage string    `json:"last_error_message" yaml:"last_error_message"`
}
