package clickhouse

import (
	"strings"
	"time"
)

// clauseBuilder collects predicate clauses and their positional parameters.
// Building never touches the network; the result is a fragment meant to be
// appended after a template's fixed predicate.
type clauseBuilder struct {
	clauses []string
	params  []Param
}

func (b *clauseBuilder) add(clause string, params ...Param) {
	b.clauses = append(b.clauses, clause)
	b.params = append(b.params, params...)
}

func (b *clauseBuilder) fragment() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return "AND " + strings.Join(b.clauses, " AND ")
}

// QueryLogFilter narrows which query_log entries contribute to a report.
// Exactly one of From or Last selects the lower time bound; To is optional
// and exclusive. The zero value of a field means the clause is omitted.
type QueryLogFilter struct {
	From time.Time
	To   time.Time
	Last time.Duration

	Users     []string
	Databases []string
	Tables    []string

	MinDuration  time.Duration
	MinReadRows  uint64
	MinReadBytes uint64
}

// Validate rejects filter combinations before any connection is made.
func (f QueryLogFilter) Validate() error {
	hasFrom := !f.From.IsZero()
	hasLast := f.Last > 0
	if hasFrom == hasLast {
		return ValidationError("time window", "exactly one of an absolute lower bound or a relative window is required")
	}
	if f.Last < 0 {
		return ValidationError("time window", "relative window must be positive")
	}
	return nil
}

// whereClause renders the predicate fragment plus its parameters in
// placeholder order. now anchors the relative window.
func (f QueryLogFilter) whereClause(now time.Time) (string, []Param) {
	var b clauseBuilder

	if !f.From.IsZero() {
		b.add("event_time >= toDateTime(?, 'UTC')", DateTimeParam(f.From))
	} else if f.Last > 0 {
		b.add("event_time >= toDateTime(?, 'UTC')", DateTimeParam(now.UTC().Add(-f.Last)))
	}
	if !f.To.IsZero() {
		b.add("event_time < toDateTime(?, 'UTC')", DateTimeParam(f.To))
	}

	if len(f.Users) > 0 {
		b.add("user IN ("+placeholders(len(f.Users))+")", stringParams(f.Users)...)
	}
	if f.MinReadRows > 0 {
		b.add("read_rows >= ?", UInt64Param(f.MinReadRows))
	}
	if f.MinReadBytes > 0 {
		b.add("read_bytes >= ?", UInt64Param(f.MinReadBytes))
	}
	if f.MinDuration > 0 {
		b.add("query_duration_ms >= ?", UInt64Param(uint64(f.MinDuration.Milliseconds())))
	}

	if len(f.Tables) > 0 {
		b.add("hasAny(query_log.tables, ["+placeholders(len(f.Tables))+"])", stringParams(f.Tables)...)
	}
	if len(f.Databases) > 0 {
		b.add("hasAny(query_log.databases, ["+placeholders(len(f.Databases))+"])", stringParams(f.Databases)...)
	}

	return b.fragment(), b.params
}

// ErrorsFilter narrows which system.errors rows contribute. The count
// threshold and the time bound apply to aggregated groups, so they render
// into HAVING rather than WHERE.
type ErrorsFilter struct {
	Last     time.Duration
	MinCount uint64
	Codes    []int32
}

func (f ErrorsFilter) Validate() error {
	if f.Last < 0 {
		return ValidationError("time window", "relative window must be positive")
	}
	return nil
}

func (f ErrorsFilter) whereClause() (string, []Param) {
	var b clauseBuilder
	if len(f.Codes) > 0 {
		params := make([]Param, 0, len(f.Codes))
		for _, code := range f.Codes {
			params = append(params, Int32Param(code))
		}
		b.add("code IN ("+placeholders(len(f.Codes))+")", params...)
	}
	return b.fragment(), b.params
}

func (f ErrorsFilter) havingClause(now time.Time) (string, []Param) {
	var b clauseBuilder
	if f.MinCount > 0 {
		b.add("count >= ?", UInt64Param(f.MinCount))
	}
	if f.Last > 0 {
		b.add("last_error_time >= toDateTime(?, 'UTC')", DateTimeParam(now.UTC().Add(-f.Last)))
	}
	return b.fragment(), b.params
}
