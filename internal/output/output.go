// Package output renders the analyzer's reports. Text is the default
// for terminals; json and yaml emit the full record shape for piping
// into other tooling.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	yaml "gopkg.in/yaml.v3"

	"github.com/clickaudit/clickaudit/internal/clickhouse"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// queryTextWidth bounds the query column so wide SQL does not blow up
// the table layout.
const queryTextWidth = 30

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatYAML:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q, valid values: text, json, yaml", s)
}

type Renderer struct {
	w      io.Writer
	format Format
}

func NewRenderer(w io.Writer, format Format) *Renderer {
	return &Renderer{w: w, format: format}
}

// Queries renders the ranked query report.
func (r *Renderer) Queries(stats []clickhouse.QueryStats) error {
	return r.render(stats, func() *uitable.Table {
		table := uitable.New()
		headerfmt := color.New(color.FgGreen, color.Underline).SprintFunc()
		table.AddRow(
			headerfmt("FINGERPRINT"), headerfmt("QUERY"), headerfmt("DURATION"),
			headerfmt("READ ROWS"), headerfmt("READ DATA"), headerfmt("MEMORY"),
			headerfmt("TOTAL IMPACT"),
		)
		for _, q := range stats {
			table.AddRow(
				fmt.Sprintf("%#x", q.Fingerprint),
				truncateQuery(q.Query, queryTextWidth),
				formatMillis(q.DurationMs),
				formatCount(q.ReadRows),
				humanize.IBytes(q.ReadBytes),
				humanize.IBytes(q.MemoryUsage),
				formatCount(q.TotalImpact),
			)
		}
		return table
	})
}

// QueryDetail renders a single query group vertically with nothing
// truncated.
func (r *Renderer) QueryDetail(q clickhouse.QueryStats) error {
	return r.render(q, func() *uitable.Table {
		table := uitable.New()
		headerfmt := color.New(color.FgGreen).SprintFunc()
		table.AddRow(headerfmt("Fingerprint:"), fmt.Sprintf("%#x", q.Fingerprint))
		table.AddRow(headerfmt("Query:"), collapseWhitespace(q.Query))
		table.AddRow(headerfmt("First seen:"), formatTime(q.FirstSeen))
		table.AddRow(headerfmt("Last seen:"), formatTime(q.LastSeen))
		table.AddRow(headerfmt("Users:"), strings.Join(q.Users, ", "))
		table.AddRow(headerfmt("Databases:"), strings.Join(q.Databases, ", "))
		table.AddRow(headerfmt("Tables:"), strings.Join(q.Tables, ", "))
		table.AddRow(headerfmt("Duration:"), formatMillis(q.DurationMs))
		table.AddRow(headerfmt("Read rows:"), formatCount(q.ReadRows))
		table.AddRow(headerfmt("Read data:"), humanize.IBytes(q.ReadBytes))
		table.AddRow(headerfmt("Memory:"), humanize.IBytes(q.MemoryUsage))
		table.AddRow(headerfmt("User CPU:"), formatMicros(q.UserTimeUs))
		table.AddRow(headerfmt("System CPU:"), formatMicros(q.SystemTimeUs))
		table.AddRow(headerfmt("Network in:"), humanize.IBytes(q.NetworkReceiveBytes))
		table.AddRow(headerfmt("Network out:"), humanize.IBytes(q.NetworkSendBytes))
		table.AddRow(headerfmt("IO impact:"), formatCount(q.IOImpact))
		table.AddRow(headerfmt("Network impact:"), formatCount(q.NetworkImpact))
		table.AddRow(headerfmt("CPU impact:"), formatCount(q.CPUImpact))
		table.AddRow(headerfmt("Memory impact:"), formatCount(q.MemoryImpact))
		table.AddRow(headerfmt("Time impact:"), formatCount(q.TimeImpact))
		table.AddRow(headerfmt("Total impact:"), formatCount(q.TotalImpact))
		return table
	})
}

// Totals renders the cluster-wide aggregate.
func (r *Renderer) Totals(t clickhouse.QueryTotals) error {
	return r.render(t, func() *uitable.Table {
		table := uitable.New()
		headerfmt := color.New(color.FgGreen).SprintFunc()
		table.AddRow(headerfmt("Queries:"), formatCount(t.QueriesCount))
		table.AddRow(headerfmt("Duration:"), formatMillis(t.DurationMs))
		table.AddRow(headerfmt("Read rows:"), formatCount(t.ReadRows))
		table.AddRow(headerfmt("Read data:"), humanize.IBytes(t.ReadBytes))
		table.AddRow(headerfmt("Memory:"), humanize.IBytes(t.MemoryUsage))
		table.AddRow(headerfmt("User CPU:"), formatMicros(t.UserTimeUs))
		table.AddRow(headerfmt("System CPU:"), formatMicros(t.SystemTimeUs))
		table.AddRow(headerfmt("Network in:"), humanize.IBytes(t.NetworkReceiveBytes))
		table.AddRow(headerfmt("Network out:"), humanize.IBytes(t.NetworkSendBytes))
		table.AddRow(headerfmt("IO impact:"), formatCount(t.IOImpact))
		table.AddRow(headerfmt("Network impact:"), formatCount(t.NetworkImpact))
		table.AddRow(headerfmt("CPU impact:"), formatCount(t.CPUImpact))
		table.AddRow(headerfmt("Memory impact:"), formatCount(t.MemoryImpact))
		table.AddRow(headerfmt("Time impact:"), formatCount(t.TimeImpact))
		table.AddRow(headerfmt("Total impact:"), formatCount(t.TotalImpact))
		return table
	})
}

// Errors renders the ranked error report.
func (r *Renderer) Errors(stats []clickhouse.ErrorStats) error {
	return r.render(stats, func() *uitable.Table {
		table := uitable.New()
		headerfmt := color.New(color.FgGreen, color.Underline).SprintFunc()
		table.AddRow(headerfmt("CODE"), headerfmt("NAME"), headerfmt("COUNT"), headerfmt("LAST SEEN"), headerfmt("LAST MESSAGE"))
		for _, e := range stats {
			table.AddRow(
				e.Code,
				e.Name,
				formatCount(e.Count),
				formatTime(e.LastErrorTime),
				truncateQuery(e.LastErrorMessage, 60),
			)
		}
		return table
	})
}

func (r *Renderer) render(v any, text func() *uitable.Table) error {
	switch r.format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		_, err = fmt.Fprintln(r.w, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = fmt.Fprint(r.w, string(data))
		return err
	default:
		_, err := fmt.Fprintln(r.w, text())
		return err
	}
}

// truncateQuery collapses whitespace and cuts the text at width runes,
// marking the cut with an ellipsis.
func truncateQuery(q string, width int) string {
	collapsed := collapseWhitespace(q)
	runes := []rune(collapsed)
	if len(runes) <= width {
		return collapsed
	}
	return string(runes[:width-1]) + "…"
}

func collapseWhitespace(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.DateTime) + " UTC"
}

func formatMillis(ms uint64) string {
	const maxMs = uint64(math.MaxInt64 / int64(time.Millisecond))
	if ms > maxMs {
		ms = maxMs
	}
	return (time.Duration(ms) * time.Millisecond).String()
}

func formatMicros(us uint64) string {
	const maxUs = uint64(math.MaxInt64 / int64(time.Microsecond))
	if us > maxUs {
		us = maxUs
	}
	return (time.Duration(us) * time.Microsecond).String()
}

func formatCount(v uint64) string {
	if v > math.MaxInt64 {
		v = math.MaxInt64
	}
	return humanize.Comma(int64(v))
}
