package clickhouse

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRows serves canned result rows through the driver.Rows surface the
// scanners consume. Only the methods the streaming path touches are
// implemented; anything else panics through the embedded interface.
type fakeRows struct {
	driver.Rows

	rows    [][]any
	idx     int
	scanErr error
	rowsErr error
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destinations, got %d", len(row), len(dest))
	}
	for i, v := range row {
		if err := assignValue(dest[i], v); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRows) Err() error   { return r.rowsErr }
func (r *fakeRows) Close() error { return nil }

func assignValue(dest any, v any) error {
	switch d := dest.(type) {
	case *uint64:
		*d = v.(uint64)
	case *int32:
		*d = v.(int32)
	case *string:
		*d = v.(string)
	case *time.Time:
		*d = v.(time.Time)
	case *[]string:
		*d = v.([]string)
	default:
		return fmt.Errorf("unsupported destination %T", dest)
	}
	return nil
}

func TestScanQueryStats(t *testing.T) {
	firstSeen := time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)
	lastSeen := time.Date(2026, 8, 20, 11, 30, 0, 0, time.UTC)
	rows := &fakeRows{rows: [][]any{{
		uint64(0xdeadbeef),
		"SELECT count() FROM events WHERE tenant = ?",
		firstSeen,
		lastSeen,
		uint64(1500),
		uint64(1000),
		uint64(1048576),
		uint64(524288),
		uint64(2000),
		uint64(500),
		uint64(4096),
		uint64(8192),
		[]string{"etl"},
		[]string{"analytics"},
		[]string{"events"},
		uint64(1148576),
		uint64(122880),
		uint64(25000000),
		uint64(5242880),
		uint64(1500000000),
		uint64(1531514336),
	}}}

	require.True(t, rows.Next())
	stats, err := scanQueryStats(rows)

	require.NoError(t, err)
	assert.Equal(t, QueryStats{
		Fingerprint:         0xdeadbeef,
		Query:               "SELECT count() FROM events WHERE tenant = ?",
		FirstSeen:           firstSeen,
		LastSeen:            lastSeen,
		DurationMs:          1500,
		ReadRows:            1000,
		ReadBytes:           1048576,
		MemoryUsage:         524288,
		UserTimeUs:          2000,
		SystemTimeUs:        500,
		NetworkReceiveBytes: 4096,
		NetworkSendBytes:    8192,
		Users:               []string{"etl"},
		Databases:           []string{"analytics"},
		Tables:              []string{"events"},
		IOImpact:            1148576,
		NetworkImpact:       122880,
		CPUImpact:           25000000,
		MemoryImpact:        5242880,
		TimeImpact:          1500000000,
		TotalImpact:         1531514336,
	}, stats)
}

func TestScanQueryTotals(t *testing.T) {
	rows := &fakeRows{rows: [][]any{{
		uint64(420),
		uint64(1500),
		uint64(1000),
		uint64(1048576),
		uint64(524288),
		uint64(2000),
		uint64(500),
		uint64(4096),
		uint64(8192),
		uint64(1148576),
		uint64(122880),
		uint64(25000000),
		uint64(5242880),
		uint64(1500000000),
		uint64(1531514336),
	}}}

	require.True(t, rows.Next())
	totals, err := scanQueryTotals(rows)

	require.NoError(t, err)
	assert.Equal(t, QueryTotals{
		QueriesCount:        420,
		DurationMs:          1500,
		ReadRows:            1000,
		ReadBytes:           1048576,
		MemoryUsage:         524288,
		UserTimeUs:          2000,
		SystemTimeUs:        500,
		NetworkReceiveBytes: 4096,
		NetworkSendBytes:    8192,
		IOImpact:            1148576,
		NetworkImpact:       122880,
		CPUImpact:           25000000,
		MemoryImpact:        5242880,
		TimeImpact:          1500000000,
		TotalImpact:         1531514336,
	}, totals)
}

func TestScanErrorStats(t *testing.T) {
	lastSeen := time.Date(2026, 8, 20, 9, 15, 0, 0, time.UTC)
	rows := &fakeRows{rows: [][]any{{
		int32(60),
		"UNKNOWN_TABLE",
		uint64(14),
		lastSeen,
		"Table analytics.missing does not exist",
	}}}

	require.True(t, rows.Next())
	stats, err := scanErrorStats(rows)

	require.NoError(t, err)
	assert.Equal(t, ErrorStats{
		Code:             60,
		Name:             "UNKNOWN_TABLE",
		Count:            14,
		LastErrorTime:    lastSeen,
		LastErrorMessage: "Table analytics.missing does not exist",
	}, stats)
}

func TestScanWrapsDriverError(t *testing.T) {
	rows := &fakeRows{
		rows:    [][]any{{uint64(1)}},
		scanErr: errors.New("unexpected column type"),
	}
	require.True(t, rows.Next())

	_, err := scanQueryStats(rows)
	assert.ErrorIs(t, err, ErrInvalidScan)
	assert.ErrorContains(t, err, "unexpected column type")

	_, err = scanQueryTotals(rows)
	assert.ErrorIs(t, err, ErrInvalidScan)

	_, err = scanErrorStats(rows)
	assert.ErrorIs(t, err, ErrInvalidScan)
}
