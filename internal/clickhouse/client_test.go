package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

type fakeConn struct {
	driver.Conn

	rows     *fakeRows
	queryErr error
	pingErr  error
	closeErr error

	gotQuery string
	gotArgs  []any
}

func (c *fakeConn) Query(_ context.Context, query string, args ...any) (driver.Rows, error) {
	c.gotQuery = query
	c.gotArgs = args
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	if c.rows == nil {
		return &fakeRows{}, nil
	}
	return c.rows, nil
}

func (c *fakeConn) Ping(context.Context) error { return c.pingErr }
func (c *fakeConn) Close() error               { return c.closeErr }

func testClient(conns ...driver.Conn) *Client {
	c := &Client{
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer("test"),
	}
	for i, conn := range conns {
		c.nodes = append(c.nodes, node{addr: fmt.Sprintf("node-%d:9000", i+1), conn: conn})
	}
	return c
}

func statsRow(fingerprint uint64, query string) []any {
	at := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	return []any{
		fingerprint, query, at, at,
		uint64(10), uint64(20), uint64(30), uint64(40),
		uint64(50), uint64(60), uint64(70), uint64(80),
		[]string{"etl"}, []string{"analytics"}, []string{"events"},
		uint64(2030), uint64(1500), uint64(1100000), uint64(400), uint64(10000000),
		uint64(11103930),
	}
}

func totalsRow(count uint64) []any {
	return []any{
		count,
		uint64(10), uint64(20), uint64(30), uint64(40),
		uint64(50), uint64(60), uint64(70), uint64(80),
		uint64(2030), uint64(1500), uint64(1100000), uint64(400), uint64(10000000),
		uint64(11103930),
	}
}

func errorRow(code int32, count uint64) []any {
	return []any{
		code, "UNKNOWN_TABLE", count,
		time.Date(2026, 8, 20, 9, 15, 0, 0, time.UTC),
		"Table analytics.missing does not exist",
	}
}

func TestStreamQueryStatsFansOut(t *testing.T) {
	connA := &fakeConn{rows: &fakeRows{rows: [][]any{statsRow(1, "SELECT a")}}}
	connB := &fakeConn{rows: &fakeRows{rows: [][]any{statsRow(2, "SELECT b")}}}
	c := testClient(connA, connB)

	filter := QueryLogFilter{From: time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)}
	out := make(chan QueryStats, 16)
	err := c.StreamQueryStats(context.Background(), filter, out)
	close(out)
	require.NoError(t, err)

	var fingerprints []uint64
	for row := range out {
		fingerprints = append(fingerprints, row.Fingerprint)
	}
	assert.ElementsMatch(t, []uint64{1, 2}, fingerprints)

	assert.Contains(t, connA.gotQuery, "AND event_time >= toDateTime(?, 'UTC')")
	assert.Contains(t, connA.gotQuery, "GROUP BY normalized_query_hash")
	assert.Equal(t, []any{"2026-08-19 00:00:00"}, connA.gotArgs)
	assert.Equal(t, connA.gotQuery, connB.gotQuery)
}

func TestStreamQueryStatsFirstErrorWins(t *testing.T) {
	boom := errors.New("connection refused")
	healthy := &fakeConn{rows: &fakeRows{rows: [][]any{statsRow(1, "SELECT a")}}}
	broken := &fakeConn{queryErr: boom}
	c := testClient(healthy, broken)

	out := make(chan QueryStats, 16)
	err := c.StreamQueryStats(context.Background(), QueryLogFilter{Last: time.Hour}, out)
	close(out)

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "node-2:9000")
	assert.ErrorContains(t, err, "query_stats")
}

func TestStreamQueryStatsRowsErrSurfaces(t *testing.T) {
	reset := errors.New("stream reset")
	conn := &fakeConn{rows: &fakeRows{rowsErr: reset}}
	c := testClient(conn)

	out := make(chan QueryStats, 1)
	err := c.StreamQueryStats(context.Background(), QueryLogFilter{Last: time.Hour}, out)

	assert.ErrorIs(t, err, reset)
	assert.ErrorContains(t, err, "node-1:9000")
}

func TestStreamQueryStatsSendInterrupted(t *testing.T) {
	conn := &fakeConn{rows: &fakeRows{rows: [][]any{statsRow(1, "SELECT a")}}}
	c := testClient(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan QueryStats)
	err := c.StreamQueryStats(ctx, QueryLogFilter{Last: time.Hour}, out)

	assert.ErrorIs(t, err, ErrSendInterrupted)
}

func TestStreamQueryStatsByFingerprintBindsHashFirst(t *testing.T) {
	conn := &fakeConn{rows: &fakeRows{rows: [][]any{statsRow(0xabc, "SELECT a")}}}
	c := testClient(conn)

	filter := QueryLogFilter{From: time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)}
	out := make(chan QueryStats, 1)
	err := c.StreamQueryStatsByFingerprint(context.Background(), 0xabc, filter, out)
	close(out)
	require.NoError(t, err)

	assert.Contains(t, conn.gotQuery, "AND normalized_query_hash = ?")
	assert.Equal(t, []any{uint64(0xabc), "2026-08-19 00:00:00"}, conn.gotArgs)
	assert.Equal(t, uint64(0xabc), (<-out).Fingerprint)
}

func TestStreamQueryTotalsOneRowPerNode(t *testing.T) {
	connA := &fakeConn{rows: &fakeRows{rows: [][]any{totalsRow(100)}}}
	connB := &fakeConn{rows: &fakeRows{rows: [][]any{totalsRow(50)}}}
	c := testClient(connA, connB)

	out := make(chan QueryTotals, 4)
	err := c.StreamQueryTotals(context.Background(), QueryLogFilter{Last: time.Hour}, out)
	close(out)
	require.NoError(t, err)

	var counts []uint64
	for row := range out {
		counts = append(counts, row.QueriesCount)
	}
	assert.ElementsMatch(t, []uint64{100, 50}, counts)
}

func TestStreamErrorStatsBindsWhereThenHaving(t *testing.T) {
	conn := &fakeConn{rows: &fakeRows{rows: [][]any{errorRow(60, 14)}}}
	c := testClient(conn)

	filter := ErrorsFilter{Codes: []int32{60, 241}, MinCount: 5, Last: time.Hour}
	out := make(chan ErrorStats, 1)
	err := c.StreamErrorStats(context.Background(), filter, out)
	close(out)
	require.NoError(t, err)

	assert.Contains(t, conn.gotQuery, "AND code IN (?, ?)")
	assert.Contains(t, conn.gotQuery, "AND count >= ? AND last_error_time >= toDateTime(?, 'UTC')")

	require.Len(t, conn.gotArgs, 4)
	assert.Equal(t, []any{int32(60), int32(241), uint64(5)}, conn.gotArgs[:3])
	lower, perr := time.Parse(dateTimeLayout, conn.gotArgs[3].(string))
	require.NoError(t, perr)
	assert.WithinDuration(t, time.Now().UTC().Add(-time.Hour), lower, time.Minute)

	assert.Equal(t, int32(60), (<-out).Code)
}

func TestStreamRejectsInvalidFilterBeforeQuerying(t *testing.T) {
	conn := &fakeConn{}
	c := testClient(conn)
	ctx := context.Background()

	tests := []struct {
		name   string
		stream func() error
	}{
		{
			name: "query stats",
			stream: func() error {
				return c.StreamQueryStats(ctx, QueryLogFilter{}, make(chan QueryStats, 1))
			},
		},
		{
			name: "query stats by fingerprint",
			stream: func() error {
				return c.StreamQueryStatsByFingerprint(ctx, 1, QueryLogFilter{}, make(chan QueryStats, 1))
			},
		},
		{
			name: "query totals",
			stream: func() error {
				return c.StreamQueryTotals(ctx, QueryLogFilter{}, make(chan QueryTotals, 1))
			},
		},
		{
			name: "error stats",
			stream: func() error {
				return c.StreamErrorStats(ctx, ErrorsFilter{Last: -time.Hour}, make(chan ErrorStats, 1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.stream()
			assert.ErrorContains(t, err, "validation error for time window")
			assert.Empty(t, conn.gotQuery)
		})
	}
}

func TestNewClientRequiresNodes(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrNoNodes)
}

func TestNewClientOpensEveryNode(t *testing.T) {
	c, err := NewClient(Config{
		Addrs:    []string{"ch-1:9000", "ch-2:9000"},
		Username: "default",
	}, WithLogger(slog.New(slog.DiscardHandler)), WithDialTimeout(time.Second))
	require.NoError(t, err)

	assert.Len(t, c.nodes, 2)
	assert.Equal(t, "ch-1:9000", c.nodes[0].addr)
	assert.Equal(t, "ch-2:9000", c.nodes[1].addr)
	assert.Equal(t, time.Second, c.dialTimeout)
	assert.NoError(t, c.Close())
}

func TestPingWrapsNodeFailure(t *testing.T) {
	denied := errors.New("authentication failed")
	c := testClient(&fakeConn{}, &fakeConn{pingErr: denied})

	err := c.Ping(context.Background())

	assert.ErrorIs(t, err, denied)
	assert.ErrorContains(t, err, "failed to connect to clickhouse node node-2:9000")
}

func TestCloseReturnsFirstError(t *testing.T) {
	first := errors.New("close a")
	second := errors.New("close b")
	c := testClient(&fakeConn{closeErr: first}, &fakeConn{closeErr: second})

	assert.ErrorIs(t, c.Close(), first)
}
