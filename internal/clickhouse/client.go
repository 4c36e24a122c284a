package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	// Telemetry tables live in the system database on every node.
	systemDatabase = "system"

	defaultDialTimeout = 10 * time.Second
)

// Config is the resolved connection profile for one cluster.
type Config struct {
	Addrs    []string
	Username string
	Password string

	// Secure enables TLS; AcceptInvalidCert additionally disables
	// certificate verification (self-signed dev clusters).
	Secure            bool
	AcceptInvalidCert bool
}

type node struct {
	addr string
	conn driver.Conn
}

// Client holds one native-protocol connection per cluster node and runs
// the same aggregation query against all of them concurrently. No node
// has the global view, so every operation is a fan-out.
type Client struct {
	nodes       []node
	logger      *slog.Logger
	tracer      trace.Tracer
	dialTimeout time.Duration
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// NewClient opens one connection per endpoint. Connections are lazy; use
// Ping to verify reachability before streaming.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, ErrNoNodes
	}

	c := &Client{
		logger:      slog.Default(),
		tracer:      otel.Tracer("clickaudit/clickhouse"),
		dialTimeout: defaultDialTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	var tlsConfig *tls.Config
	if cfg.Secure || cfg.AcceptInvalidCert {
		tlsConfig = &tls.Config{InsecureSkipVerify: cfg.AcceptInvalidCert}
	}

	for _, addr := range cfg.Addrs {
		conn, err := clickhouse.Open(&clickhouse.Options{
			Addr: []string{addr},
			Auth: clickhouse.Auth{
				Database: systemDatabase,
				Username: cfg.Username,
				Password: cfg.Password,
			},
			TLS:         tlsConfig,
			DialTimeout: c.dialTimeout,
			Compression: &clickhouse.Compression{
				Method: clickhouse.CompressionLZ4,
			},
		})
		if err != nil {
			return nil, ConnectionError(err, addr)
		}
		c.nodes = append(c.nodes, node{addr: addr, conn: conn})
	}

	return c, nil
}

// Ping verifies every node is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	for _, n := range c.nodes {
		if err := n.conn.Ping(ctx); err != nil {
			return ConnectionError(err, n.addr)
		}
	}
	return nil
}

func (c *Client) Close() error {
	var firstErr error
	for _, n := range c.nodes {
		if err := n.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StreamQueryStats runs the grouped query_log aggregation on every node
// and forwards each node's local groups into out. Rows from different
// nodes interleave without ordering guarantees. The caller owns out and
// closes it once the call returns.
func (c *Client) StreamQueryStats(ctx context.Context, filter QueryLogFilter, out chan<- QueryStats) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	where, params := filter.whereClause(time.Now())
	return streamAll(ctx, c, "query_stats", fmt.Sprintf(queryStatsSQL, where), params, out, scanQueryStats)
}

// StreamQueryStatsByFingerprint is the drill-down variant: the same row
// shape constrained to a single normalized_query_hash, at most one row
// per node.
func (c *Client) StreamQueryStatsByFingerprint(ctx context.Context, fingerprint uint64, filter QueryLogFilter, out chan<- QueryStats) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	where, params := filter.whereClause(time.Now())
	params = append([]Param{UInt64Param(fingerprint)}, params...)
	return streamAll(ctx, c, "query_stats_fingerprint", fmt.Sprintf(queryStatsByFingerprintSQL, where), params, out, scanQueryStats)
}

// StreamQueryTotals runs the ungrouped aggregation, one row per node.
func (c *Client) StreamQueryTotals(ctx context.Context, filter QueryLogFilter, out chan<- QueryTotals) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	where, params := filter.whereClause(time.Now())
	return streamAll(ctx, c, "query_totals", fmt.Sprintf(queryTotalsSQL, where), params, out, scanQueryTotals)
}

// StreamErrorStats streams per-code error counters from system.errors.
func (c *Client) StreamErrorStats(ctx context.Context, filter ErrorsFilter, out chan<- ErrorStats) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	now := time.Now()
	where, whereParams := filter.whereClause()
	having, havingParams := filter.havingClause(now)
	params := append(whereParams, havingParams...)
	return streamAll(ctx, c, "error_stats", fmt.Sprintf(errorStatsSQL, where, having), params, out, scanErrorStats)
}

type scanFunc[T any] func(driver.Rows) (T, error)

// streamAll fans one query out to every node. The group context cancels
// the remaining node streams once any of them fails; the first failure is
// what the caller sees. Rows already forwarded stay forwarded.
func streamAll[T any](ctx context.Context, c *Client, op string, sql string, params []Param, out chan<- T, scan scanFunc[T]) error {
	args := bindValues(params)

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range c.nodes {
		g.Go(func() error {
			return streamNode(gctx, c, n, op, sql, args, out, scan)
		})
	}
	return g.Wait()
}

func streamNode[T any](ctx context.Context, c *Client, n node, op string, sql string, args []any, out chan<- T, scan scanFunc[T]) error {
	ctx, span := c.tracer.Start(ctx, "clickhouse.query", trace.WithAttributes(
		attribute.String("db.operation", op),
		attribute.String("net.peer.name", n.addr),
	))
	defer span.End()

	start := time.Now()
	rows, err := n.conn.Query(ctx, sql, args...)
	if err != nil {
		nodeQueriesTotal.WithLabelValues(op, n.addr, "error").Inc()
		span.RecordError(err)
		return QueryError(err, n.addr, op)
	}
	defer rows.Close()

	sent := 0
	for rows.Next() {
		row, err := scan(rows)
		if err != nil {
			nodeQueriesTotal.WithLabelValues(op, n.addr, "error").Inc()
			span.RecordError(err)
			return QueryError(err, n.addr, op)
		}
		select {
		case out <- row:
			sent++
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrSendInterrupted, ctx.Err())
		}
	}
	if err := rows.Err(); err != nil {
		nodeQueriesTotal.WithLabelValues(op, n.addr, "error").Inc()
		span.RecordError(err)
		return QueryError(err, n.addr, op)
	}

	elapsed := time.Since(start)
	nodeQueriesTotal.WithLabelValues(op, n.addr, "success").Inc()
	nodeQueryDurationSeconds.WithLabelValues(op).Observe(elapsed.Seconds())
	rowsStreamedTotal.WithLabelValues(op).Add(float64(sent))
	c.logger.Debug("clickhouse.stream.node_done", "op", op, "node", n.addr, "rows", sent, "elapsed", elapsed)
	return nil
}
