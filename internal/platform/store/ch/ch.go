// Package ch wraps clickhouse-go with the handful of calls the warehouse mirror needs
package ch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tubesense/internal/platform/logger"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures the clickhouse client
type Config struct {
	URL        string
	ClientName string
	ClientTag  string

	// Log receives one line per statement when non-nil
	Log *logger.Logger
}

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// CH is a clickhouse connection
type CH struct {
	conn driver.Conn
	log  *logger.Logger
}

var openConn = clickhouse.Open

// ParseURL turns a clickhouse:// DSN into driver options stamped with client info
func ParseURL(cfg Config) (*clickhouse.Options, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("ch: empty url")
	}
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ch: parse dsn: %w", err)
	}
	opts.ClientInfo = BuildClientInfo(cfg.ClientName, cfg.ClientTag)
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return opts, nil
}

// Open dials clickhouse and pings once
func Open(ctx context.Context, cfg Config) (*CH, error) {
	opts, err := ParseURL(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := openConn(opts)
	if err != nil {
		return nil, fmt.Errorf("ch: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ch: ping: %w", err)
	}
	return &CH{conn: conn, log: cfg.Log}, nil
}

// Exec runs a statement with no result set
func (c *CH) Exec(ctx context.Context, sql string, args ...any) error {
	start := time.Now()
	err := c.conn.Exec(ctx, sql, args...)
	c.trace(sql, start, err)
	return err
}

// Insert appends rows to table through a single prepared batch
func (c *CH) Insert(ctx context.Context, table string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		c.trace("INSERT INTO "+table, start, err)
		return err
	}
	for _, r := range rows {
		if err := batch.Append(r...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("ch: append %s: %w", table, err)
		}
	}
	err = batch.Send()
	c.trace(fmt.Sprintf("INSERT INTO %s (%d rows)", table, len(rows)), start, err)
	return err
}

// Query runs a read and returns the driver rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	r, err := c.conn.Query(ctx, sql, args...)
	c.trace(sql, start, err)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ScalarUInt64 reads the first column of the first row as a UInt64
func (c *CH) ScalarUInt64(ctx context.Context, sql string, args ...any) (uint64, error) {
	start := time.Now()
	var v uint64
	err := c.conn.QueryRow(ctx, sql, args...).Scan(&v)
	c.trace(sql, start, err)
	return v, err
}

// Ping checks connectivity
func (c *CH) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errors.New("ch: nil client")
	}
	return c.conn.Ping(ctx)
}

// Close closes resources
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *CH) trace(sql string, start time.Time, err error) {
	if c.log == nil {
		return
	}
	c.log.Debug().
		Float64("elapsed_ms", float64(time.Since(start).Microseconds())/1000.0).
		Str("sql", strings.Join(strings.Fields(sql), " ")).
		Err(err).
		Msg("ch query")
}
