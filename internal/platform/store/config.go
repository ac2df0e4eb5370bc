package store

import (
	"context"
	"time"

	"tubesense/internal/platform/config"
	"tubesense/internal/platform/logger"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled    bool
	URL        string
	LogSQL     bool
	ClientName string
	ClientTag  string
}

// FromConfig reads SERVICE_PGSQL_* and SERVICE_CLICKHOUSE_* style views.
// Postgres is always enabled; clickhouse only when withCH is set
func FromConfig(pg, ch config.Conf, role string, withCH bool) Config {
	out := Config{
		AppName: "tubesense",
		PG: PGConfig{
			Enabled:        true,
			URL:            pg.MustString("DBURL"),
			MaxConns:       int32(pg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 500),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 20),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
	}
	if withCH {
		out.CH = CHConfig{
			Enabled:    true,
			URL:        ch.MustString("DBURL"),
			LogSQL:     ch.MayBool("LOG_SQL", false),
			ClientName: "tubesense",
			ClientTag:  role,
		}
	}
	return out
}

// OpenFromEnv opens the warehouse named by SERVICE_PGSQL_DBURL, plus clickhouse
// when withCH is set. An unset DBURL returns a nil Store and no error
func OpenFromEnv(ctx context.Context, root config.Conf, role string, withCH bool) (*Store, error) {
	pg := root.Prefix("SERVICE_PGSQL_")
	if pg.MayString("DBURL", "") == "" {
		return nil, nil
	}
	return Open(ctx, FromConfig(pg, root.Prefix("SERVICE_CLICKHOUSE_"), role, withCH), WithLogger(*logger.Get()))
}
