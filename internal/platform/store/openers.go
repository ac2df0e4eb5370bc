package store

import (
	"context"
	"fmt"
	"time"

	"tubesense/internal/platform/logger"
	chx "tubesense/internal/platform/store/ch"
	"tubesense/internal/platform/store/pg"

	"github.com/cenkalti/backoff/v5"
)

// openPG opens the pool and publishes the adapter only once a ping succeeds
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
		AppName:  cfg.AppName,
	}, tracer, nil)
	if err != nil {
		return nil, err
	}

	tries := cfg.PG.ConnectRetries
	if tries <= 0 {
		tries = 20
	}
	pingTimeout := cfg.PG.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 150 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return struct{}{}, p.Pool.Ping(toCtx)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(tries)))
	if err != nil {
		p.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", tries, err)
	}
	return newPGAdapter(p), nil
}

func openCH(ctx context.Context, cfg Config, s *Store) (Clickhouse, error) {
	var log *logger.Logger
	if cfg.CH.LogSQL {
		l := s.Log.With().Str("component", "ch").Logger()
		log = &l
	}
	c, err := chx.Open(ctx, chx.Config{
		URL:        cfg.CH.URL,
		ClientName: cfg.CH.ClientName,
		ClientTag:  cfg.CH.ClientTag,
		Log:        log,
	})
	if err != nil {
		return nil, err
	}
	return newCHAdapter(c), nil
}
