package blobsink

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	perr "tubesense/internal/platform/errors"
)

const defaultNamespace = "tubesense:blob:"

// RedisSink keeps bodies as plain string values and maintains a
// lexicographic sorted set of keys for prefix listing
type RedisSink struct {
	rdb *redis.Client
	ns  string
}

// OpenRedis connects to u. The optional ns query parameter sets the key namespace
func OpenRedis(ctx context.Context, u *url.URL) (*RedisSink, error) {
	ns := defaultNamespace
	q := u.Query()
	if v := q.Get("ns"); v != "" {
		ns = v
	}
	q.Del("ns")
	clean := *u
	clean.RawQuery = q.Encode()

	opts, err := redis.ParseURL(clean.String())
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "parse redis url")
	}
	rdb := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "redis ping")
	}
	return NewRedis(rdb, ns), nil
}

// NewRedis wraps an existing client
func NewRedis(rdb *redis.Client, ns string) *RedisSink {
	if ns == "" {
		ns = defaultNamespace
	}
	return &RedisSink{rdb: rdb, ns: ns}
}

func (s *RedisSink) dataKey(key string) string { return s.ns + "data:" + key }
func (s *RedisSink) typeKey(key string) string { return s.ns + "type:" + key }
func (s *RedisSink) indexKey() string          { return s.ns + "index" }

// Put implements Sink. Body, content type and index entry land in one MULTI
func (s *RedisSink) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.dataKey(key), body, 0)
		p.Set(ctx, s.typeKey(key), contentType, 0)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: 0, Member: key})
		return nil
	})
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob put %s", key)
	}
	return nil
}

// Get implements Sink
func (s *RedisSink) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, s.dataKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, perr.NotFoundf("blob %s not found", key)
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob get %s", key)
	}
	return b, nil
}

// List implements Sink
func (s *RedisSink) List(ctx context.Context, prefix string) ([]string, error) {
	lo, hi := "-", "+"
	if prefix != "" {
		lo, hi = "["+prefix, "["+prefix+"\xff"
	}
	keys, err := s.rdb.ZRangeByLex(ctx, s.indexKey(), &redis.ZRangeBy{Min: lo, Max: hi}).Result()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob list %q", prefix)
	}
	return keys, nil
}

// Close implements Sink
func (s *RedisSink) Close() error { return s.rdb.Close() }
