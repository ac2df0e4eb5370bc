// Package blobsink stores staged batches as opaque blobs addressed by key.
// Backends are selected by URL scheme: file, sqlite and redis
package blobsink

import (
	"context"
	"net/url"
	"strings"

	perr "tubesense/internal/platform/errors"
)

// Sink is the blob store the stager writes to and the loader reads from.
// Keys are slash separated and never start with a slash
type Sink interface {
	// Put stores body under key, replacing any previous body
	Put(ctx context.Context, key string, body []byte, contentType string) error

	// Get returns the body under key or a NotFound error
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns the keys starting with prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

// Open returns the backend named by rawURL:
//
//	file:///var/lib/tubesense/blobs  (a bare path also works)
//	sqlite:///var/lib/tubesense/blobs.db
//	redis://localhost:6379/0?ns=tubesense:blob:
func Open(ctx context.Context, rawURL string) (Sink, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, perr.WithField(perr.InvalidArgf("blob sink url is required"), "url")
	}
	if !strings.Contains(rawURL, "://") {
		return OpenFile(rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "parse blob sink url")
	}
	switch u.Scheme {
	case "file":
		return OpenFile(hostPath(u))
	case "sqlite":
		return OpenSQLite(ctx, hostPath(u))
	case "redis", "rediss":
		return OpenRedis(ctx, u)
	}
	return nil, perr.InvalidArgf("unsupported blob sink scheme %q", u.Scheme)
}

// hostPath keeps relative forms like file://./blobs working
func hostPath(u *url.URL) string {
	if u.Host != "" && u.Host != "localhost" {
		return u.Host + u.Path
	}
	return u.Path
}

// ValidKey reports whether key is usable by every backend
func ValidKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return perr.WithField(perr.InvalidArgf("invalid blob key %q", key), "key")
	}
	for seg := range strings.SplitSeq(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return perr.WithField(perr.InvalidArgf("invalid blob key %q", key), "key")
		}
	}
	return nil
}
