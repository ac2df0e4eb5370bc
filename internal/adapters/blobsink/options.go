package blobsink

import (
	"context"

	"tubesense/internal/platform/config"
)

// DefaultURL keeps blobs next to the working directory
const DefaultURL = "file://./var/blobs"

// URLFromConfig reads SERVICE_BLOB_URL
func URLFromConfig(cfg config.Conf) string {
	return cfg.Prefix("SERVICE_BLOB_").MayString("URL", DefaultURL)
}

// OpenFromConfig opens the sink named by SERVICE_BLOB_URL
func OpenFromConfig(ctx context.Context, cfg config.Conf) (Sink, error) {
	return Open(ctx, URLFromConfig(cfg))
}
