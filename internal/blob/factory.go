// Package blob selects the configured blob store driver.
package blob

import (
	"context"
	"fmt"
	"strings"

	"custodycore/internal/blob/core"
	fsblob "custodycore/internal/infra/blob/fs"
	memblob "custodycore/internal/infra/blob/memory"
	s3blob "custodycore/internal/infra/blob/s3"
)

// Config selects and parameterises a blob driver.
type Config struct {
	Driver core.Driver
	FSRoot string
	FSBase string // optional public base URL for the fs driver
	S3     s3blob.Config
}

// Open constructs the blob store named by cfg.Driver. An empty driver
// selects the filesystem store.
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	switch core.Driver(strings.ToLower(string(cfg.Driver))) {
	case "", core.DriverFilesystem:
		root := cfg.FSRoot
		if root == "" {
			root = "./blobdata"
		}
		return fsblob.New(root, cfg.FSBase)
	case core.DriverMemory:
		return memblob.New(), nil
	case core.DriverS3:
		return s3blob.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
