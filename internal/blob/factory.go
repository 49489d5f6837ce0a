package blob

import (
	"context"
	"fmt"

	env "github.com/caarlos0/env/v11"
)

// EnvConfig selects the blob backend from environment variables.
//
//	THEMECORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	THEMECORE_BLOB_FS_ROOT: directory root when driver=fs (default ./themedata)
//	(S3 specific variables documented in the s3 driver package)
type EnvConfig struct {
	Driver string `env:"THEMECORE_BLOB_DRIVER" envDefault:"fs"`
	FSRoot string `env:"THEMECORE_BLOB_FS_ROOT"`
}

// Open selects a blob Store implementation using environment variables.
func Open(ctx context.Context) (Store, error) {
	cfg, err := env.ParseAs[EnvConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse blob config: %w", err)
	}
	return OpenWith(ctx, cfg)
}

// OpenWith constructs the Store described by cfg.
func OpenWith(ctx context.Context, cfg EnvConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
