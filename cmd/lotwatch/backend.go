package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/lotwatch/internal/config"
	"github.com/rickgao/lotwatch/internal/database"
	"github.com/rickgao/lotwatch/internal/diag"
	"github.com/rickgao/lotwatch/internal/store"
	"github.com/rickgao/lotwatch/internal/store/memory"
	"github.com/rickgao/lotwatch/internal/store/redis"
)

// backend is an opened result store plus its lifecycle hooks.
type backend struct {
	name  string
	store store.ResultStore
	ping  func(ctx context.Context) error
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Store.Backend {
	case "postgres":
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if _, err := database.RunMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{
			name:  "postgres",
			store: database.NewClosingStore(pool),
			ping:  pool.Ping,
			close: pool.Close,
		}, nil

	case "redis":
		logger.Info("connecting to redis", "addr", cfg.Redis.Addr)
		rs, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return &backend{
			name:  "redis",
			store: rs,
			ping:  rs.Ping,
			close: func() { rs.Close() },
		}, nil

	case "memory":
		logger.Warn("using in-memory result store; closings are lost on exit")
		return &backend{
			name:  "memory",
			store: memory.New(0),
			ping:  func(context.Context) error { return nil },
			close: func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// newDumper writes dumps to the local dump dir and, when a bucket is
// configured, to S3 as well.
func newDumper(ctx context.Context, cfg config.DiagnosticsConfig, logger *slog.Logger) (*diag.Dumper, error) {
	sinks := []diag.Sink{diag.FileSink{Dir: cfg.DumpDir}}

	if cfg.S3.Bucket != "" {
		s3, err := diag.NewS3Sink(ctx, diag.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 dump sink: %w", err)
		}
		sinks = append(sinks, s3)
		logger.Info("page dumps mirrored to s3", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
	}

	return diag.NewDumper(logger, sinks...), nil
}
