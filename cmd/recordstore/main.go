package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"calixo/internal/config"
	"calixo/internal/logging"
	"calixo/internal/recordserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := recordserver.OpenDatabase(cfg.RecordServer.DatabaseDSN)
	if err != nil {
		return err
	}
	repo, err := recordserver.NewGormRepository(db, recordserver.DefaultRecordKey)
	if err != nil {
		return err
	}

	opts := recordserver.Options{
		CORSOrigins: cfg.RecordServer.CORSOrigins,
		Logger:      logger.Named("http"),
	}
	if cfg.RecordServer.RedisURL != "" {
		client, err := recordserver.NewRedisClient(cfg.RecordServer.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, serving without cache", zap.Error(err))
		} else {
			defer client.Close()
			opts.Cache = recordserver.NewRedisCache(client, recordserver.DefaultRecordKey, cfg.RecordServer.CacheTTL)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return recordserver.NewServer(repo, opts).Run(ctx, cfg.RecordServer.Addr)
}
