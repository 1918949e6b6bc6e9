package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"calixo/internal/backend"
	"calixo/internal/config"
	"calixo/internal/kv"
	"calixo/internal/logging"
	"calixo/internal/remote"
	"calixo/internal/store"
	"calixo/internal/syncer"
)

// env is the headless service graph: local store plus sync, no audio.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	db     *kv.SQLite
	store  *store.LocalStore
	sync   *syncer.Manager
	api    *backend.Client
}

type rootOptions struct {
	dbPath  string
	remote  string
	backend string
	offline bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "calixoctl",
		Short:         "calixoctl manages your Calixo record from the terminal",
		Long:          "calixoctl logs food and activity, edits goals, syncs with the record store and writes backups without the desktop app.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Path to the local SQLite database")
	cmd.PersistentFlags().StringVar(&opts.remote, "remote", "", "Record store base URL")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "FitTrack API base URL")
	cmd.PersistentFlags().BoolVar(&opts.offline, "offline", false, "Do not push changes to the record store")

	cmd.AddCommand(
		newTodayCmd(opts),
		newLogCmd(opts),
		newDeleteCmd(opts),
		newGoalsCmd(opts),
		newSyncCmd(opts),
		newBackupCmd(opts),
	)
	return cmd
}

// withEnv opens the local store, runs fn and flushes the pending push
// before closing.
func withEnv(ctx context.Context, opts *rootOptions, fn func(*env) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.dbPath != "" {
		cfg.Storage.Path = opts.dbPath
	}
	if opts.remote != "" {
		cfg.Remote.BaseURL = strings.TrimRight(opts.remote, "/")
	}
	if opts.backend != "" {
		cfg.Backend.BaseURL = strings.TrimRight(opts.backend, "/")
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	db, err := kv.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	remoteClient := &remote.Client{BaseURL: cfg.Remote.BaseURL, HTTPClient: &http.Client{Timeout: cfg.Remote.Timeout}}
	manager := syncer.NewManager(remoteClient, remoteClient, nil, cfg.Remote.Timeout, logger.Named("sync"))

	var scheduler store.Scheduler = manager
	if opts.offline {
		scheduler = nil
	}
	e := &env{
		cfg:    cfg,
		logger: logger,
		db:     db,
		sync:   manager,
		api:    backend.New(cfg.Backend.BaseURL, &http.Client{Timeout: cfg.Backend.Timeout}),
		store: store.New(db, scheduler, store.Options{
			RecordKey:    cfg.Storage.RecordKey,
			GoalsChatKey: cfg.Storage.GoalsChatKey,
			TalkChatKey:  cfg.Storage.TalkChatKey,
			WeightKg:     cfg.Profile.WeightKg,
		}, logger.Named("store")),
	}

	runErr := fn(e)

	flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := manager.Flush(flushCtx); err != nil && !errors.Is(err, syncer.ErrPushSkipped) {
		logger.Warn("push to record store failed; local data kept", zap.Error(err))
	}
	return runErr
}

func resolveDate(raw string, fallback string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return "", fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", raw)
	}
	return raw, nil
}
