package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"calixo/internal/audio"
	"calixo/internal/backend"
	"calixo/internal/config"
	"calixo/internal/domain"
	"calixo/internal/kv"
	"calixo/internal/logging"
	"calixo/internal/ports"
	"calixo/internal/providers/deepgram"
	"calixo/internal/remote"
	"calixo/internal/rules"
	"calixo/internal/store"
	"calixo/internal/syncer"
	"calixo/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    *store.LocalStore
	Sync     *syncer.Manager
	Controls *usecase.Controls
	Voice    *usecase.Voice

	db *kv.SQLite
}

// Build wires all backend dependencies for the current runtime. Nothing
// talks to the network until Start.
func Build(events ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return Services{}, fmt.Errorf("init logger: %w", err)
	}

	ruleSet, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	db, err := kv.Open(cfg.Storage.Path)
	if err != nil {
		return Services{}, err
	}

	remoteClient := &remote.Client{
		BaseURL:    cfg.Remote.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.Remote.Timeout},
	}
	latch := syncer.NewAvailability(events.AvailabilityChanged)
	manager := syncer.NewManager(remoteClient, remoteClient, latch, cfg.Remote.Timeout, logger.Named("sync"))

	local := store.New(db, manager, store.Options{
		RecordKey:    cfg.Storage.RecordKey,
		GoalsChatKey: cfg.Storage.GoalsChatKey,
		TalkChatKey:  cfg.Storage.TalkChatKey,
		WeightKg:     cfg.Profile.WeightKg,
		OnChange:     events.RecordChanged,
	}, logger.Named("store"))

	api := backend.New(cfg.Backend.BaseURL, &http.Client{Timeout: cfg.Backend.Timeout})

	controls := usecase.NewControls(events)
	recorder := usecase.NewRecorder(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		events,
		usecase.RecorderConfig{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
		},
		logger.Named("recorder"),
	)
	player := usecase.NewPlayer(
		api,
		audio.NewFFPlayOutput(cfg.Audio.PlayerCommand),
		controls,
		events,
		usecase.PlayerConfig{
			MaxChars:     cfg.Playback.MaxChars,
			ErrorRestore: cfg.Playback.ErrorRestore,
			Timeout:      cfg.Backend.Timeout,
		},
		logger.Named("player"),
	)
	voice := usecase.NewVoice(recorder, player, controls, local, usecase.Services{
		Transcriber: selectTranscriber(cfg, api, logger),
		Rules:       ruleSet,
		Interpreter: api,
		Nutrition:   api,
		Chat:        api,
		Fit:         api,
		Suggestions: api,
		Briefing:    api,
		Goals:       api,
		Vision:      api,
	}, events, usecase.VoiceConfig{
		MinClipBytes: cfg.Audio.MinClipBytes,
		Timeout:      cfg.Backend.Timeout,
	}, logger.Named("voice"))

	logger.Info("services ready",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("remote", cfg.Remote.BaseURL),
		zap.String("transcriber", cfg.Transcription.Provider),
		zap.Int("rules", ruleSet.Len()),
	)

	return Services{
		Config:   cfg,
		Logger:   logger,
		Store:    local,
		Sync:     manager,
		Controls: controls,
		Voice:    voice,
		db:       db,
	}, nil
}

func selectTranscriber(cfg config.Config, api *backend.Client, logger *zap.Logger) ports.Transcriber {
	if cfg.Transcription.Provider == config.ProviderDeepgram {
		if cfg.Transcription.Deepgram.APIKey != "" {
			return deepgram.NewTranscriber(deepgram.Config{
				APIKey:      cfg.Transcription.Deepgram.APIKey,
				APIBaseURL:  cfg.Transcription.Deepgram.APIBaseURL,
				Model:       cfg.Transcription.Deepgram.Model,
				Language:    cfg.Transcription.Deepgram.Language,
				SmartFormat: cfg.Transcription.Deepgram.SmartFormat,
			})
		}
		logger.Warn("deepgram selected without DEEPGRAM_API_KEY, using backend transcription")
	}
	return api
}

// Start checks the record store health, adopts a non-empty remote record and then
// runs the push loop until ctx is done.
func (s Services) Start(ctx context.Context) {
	if err := s.Sync.ProbeHealth(ctx); err != nil {
		s.Logger.Debug("startup health check failed", zap.Error(err))
	}
	if _, err := s.Sync.PullOnce(ctx, s.Store); err != nil && !errors.Is(err, syncer.ErrPullSkipped) {
		s.Logger.Debug("startup pull failed", zap.Error(err))
	}
	go s.Sync.Run(ctx)
}

// CheckSync re-reads the record store's health on demand. When the store is
// available the local record is pushed right away, so data logged while the
// store was down reaches it without waiting for the next edit.
func (s Services) CheckSync(ctx context.Context) (domain.Availability, error) {
	if err := s.Sync.ProbeHealth(ctx); err != nil {
		return s.Sync.Availability(), fmt.Errorf("record store health: %w", err)
	}
	state := s.Sync.Availability()
	if state != domain.AvailabilityAvailable {
		return state, nil
	}
	if err := s.Sync.Push(ctx, s.Store.Load()); err != nil && !errors.Is(err, syncer.ErrPushSkipped) {
		return s.Sync.Availability(), fmt.Errorf("push record: %w", err)
	}
	return s.Sync.Availability(), nil
}

// Close flushes the pending push and releases the local database.
func (s Services) Close() error {
	if s.Voice != nil {
		s.Voice.StopAudio()
	}
	var errs []error
	if s.Sync != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Sync.Flush(ctx); err != nil && !errors.Is(err, syncer.ErrPushSkipped) {
			errs = append(errs, fmt.Errorf("flush: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	logging.Sync(s.Logger)
	return errors.Join(errs...)
}

// Today is a convenience for callers that only need the current summary.
func (s Services) Today() domain.DaySummary {
	record := s.Store.Load()
	return record.Summarize(s.Store.Today())
}
