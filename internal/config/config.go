package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the desktop client, the CLI and the
// record server.
type Config struct {
	Env           string
	Backend       BackendConfig
	Remote        RemoteConfig
	Storage       StorageConfig
	Audio         AudioConfig
	Transcription TranscriptionConfig
	Rules         RulesConfig
	Playback      PlaybackConfig
	Profile       ProfileConfig
	Log           LogConfig
	RecordServer  RecordServerConfig
	Backup        BackupConfig
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

type StorageConfig struct {
	Path         string
	RecordKey    string
	GoalsChatKey string
	TalkChatKey  string
}

type AudioConfig struct {
	RecorderCommand string
	PlayerCommand   string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	MinClipBytes    int
}

// TranscriptionConfig selects the speech-to-text provider. "backend" posts
// the clip to the FitTrack API, "deepgram" streams it to Deepgram directly.
type TranscriptionConfig struct {
	Provider string
	Deepgram DeepgramConfig
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type PlaybackConfig struct {
	MaxChars     int
	ErrorRestore time.Duration
}

type ProfileConfig struct {
	WeightKg float64
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type RecordServerConfig struct {
	Addr        string
	DatabaseDSN string
	RedisURL    string
	CacheTTL    time.Duration
	CORSOrigins []string
}

type BackupConfig struct {
	Bucket string
	Region string
	Prefix string
}

const (
	ProviderBackend  = "backend"
	ProviderDeepgram = "deepgram"
)

// Load resolves configuration from environment variables and sensible defaults.
// Dotenv files fill in keys the process environment does not already carry.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "calixo")
	if err := loadDotEnv(configDir); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Env: envOrDefault("CALIXO_ENV", "production"),
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(envOrDefault("CALIXO_BACKEND_URL", "http://localhost:3001"), "/"),
			Timeout: envOrDefaultDuration("CALIXO_BACKEND_TIMEOUT", 60*time.Second),
		},
		Remote: RemoteConfig{
			BaseURL: strings.TrimRight(firstNonEmpty(os.Getenv("CALIXO_REMOTE_URL"), os.Getenv("CALIXO_BACKEND_URL"), "http://localhost:3001"), "/"),
			Timeout: envOrDefaultDuration("CALIXO_REMOTE_TIMEOUT", 15*time.Second),
		},
		Storage: StorageConfig{
			Path:         envOrDefault("CALIXO_DB_PATH", filepath.Join(configDir, "calixo.db")),
			RecordKey:    envOrDefault("CALIXO_RECORD_KEY", "calixolympics_data"),
			GoalsChatKey: envOrDefault("CALIXO_GOALS_CHAT_KEY", "calixolympics_goals_chat"),
			TalkChatKey:  envOrDefault("CALIXO_TALK_CHAT_KEY", "calixolympics_talk_chat"),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("CALIXO_FFMPEG_COMMAND", "ffmpeg"),
			PlayerCommand:   envOrDefault("CALIXO_FFPLAY_COMMAND", "ffplay"),
			InputFormat:     envOrDefault("CALIXO_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("CALIXO_AUDIO_INPUT_DEVICE"),
				os.Getenv("PULSE_SOURCE"),
				"default",
			),
			SampleRate:   envOrDefaultInt("CALIXO_SAMPLE_RATE", 16000),
			Channels:     envOrDefaultInt("CALIXO_CHANNELS", 1),
			MinClipBytes: envOrDefaultInt("CALIXO_MIN_CLIP_BYTES", 500),
		},
		Transcription: TranscriptionConfig{
			Provider: strings.ToLower(envOrDefault("CALIXO_TRANSCRIBER", ProviderBackend)),
			Deepgram: DeepgramConfig{
				APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
				APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
				Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
				Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
				SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			},
		},
		Rules: RulesConfig{
			Path:           envOrDefault("CALIXO_RULES_FILE", filepath.Join(configDir, "substitutions.rules")),
			IterationLimit: envOrDefaultInt("CALIXO_RULE_ITERATION_LIMIT", 30),
		},
		Playback: PlaybackConfig{
			MaxChars:     envOrDefaultInt("CALIXO_TTS_MAX_CHARS", 2500),
			ErrorRestore: envOrDefaultDuration("CALIXO_TTS_ERROR_RESTORE", 2*time.Second),
		},
		Profile: ProfileConfig{
			WeightKg: envOrDefaultFloat("CALIXO_WEIGHT_KG", 70),
		},
		Log: LogConfig{
			Level:      envOrDefault("CALIXO_LOG_LEVEL", "info"),
			File:       strings.TrimSpace(os.Getenv("CALIXO_LOG_FILE")),
			MaxSizeMB:  envOrDefaultInt("CALIXO_LOG_MAX_SIZE_MB", 10),
			MaxBackups: envOrDefaultInt("CALIXO_LOG_MAX_BACKUPS", 3),
			MaxAgeDays: envOrDefaultInt("CALIXO_LOG_MAX_AGE_DAYS", 28),
		},
		RecordServer: RecordServerConfig{
			Addr:        envOrDefault("CALIXO_SERVER_ADDR", ":3001"),
			DatabaseDSN: strings.TrimSpace(os.Getenv("CALIXO_DATABASE_URL")),
			RedisURL:    strings.TrimSpace(os.Getenv("CALIXO_REDIS_URL")),
			CacheTTL:    envOrDefaultDuration("CALIXO_CACHE_TTL", 5*time.Minute),
			CORSOrigins: splitList(envOrDefault("CALIXO_CORS_ORIGINS", "*")),
		},
		Backup: BackupConfig{
			Bucket: strings.TrimSpace(os.Getenv("CALIXO_BACKUP_BUCKET")),
			Region: firstNonEmpty(os.Getenv("CALIXO_BACKUP_REGION"), os.Getenv("AWS_REGION"), "us-east-1"),
			Prefix: envOrDefault("CALIXO_BACKUP_PREFIX", "calixo/"),
		},
	}

	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 60 * time.Second
	}
	if cfg.Remote.Timeout <= 0 {
		cfg.Remote.Timeout = 15 * time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.MinClipBytes <= 0 {
		cfg.Audio.MinClipBytes = 500
	}
	if cfg.Transcription.Provider != ProviderDeepgram {
		cfg.Transcription.Provider = ProviderBackend
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Playback.MaxChars <= 0 {
		cfg.Playback.MaxChars = 2500
	}
	if cfg.Playback.ErrorRestore < 0 {
		cfg.Playback.ErrorRestore = 2 * time.Second
	}
	if cfg.Profile.WeightKg <= 0 {
		cfg.Profile.WeightKg = 70
	}
	if cfg.RecordServer.CacheTTL <= 0 {
		cfg.RecordServer.CacheTTL = 5 * time.Minute
	}

	return cfg, nil
}

// loadDotEnv reads CALIXO_ENV_FILE when set. Otherwise it reads .env from the
// working directory and then from configDir, skipping files that do not exist.
func loadDotEnv(configDir string) error {
	if explicit := strings.TrimSpace(os.Getenv("CALIXO_ENV_FILE")); explicit != "" {
		if err := godotenv.Load(explicit); err != nil {
			return fmt.Errorf("load env file %s: %w", explicit, err)
		}
		return nil
	}
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

// Development reports whether console logging and verbose defaults apply.
func (c Config) Development() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// envOrDefaultDuration accepts Go durations ("90s") or bare milliseconds.
func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(value); err == nil {
		if ms < 0 {
			return fallback
		}
		return time.Duration(ms) * time.Millisecond
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
