package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"CALIXO_BACKEND_URL", "CALIXO_REMOTE_URL", "CALIXO_DB_PATH", "CALIXO_RULES_FILE", "CALIXO_TRANSCRIBER", "CALIXO_ENV"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Backend.BaseURL != "http://localhost:3001" || cfg.Backend.Timeout != 60*time.Second {
		t.Fatalf("unexpected backend config: %+v", cfg.Backend)
	}
	if cfg.Remote.BaseURL != cfg.Backend.BaseURL {
		t.Fatalf("expected remote to default to backend url, got %q", cfg.Remote.BaseURL)
	}
	if cfg.Storage.Path != filepath.Join(home, ".config", "calixo", "calixo.db") {
		t.Fatalf("unexpected storage path: %q", cfg.Storage.Path)
	}
	if cfg.Storage.RecordKey != "calixolympics_data" || cfg.Storage.GoalsChatKey != "calixolympics_goals_chat" || cfg.Storage.TalkChatKey != "calixolympics_talk_chat" {
		t.Fatalf("unexpected storage keys: %+v", cfg.Storage)
	}
	if cfg.Audio.MinClipBytes != 500 || cfg.Playback.MaxChars != 2500 || cfg.Playback.ErrorRestore != 2*time.Second {
		t.Fatalf("unexpected audio/playback defaults: %+v %+v", cfg.Audio, cfg.Playback)
	}
	if cfg.Transcription.Provider != ProviderBackend {
		t.Fatalf("expected backend transcriber, got %q", cfg.Transcription.Provider)
	}
	if cfg.Profile.WeightKg != 70 {
		t.Fatalf("expected default weight, got %v", cfg.Profile.WeightKg)
	}
	if cfg.Development() {
		t.Fatalf("expected production env by default")
	}
}

func TestLoadRespectsOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CALIXO_ENV", "development")
	t.Setenv("CALIXO_BACKEND_URL", "https://api.example.com/")
	t.Setenv("CALIXO_REMOTE_URL", "https://records.example.com")
	t.Setenv("CALIXO_BACKEND_TIMEOUT", "90s")
	t.Setenv("CALIXO_TRANSCRIBER", "Deepgram")
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	t.Setenv("DEEPGRAM_MODEL", "nova-3")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("CALIXO_FFMPEG_COMMAND", "my-ffmpeg")
	t.Setenv("CALIXO_FFPLAY_COMMAND", "my-ffplay")
	t.Setenv("CALIXO_AUDIO_INPUT_DEVICE", "mic0")
	t.Setenv("CALIXO_TTS_ERROR_RESTORE", "250")
	t.Setenv("CALIXO_WEIGHT_KG", "82.5")
	t.Setenv("CALIXO_CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Backend.BaseURL != "https://api.example.com" || cfg.Backend.Timeout != 90*time.Second {
		t.Fatalf("unexpected backend config: %+v", cfg.Backend)
	}
	if cfg.Remote.BaseURL != "https://records.example.com" {
		t.Fatalf("unexpected remote url: %q", cfg.Remote.BaseURL)
	}
	if cfg.Transcription.Provider != ProviderDeepgram || cfg.Transcription.Deepgram.APIKey != "test-key" {
		t.Fatalf("unexpected transcription config: %+v", cfg.Transcription)
	}
	if cfg.Transcription.Deepgram.Model != "nova-3" || cfg.Transcription.Deepgram.SmartFormat {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Transcription.Deepgram)
	}
	if cfg.Audio.RecorderCommand != "my-ffmpeg" || cfg.Audio.PlayerCommand != "my-ffplay" || cfg.Audio.InputDevice != "mic0" {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Playback.ErrorRestore != 250*time.Millisecond {
		t.Fatalf("expected millisecond override, got %s", cfg.Playback.ErrorRestore)
	}
	if cfg.Profile.WeightKg != 82.5 {
		t.Fatalf("unexpected weight: %v", cfg.Profile.WeightKg)
	}
	if len(cfg.RecordServer.CORSOrigins) != 2 || cfg.RecordServer.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected cors origins: %v", cfg.RecordServer.CORSOrigins)
	}
	if !cfg.Development() {
		t.Fatalf("expected development env")
	}
}

func TestLoadInvalidValuesFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CALIXO_SAMPLE_RATE", "bad")
	t.Setenv("CALIXO_CHANNELS", "-1")
	t.Setenv("CALIXO_MIN_CLIP_BYTES", "0")
	t.Setenv("CALIXO_RULE_ITERATION_LIMIT", "0")
	t.Setenv("CALIXO_BACKEND_TIMEOUT", "soon")
	t.Setenv("CALIXO_TTS_ERROR_RESTORE", "-5")
	t.Setenv("CALIXO_TRANSCRIBER", "whisper")
	t.Setenv("CALIXO_WEIGHT_KG", "-3")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "not-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.MinClipBytes != 500 {
		t.Fatalf("expected audio defaults, got %+v", cfg.Audio)
	}
	if cfg.Rules.IterationLimit != 30 {
		t.Fatalf("expected default iteration limit, got %d", cfg.Rules.IterationLimit)
	}
	if cfg.Backend.Timeout != 60*time.Second {
		t.Fatalf("expected default timeout, got %s", cfg.Backend.Timeout)
	}
	if cfg.Playback.ErrorRestore != 2*time.Second {
		t.Fatalf("expected default restore delay, got %s", cfg.Playback.ErrorRestore)
	}
	if cfg.Transcription.Provider != ProviderBackend {
		t.Fatalf("expected unknown provider to fall back, got %q", cfg.Transcription.Provider)
	}
	if cfg.Profile.WeightKg != 70 {
		t.Fatalf("expected default weight, got %v", cfg.Profile.WeightKg)
	}
	if !cfg.Transcription.Deepgram.SmartFormat {
		t.Fatalf("expected default smart format true")
	}
}

// unsetForTest clears key for the test and restores it afterwards.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}

func TestLoadReadsDotEnvFromConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CALIXO_ENV_FILE", "")
	unsetForTest(t, "CALIXO_WEIGHT_KG")
	unsetForTest(t, "DEEPGRAM_API_KEY")
	t.Setenv("CALIXO_BACKEND_URL", "https://from-process.example.com")

	dir := filepath.Join(home, ".config", "calixo")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	contents := "CALIXO_WEIGHT_KG=91\nDEEPGRAM_API_KEY=dotenv-key\nCALIXO_BACKEND_URL=https://from-file.example.com\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Profile.WeightKg != 91 {
		t.Fatalf("expected weight from env file, got %v", cfg.Profile.WeightKg)
	}
	if cfg.Transcription.Deepgram.APIKey != "dotenv-key" {
		t.Fatalf("expected deepgram key from env file, got %q", cfg.Transcription.Deepgram.APIKey)
	}
	if cfg.Backend.BaseURL != "https://from-process.example.com" {
		t.Fatalf("process env should win over env file, got %q", cfg.Backend.BaseURL)
	}
}

func TestLoadExplicitEnvFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	unsetForTest(t, "CALIXO_SERVER_ADDR")

	path := filepath.Join(t.TempDir(), "server.env")
	if err := os.WriteFile(path, []byte("CALIXO_SERVER_ADDR=:8088\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CALIXO_ENV_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RecordServer.Addr != ":8088" {
		t.Fatalf("expected addr from explicit env file, got %q", cfg.RecordServer.Addr)
	}

	t.Setenv("CALIXO_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing explicit env file")
	}
}
