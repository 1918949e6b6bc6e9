package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"calixo/internal/domain"
	"calixo/internal/ports"
)

const (
	GeneratingLabel = "Generating…"
	SpeakingLabel   = "Speaking…"
	ReadFailedLabel = "Read aloud failed"
)

// PlayerConfig bounds synthesized speech.
type PlayerConfig struct {
	MaxChars     int
	ErrorRestore time.Duration
	Timeout      time.Duration
}

// Player owns the single audible stream. Speaking again tears the previous
// stream down, owner control and continuation included, before claiming the
// new owner.
type Player struct {
	synth    ports.SpeechSynthesizer
	output   ports.AudioOutput
	controls *Controls
	events   ports.EventSink
	cfg      PlayerConfig
	logger   *zap.Logger
	after    func(time.Duration, func())

	// claimMu orders the swap-teardown-claim step of concurrent Speak calls.
	claimMu sync.Mutex

	mu      sync.Mutex
	current *utterance
}

type utterance struct {
	id     string
	owner  domain.ControlID
	saved  string
	onEnd  func()
	cancel context.CancelFunc
	ended  sync.Once

	// guarded by Player.mu
	handle  ports.PlaybackHandle
	playing bool
}

func NewPlayer(synth ports.SpeechSynthesizer, output ports.AudioOutput, controls *Controls, events ports.EventSink, cfg PlayerConfig, logger *zap.Logger) *Player {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 2500
	}
	if cfg.ErrorRestore < 0 {
		cfg.ErrorRestore = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{
		synth:    synth,
		output:   output,
		controls: controls,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Active reports whether a session is synthesizing or playing.
func (p *Player) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Speak synthesizes text and plays it with owner as the busy control. onEnd
// runs exactly once when the session ends for any reason and must not call
// back into the player. Blank text is a no-op. Speak returns once playback has
// started.
func (p *Player) Speak(ctx context.Context, text string, owner domain.ControlID, onEnd func()) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	text = truncateRunes(text, p.cfg.MaxChars)

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	u := &utterance{id: uuid.NewString(), owner: owner, onEnd: onEnd, cancel: cancel}

	p.claimMu.Lock()
	p.mu.Lock()
	previous := p.current
	p.current = u
	p.mu.Unlock()
	if previous != nil {
		p.teardown(previous)
	}
	u.saved = p.controls.Claim(owner, GeneratingLabel)
	p.claimMu.Unlock()

	synthCtx, cancelSynth := context.WithTimeout(sessionCtx, p.cfg.Timeout)
	audio, err := p.synth.Synthesize(synthCtx, text)
	cancelSynth()
	if err != nil {
		p.mu.Lock()
		if p.current != u {
			p.mu.Unlock()
			return nil
		}
		p.controls.Set(owner, ReadFailedLabel, true)
		p.mu.Unlock()

		p.logger.Warn("speech synthesis failed", zap.String("utterance_id", u.id), zap.Error(err))
		p.after(p.cfg.ErrorRestore, func() {
			p.clear(u)
			p.finish(u)
		})
		return fmt.Errorf("synthesize speech: %w", err)
	}

	p.mu.Lock()
	if p.current != u {
		p.mu.Unlock()
		return nil
	}
	handle, err := p.output.Play(sessionCtx, audio)
	if err != nil {
		p.current = nil
		p.mu.Unlock()
		p.logger.Warn("playback failed to start", zap.String("utterance_id", u.id), zap.Error(err))
		p.reportPlaybackError(err)
		p.finish(u)
		return fmt.Errorf("play speech: %w", err)
	}
	u.handle = handle
	u.playing = true
	// Under mu so a concurrent teardown cannot restore the owner first.
	p.controls.Set(owner, SpeakingLabel, true)
	if p.events != nil {
		p.events.PlaybackChanged(true)
	}
	p.mu.Unlock()

	go p.watch(u, handle)
	return nil
}

// Stop tears down the current session without starting another.
func (p *Player) Stop() bool {
	p.claimMu.Lock()
	defer p.claimMu.Unlock()

	p.mu.Lock()
	u := p.current
	p.current = nil
	p.mu.Unlock()

	if u == nil {
		return false
	}
	p.teardown(u)
	return true
}

func (p *Player) watch(u *utterance, handle ports.PlaybackHandle) {
	<-handle.Done()
	p.clear(u)
	if err := handle.Err(); err != nil {
		p.logger.Warn("playback failed", zap.String("utterance_id", u.id), zap.Error(err))
		p.reportPlaybackError(err)
	}
	p.finish(u)
}

func (p *Player) teardown(u *utterance) {
	u.cancel()
	p.mu.Lock()
	handle := u.handle
	p.mu.Unlock()
	if handle != nil {
		if err := handle.Stop(); err != nil {
			p.logger.Debug("playback stop", zap.String("utterance_id", u.id), zap.Error(err))
		}
	}
	p.finish(u)
}

// finish restores the owner and runs the continuation. It is idempotent.
func (p *Player) finish(u *utterance) {
	u.ended.Do(func() {
		u.cancel()
		p.controls.Release(u.owner, u.saved)

		p.mu.Lock()
		wasPlaying := u.playing
		u.playing = false
		p.mu.Unlock()
		if wasPlaying && p.events != nil {
			p.events.PlaybackChanged(false)
		}
		if u.onEnd != nil {
			u.onEnd()
		}
	})
}

func (p *Player) clear(u *utterance) {
	p.mu.Lock()
	if p.current == u {
		p.current = nil
	}
	p.mu.Unlock()
}

func (p *Player) reportPlaybackError(err error) {
	if p.events != nil {
		p.events.SessionError(domain.ErrorCodePlayback, err.Error())
	}
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
