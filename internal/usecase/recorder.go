package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"calixo/internal/domain"
	"calixo/internal/ports"
)

var (
	ErrRecorderBusy          = errors.New("another feature is recording")
	ErrAlreadyRecording      = errors.New("already recording")
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")
	ErrModeMismatch          = errors.New("recording belongs to another feature")
	ErrNoActiveRecording     = errors.New("no active recording")
	ErrUnknownMode           = errors.New("unknown voice feature")
)

// RecorderConfig controls microphone capture.
type RecorderConfig struct {
	Audio     ports.AudioConfig
	ChunkSize int
}

// Recorder arbitrates the one microphone between the voice features. At most
// one recording exists at a time and it is tagged with the mode that began it.
type Recorder struct {
	capture ports.AudioCapture
	events  ports.EventSink
	logger  *zap.Logger
	cfg     RecorderConfig

	// OnInterrupted runs after a device error ended a recording, so the owning
	// feature can reset its control.
	OnInterrupted func(mode domain.Mode, err error)

	mu      sync.Mutex
	current *recording
}

type recording struct {
	id   string
	mode domain.Mode

	// ready is false while the device is being acquired. Guarded by Recorder.mu.
	ready bool

	session  ports.AudioSession
	cancel   context.CancelFunc
	stopping atomic.Bool
	release  sync.Once
	stopErr  error
	done     chan struct{}

	bufMu sync.Mutex
	buf   bytes.Buffer
}

func NewRecorder(capture ports.AudioCapture, events ports.EventSink, cfg RecorderConfig, logger *zap.Logger) *Recorder {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{capture: capture, events: events, cfg: cfg, logger: logger}
}

// Status reports whether a recording is in progress and which mode owns it.
func (r *Recorder) Status() domain.RecorderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return domain.RecorderStatus{}
	}
	return domain.RecorderStatus{Active: true, Mode: r.current.mode}
}

// Begin claims the microphone for mode. The claim is taken before the device
// is opened so two features can never both be acquiring.
func (r *Recorder) Begin(ctx context.Context, mode domain.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	r.mu.Lock()
	if active := r.current; active != nil {
		r.mu.Unlock()
		if active.mode == mode {
			return ErrAlreadyRecording
		}
		return fmt.Errorf("%w: %s", ErrRecorderBusy, active.mode)
	}
	rec := &recording{id: uuid.NewString(), mode: mode, done: make(chan struct{})}
	r.current = rec
	r.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session, err := r.capture.Start(sessionCtx, r.cfg.Audio)
	if err != nil {
		cancel()
		r.mu.Lock()
		if r.current == rec {
			r.current = nil
		}
		r.mu.Unlock()
		r.logger.Warn("microphone unavailable", zap.String("mode", string(mode)), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}

	rec.session = session
	rec.cancel = cancel
	r.mu.Lock()
	rec.ready = true
	r.mu.Unlock()

	r.logger.Debug("recording started", zap.String("recording_id", rec.id), zap.String("mode", string(mode)))
	go r.pump(rec)
	return nil
}

// StopAndCollect ends the recording owned by mode and returns its audio. A
// recording owned by another mode is left untouched.
func (r *Recorder) StopAndCollect(mode domain.Mode) (domain.AudioClip, error) {
	r.mu.Lock()
	rec := r.current
	if rec == nil || !rec.ready {
		r.mu.Unlock()
		return domain.AudioClip{}, ErrNoActiveRecording
	}
	if rec.mode != mode {
		r.mu.Unlock()
		return domain.AudioClip{}, fmt.Errorf("%w: active %s, requested %s", ErrModeMismatch, rec.mode, mode)
	}
	r.current = nil
	r.mu.Unlock()

	if err := rec.releaseDevice(); err != nil {
		r.logger.Warn("audio capture did not stop cleanly", zap.String("recording_id", rec.id), zap.Error(err))
		if r.events != nil {
			r.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
		}
	}
	<-rec.done

	clip := domain.AudioClip{Data: rec.bytes(), MimeType: rec.session.MimeType()}
	r.logger.Debug("recording collected",
		zap.String("recording_id", rec.id),
		zap.String("mode", string(mode)),
		zap.Int("bytes", len(clip.Data)),
	)
	return clip, nil
}

// Cancel discards any recording without collecting it.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	rec := r.current
	if rec == nil || !rec.ready {
		r.mu.Unlock()
		return
	}
	r.current = nil
	r.mu.Unlock()

	_ = rec.releaseDevice()
	<-rec.done
}

func (r *Recorder) pump(rec *recording) {
	defer close(rec.done)

	buf := make([]byte, r.cfg.ChunkSize)
	for {
		n, err := rec.session.Read(buf)
		if n > 0 {
			rec.append(buf[:n])
		}
		if err == nil {
			continue
		}
		if rec.stopping.Load() {
			return
		}
		if errors.Is(err, io.EOF) {
			err = errors.New("audio capture ended unexpectedly")
		}
		r.interrupt(rec, err)
		return
	}
}

func (r *Recorder) interrupt(rec *recording, cause error) {
	r.mu.Lock()
	if r.current != rec {
		r.mu.Unlock()
		return
	}
	r.current = nil
	r.mu.Unlock()

	_ = rec.releaseDevice()
	r.logger.Warn("recording interrupted",
		zap.String("recording_id", rec.id),
		zap.String("mode", string(rec.mode)),
		zap.Error(cause),
	)
	if r.events != nil {
		r.events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", cause))
	}
	if r.OnInterrupted != nil {
		r.OnInterrupted(rec.mode, cause)
	}
}

// releaseDevice stops the capture exactly once, whoever gets there first.
func (rec *recording) releaseDevice() error {
	rec.release.Do(func() {
		rec.stopping.Store(true)
		rec.stopErr = rec.session.Stop()
		rec.cancel()
	})
	return rec.stopErr
}

func (rec *recording) append(p []byte) {
	rec.bufMu.Lock()
	rec.buf.Write(p)
	rec.bufMu.Unlock()
}

func (rec *recording) bytes() []byte {
	rec.bufMu.Lock()
	defer rec.bufMu.Unlock()
	return bytes.Clone(rec.buf.Bytes())
}
