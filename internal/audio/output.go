package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"calixo/internal/ports"
)

// FFPlayOutput plays encoded speech by piping it into ffplay.
type FFPlayOutput struct {
	command string
}

func NewFFPlayOutput(command string) *FFPlayOutput {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayOutput{command: command}
}

func (o *FFPlayOutput) Play(ctx context.Context, audio []byte) (ports.PlaybackHandle, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("no audio to play")
	}

	cmd := exec.CommandContext(ctx, o.command,
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "error",
		"-i", "-",
	)
	cmd.Stdin = bytes.NewReader(audio)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffplay: %w", err)
	}

	waitErr := make(chan error, 1)
	handle := &playback{
		process: cmd.Process,
		waitErr: waitErr,
		done:    make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		handle.finish(err, stderr)
		waitErr <- err
		close(waitErr)
	}()
	return handle, nil
}

type playback struct {
	process *os.Process
	waitErr chan error
	done    chan struct{}

	mu      sync.Mutex
	err     error
	stopped bool

	stopOnce sync.Once
}

func (p *playback) Done() <-chan struct{} {
	return p.done
}

func (p *playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stop interrupts playback. A stopped playback never reports an error.
func (p *playback) Stop() error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		_ = stopProcess(p.process, p.waitErr, 500*time.Millisecond)
	})
	<-p.done
	return nil
}

func (p *playback) finish(err error, stderr *lockedBuffer) {
	p.mu.Lock()
	if err != nil && !p.stopped {
		p.err = fmt.Errorf("ffplay failed: %w: %s", err, trimOutput(stderr.String()))
	}
	p.mu.Unlock()
	close(p.done)
}
