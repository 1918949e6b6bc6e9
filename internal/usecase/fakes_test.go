package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"calixo/internal/domain"
	"calixo/internal/kv"
	"calixo/internal/ports"
	"calixo/internal/store"
)

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.sessions) == 0 {
		return newFakeAudioSession(), nil
	}
	session := f.sessions[0]
	f.sessions = f.sessions[1:]
	return session, nil
}

func (f *fakeAudioCapture) startCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAudioSession yields its chunks, then blocks like a live microphone
// until it is stopped or failed.
type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	stopCalls int
	stopErr   error

	stopped  chan struct{}
	failed   chan error
	stopOnce sync.Once
}

func newFakeAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, stopped: make(chan struct{}), failed: make(chan error, 1)}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if len(f.chunks) > 0 {
		n := copy(p, f.chunks[0])
		f.chunks = f.chunks[1:]
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()

	select {
	case <-f.stopped:
		return 0, io.EOF
	case err := <-f.failed:
		return 0, err
	}
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return f.stopErr
}

func (f *fakeAudioSession) MimeType() string { return "audio/ogg" }

func (f *fakeAudioSession) fail(err error) {
	f.failed <- err
}

func (f *fakeAudioSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
	err   error
	// gate, when set, blocks the call until closed or the context ends.
	gate chan struct{}
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	gate := f.gate
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte("mp3:" + text), nil
}

func (f *fakeSynth) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeOutput struct {
	mu      sync.Mutex
	handles []*fakePlayback
	err     error
}

func (f *fakeOutput) Play(_ context.Context, audio []byte) (ports.PlaybackHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	handle := &fakePlayback{audio: audio, done: make(chan struct{})}
	f.handles = append(f.handles, handle)
	return handle, nil
}

func (f *fakeOutput) played() []*fakePlayback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakePlayback(nil), f.handles...)
}

type fakePlayback struct {
	audio []byte
	done  chan struct{}

	mu        sync.Mutex
	err       error
	stopCalls int
	once      sync.Once
}

func (f *fakePlayback) Done() <-chan struct{} { return f.done }

func (f *fakePlayback) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakePlayback) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.end(nil)
	return nil
}

func (f *fakePlayback) end(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.done)
	})
}

type fakeEventSink struct {
	mu sync.Mutex

	controls []domain.ControlState
	playback []bool
	errors   []errEvent
	records  int
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) ControlChanged(state domain.ControlState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, state)
}

func (f *fakeEventSink) RecordChanged() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records++
}

func (f *fakeEventSink) PlaybackChanged(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playback = append(f.playback, active)
}

func (f *fakeEventSink) AvailabilityChanged(domain.Availability) {}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) controlHistory() []domain.ControlState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ControlState(nil), f.controls...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

func (f *fakeEventSink) playbackHistory() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.playback...)
}

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	clips []domain.AudioClip
}

func (f *fakeTranscriber) Transcribe(_ context.Context, clip domain.AudioClip) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clips = append(f.clips, clip)
	return f.text, f.err
}

func (f *fakeTranscriber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clips)
}

type fakeRules struct {
	transform string
	err       error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type fakeInterpreter struct {
	foods         []domain.FoodItem
	activities    []domain.ActivityItem
	foodErr       error
	activityErr   error
	foodCalls     int
	activityCalls int
}

func (f *fakeInterpreter) InterpretFood(context.Context, string) ([]domain.FoodItem, error) {
	f.foodCalls++
	return f.foods, f.foodErr
}

func (f *fakeInterpreter) InterpretActivity(context.Context, string) ([]domain.ActivityItem, error) {
	f.activityCalls++
	return f.activities, f.activityErr
}

// fakeNutrition answers from a table; missing foods fail the lookup.
type fakeNutrition struct {
	table   map[string]domain.Nutrition
	queries []domain.NutritionQuery
}

func (f *fakeNutrition) LookupNutrition(_ context.Context, query domain.NutritionQuery) (domain.Nutrition, error) {
	f.queries = append(f.queries, query)
	n, ok := f.table[query.FoodName]
	if !ok {
		return domain.Nutrition{}, &ports.StatusError{Code: 500, Message: "lookup failed"}
	}
	return n, nil
}

type fakeChat struct {
	reply    domain.ChatReply
	err      error
	history  [][]domain.ChatMessage
	snapshot []domain.ChatContext
}

func (f *fakeChat) Chat(_ context.Context, history []domain.ChatMessage, snapshot domain.ChatContext) (domain.ChatReply, error) {
	f.history = append(f.history, append([]domain.ChatMessage(nil), history...))
	f.snapshot = append(f.snapshot, snapshot)
	return f.reply, f.err
}

type fakeFit struct {
	verdict      domain.FitVerdict
	err          error
	descriptions []string
	contexts     []domain.FitContext
	kinds        []string
}

func (f *fakeFit) CheckFood(_ context.Context, description string, fit domain.FitContext) (domain.FitVerdict, error) {
	f.descriptions = append(f.descriptions, description)
	f.contexts = append(f.contexts, fit)
	f.kinds = append(f.kinds, "food")
	return f.verdict, f.err
}

func (f *fakeFit) CheckActivity(_ context.Context, description string, fit domain.FitContext) (domain.FitVerdict, error) {
	f.descriptions = append(f.descriptions, description)
	f.contexts = append(f.contexts, fit)
	f.kinds = append(f.kinds, "activity")
	return f.verdict, f.err
}

type fakeCoach struct {
	suggestions []domain.Suggestion
	script      string
	err         error
}

func (f *fakeCoach) Suggestions(context.Context, domain.DaySummary) ([]domain.Suggestion, error) {
	return f.suggestions, f.err
}

func (f *fakeCoach) Briefing(context.Context, domain.DaySummary) (string, error) {
	return f.script, f.err
}

type fakeGoalAnalyzer struct {
	goals   domain.Goals
	err     error
	stories []string
}

func (f *fakeGoalAnalyzer) AnalyzeGoals(_ context.Context, story string) (domain.Goals, error) {
	f.stories = append(f.stories, story)
	return f.goals, f.err
}

type fakeVision struct {
	analysis string
	err      error
	photos   []domain.FoodPhoto
}

func (f *fakeVision) AnalyzeFoodImage(_ context.Context, photo domain.FoodPhoto) (string, error) {
	f.photos = append(f.photos, photo)
	return f.analysis, f.err
}

func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return now }
}

type harness struct {
	voice       *Voice
	recorder    *Recorder
	player      *Player
	controls    *Controls
	store       *store.LocalStore
	events      *fakeEventSink
	capture     *fakeAudioCapture
	synth       *fakeSynth
	output      *fakeOutput
	transcriber *fakeTranscriber
	interpreter *fakeInterpreter
	nutrition   *fakeNutrition
	chat        *fakeChat
	fit         *fakeFit
	coach       *fakeCoach
	goals       *fakeGoalAnalyzer
	vision      *fakeVision
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		events:      &fakeEventSink{},
		capture:     &fakeAudioCapture{},
		synth:       &fakeSynth{},
		output:      &fakeOutput{},
		transcriber: &fakeTranscriber{},
		interpreter: &fakeInterpreter{},
		nutrition:   &fakeNutrition{table: map[string]domain.Nutrition{}},
		chat:        &fakeChat{},
		fit:         &fakeFit{},
		coach:       &fakeCoach{},
		goals:       &fakeGoalAnalyzer{},
		vision:      &fakeVision{},
	}
	h.store = store.New(kv.NewMemory(), nil, store.Options{Now: fixedClock()}, nil)
	h.controls = NewControls(h.events)
	h.recorder = NewRecorder(h.capture, h.events, RecorderConfig{}, nil)
	h.player = NewPlayer(h.synth, h.output, h.controls, h.events, PlayerConfig{ErrorRestore: 0}, nil)
	h.voice = NewVoice(h.recorder, h.player, h.controls, h.store, Services{
		Transcriber: h.transcriber,
		Interpreter: h.interpreter,
		Nutrition:   h.nutrition,
		Chat:        h.chat,
		Fit:         h.fit,
		Suggestions: h.coach,
		Briefing:    h.coach,
		Goals:       h.goals,
		Vision:      h.vision,
	}, h.events, VoiceConfig{MinClipBytes: 4}, nil)
	return h
}

// record runs a full toggle cycle for mode with audio as the captured clip.
func (h *harness) record(t *testing.T, mode domain.Mode, audio []byte) (domain.VoiceOutcome, error) {
	t.Helper()

	session := newFakeAudioSession(audio)
	h.capture.mu.Lock()
	h.capture.sessions = append(h.capture.sessions, session)
	h.capture.mu.Unlock()

	started, err := h.voice.Toggle(context.Background(), mode)
	if err != nil || !started.Started {
		t.Fatalf("toggle start for %s failed: %+v %v", mode, started, err)
	}
	waitFor(t, func() bool {
		session.mu.Lock()
		defer session.mu.Unlock()
		return len(session.chunks) == 0
	})
	return h.voice.Toggle(context.Background(), mode)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

var errBoom = errors.New("boom")
