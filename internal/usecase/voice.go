package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"calixo/internal/domain"
	"calixo/internal/ports"
)

// Store is the slice of the local store the voice features mutate.
type Store interface {
	Today() string
	Load() domain.TrackingRecord
	AddDietEntry(input domain.DietInput) (domain.DietEntry, error)
	AddActivityEntry(input domain.ActivityInput) (domain.ActivityEntry, error)
	SetGoals(goals domain.Goals, story string) error
	ChatLog(surface domain.ChatSurface) []domain.ChatMessage
	SaveChatLog(surface domain.ChatSurface, messages []domain.ChatMessage) error
}

// Services are the remote collaborators behind the voice features. Rules is
// optional.
type Services struct {
	Transcriber ports.Transcriber
	Rules       ports.TranscriptRules
	Interpreter ports.SpeechInterpreter
	Nutrition   ports.NutritionLookup
	Chat        ports.ChatService
	Fit         ports.FitChecker
	Suggestions ports.SuggestionService
	Briefing    ports.BriefingService
	Goals       ports.GoalAnalyzer
	Vision      ports.FoodImageAnalyzer
}

type VoiceConfig struct {
	MinClipBytes int
	Timeout      time.Duration
}

// Voice dispatches the six voice features over the shared recorder and
// player.
type Voice struct {
	recorder *Recorder
	player   *Player
	controls *Controls
	store    Store
	svc      Services
	events   ports.EventSink
	cfg      VoiceConfig
	logger   *zap.Logger

	welcomeMu sync.Mutex
	welcomed  bool
}

type feature struct {
	mode           domain.Mode
	control        domain.ControlID
	idleLabel      string
	recordingLabel string
	listening      string
	noSpeech       string
}

var features = []feature{
	{
		mode:           domain.ModeLogFood,
		control:        domain.ControlLogFood,
		idleLabel:      "Speak to log food",
		recordingLabel: "Click to stop",
		listening:      "Listening… Say your foods (e.g. rice one cup, chicken 200 grams). Click the button when done.",
		noSpeech:       `No speech detected. Try e.g. "rice one cup, chicken 200 grams".`,
	},
	{
		mode:           domain.ModeLogActivity,
		control:        domain.ControlLogActivity,
		idleLabel:      "Speak to log activity",
		recordingLabel: "Click to stop",
		listening:      "Listening… Say your activities (e.g. I walked 30 minutes, ran 20). Click the button when done.",
		noSpeech:       `No speech detected. Try e.g. "I walked 30 minutes".`,
	},
	{
		mode:           domain.ModeCheckFood,
		control:        domain.ControlCheckFood,
		idleLabel:      "Speak",
		recordingLabel: "Stop",
		listening:      "Listening…",
		noSpeech:       "No speech detected. Describe the food (e.g. chicken breast 200g, a slice of pizza).",
	},
	{
		mode:           domain.ModeCheckActivity,
		control:        domain.ControlCheckActivity,
		idleLabel:      "Speak",
		recordingLabel: "Stop",
		listening:      "Listening…",
		noSpeech:       "No speech detected. Describe the activity (e.g. 30 min walk, 1 hour gym).",
	},
	{
		mode:           domain.ModeChat,
		control:        domain.ControlChat,
		idleLabel:      "Speak",
		recordingLabel: "Stop",
		listening:      "Listening…",
		noSpeech:       "No speech detected. Try again.",
	},
	{
		mode:           domain.ModeTalk,
		control:        domain.ControlTalk,
		idleLabel:      "Tap to speak",
		recordingLabel: "Tap when done",
		listening:      "Listening… Tap again when you finish.",
		noSpeech:       "No speech detected. Tap to try again.",
	},
}

const (
	noAudioMessage     = "No audio captured. Try again and speak clearly."
	micErrorMessage    = "Microphone access denied or unavailable."
	interruptedMessage = "Recording stopped because the microphone failed. Try again."
)

func featureFor(mode domain.Mode) (feature, bool) {
	for _, f := range features {
		if f.mode == mode {
			return f, true
		}
	}
	return feature{}, false
}

func NewVoice(recorder *Recorder, player *Player, controls *Controls, store Store, svc Services, events ports.EventSink, cfg VoiceConfig, logger *zap.Logger) *Voice {
	if cfg.MinClipBytes <= 0 {
		cfg.MinClipBytes = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Voice{
		recorder: recorder,
		player:   player,
		controls: controls,
		store:    store,
		svc:      svc,
		events:   events,
		cfg:      cfg,
		logger:   logger,
	}
	recorder.OnInterrupted = v.interrupted
	return v
}

// Toggle is the click handler shared by every voice control: the first click
// starts recording for mode, the second stops it and runs the feature's
// pipeline. A click while another feature records is refused.
func (v *Voice) Toggle(ctx context.Context, mode domain.Mode) (domain.VoiceOutcome, error) {
	f, ok := featureFor(mode)
	if !ok {
		return domain.VoiceOutcome{Mode: mode}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	status := v.recorder.Status()
	switch {
	case status.Active && status.Mode == mode:
		return v.finish(ctx, f)
	case status.Active:
		return domain.VoiceOutcome{Mode: mode}, fmt.Errorf("%w: %s", ErrRecorderBusy, status.Mode)
	}
	return v.begin(ctx, f)
}

// Status exposes the recorder state to the UI.
func (v *Voice) Status() domain.RecorderStatus {
	return v.recorder.Status()
}

func (v *Voice) begin(ctx context.Context, f feature) (domain.VoiceOutcome, error) {
	out := domain.VoiceOutcome{Mode: f.mode}

	// The microphone must not pick up Calixo talking.
	v.player.Stop()

	if err := v.recorder.Begin(ctx, f.mode); err != nil {
		if errors.Is(err, ErrMicrophoneUnavailable) {
			v.controls.Reset(f.control, micErrorMessage)
			v.sessionError(domain.ErrorCodeMicrophone, err)
		}
		return out, err
	}
	v.controls.Set(f.control, f.recordingLabel, false)
	v.controls.SetStatus(f.control, f.listening)
	out.Started = true
	return out, nil
}

func (v *Voice) finish(ctx context.Context, f feature) (domain.VoiceOutcome, error) {
	clip, err := v.recorder.StopAndCollect(f.mode)
	if err != nil {
		return domain.VoiceOutcome{Mode: f.mode}, err
	}

	switch f.mode {
	case domain.ModeLogFood:
		return v.runLogFood(ctx, f, clip)
	case domain.ModeLogActivity:
		return v.runLogActivity(ctx, f, clip)
	case domain.ModeCheckFood, domain.ModeCheckActivity:
		return v.runCheck(ctx, f, clip)
	case domain.ModeChat:
		return v.runChat(ctx, f, clip)
	default:
		return v.runTalk(ctx, f, clip)
	}
}

func (v *Voice) interrupted(mode domain.Mode, _ error) {
	if f, ok := featureFor(mode); ok {
		v.controls.Reset(f.control, interruptedMessage)
	}
}

func (v *Voice) runLogFood(ctx context.Context, f feature, clip domain.AudioClip) (domain.VoiceOutcome, error) {
	out := domain.VoiceOutcome{Mode: f.mode}
	v.controls.Set(f.control, "Processing…", true)

	transcript, message, err := v.transcribe(ctx, f, clip)
	if transcript == "" {
		out.Message = message
		v.controls.Reset(f.control, message)
		return out, err
	}
	out.Transcript = transcript

	v.controls.Set(f.control, "Parsing…", true)
	out.Message, out.Logged.Foods, err = v.logFoods(ctx, transcript)
	v.controls.Reset(f.control, out.Message)
	return out, err
}

func (v *Voice) runLogActivity(ctx context.Context, f feature, clip domain.AudioClip) (domain.VoiceOutcome, error) {
	out := domain.VoiceOutcome{Mode: f.mode}
	v.controls.Set(f.control, "Processing…", true)

	transcript, message, err := v.transcribe(ctx, f, clip)
	if transcript == "" {
		out.Message = message
		v.controls.Reset(f.control, message)
		return out, err
	}
	out.Transcript = transcript

	v.controls.Set(f.control, "Parsing…", true)
	out.Message, out.Logged.Activities, err = v.logActivities(ctx, transcript)
	v.controls.Reset(f.control, out.Message)
	return out, err
}

func (v *Voice) runCheck(ctx context.Context, f feature, clip domain.AudioClip) (domain.VoiceOutcome, error) {
	out := domain.VoiceOutcome{Mode: f.mode}
	v.controls.Set(f.control, "…", true)
	v.controls.SetStatus(f.control, "Transcribing…")

	transcript, message, err := v.transcribe(ctx, f, clip)
	if transcript == "" {
		out.Message = message
		v.controls.Reset(f.control, message)
		return out, err
	}
	out.Transcript = transcript

	v.controls.SetStatus(f.control, "Checking against your goals…")
	verdict, err := v.fitCheck(ctx, f.mode, transcript)
	if err != nil {
		out.Message = "Could not check right now. Please try again."
		v.controls.Reset(f.control, out.Message)
		return out, err
	}
	out.Verdict = &verdict
	out.Message = verdict.Headline
	v.controls.Reset(f.control, "")
	return out, nil
}

func (v *Voice) runChat(ctx context.Context, f feature, clip domain.AudioClip) (domain.VoiceOutcome, error) {
	out := domain.VoiceOutcome{Mode: f.mode}
	v.controls.Set(f.control, "…", true)

	transcript, message, err := v.transcribe(ctx, f, clip)
	if transcript == "" {
		out.Message = message
		v.controls.Reset(f.control, message)
		return out, err
	}
	out.Transcript = transcript
	out.Logged = v.extract(ctx, transcript)

	reply, err := v.chatTurn(ctx, domain.ChatSurfaceGoals, transcript)
	out.Reply = reply.Reply
	v.controls.Reset(f.control, "")
	return out, err
}

func (v *Voice) runTalk(ctx context.Context, f feature, clip domain.AudioClip) (domain.VoiceOutcome, error) {
	out := domain.VoiceOutcome{Mode: f.mode}
	v.controls.Set(f.control, f.idleLabel, true)
	v.controls.SetStatus(f.control, "Transcribing…")

	transcript, message, err := v.transcribe(ctx, f, clip)
	if transcript == "" {
		out.Message = message
		v.controls.Reset(f.control, message)
		return out, err
	}
	out.Transcript = transcript

	v.controls.SetStatus(f.control, "Checking for food or activity…")
	out.Logged = v.extract(ctx, transcript)
	if out.Logged.Any() {
		v.controls.SetStatus(f.control, "Logged "+describeCounts(out.Logged)+". Getting Calixo…")
	} else {
		v.controls.SetStatus(f.control, "Calixo is thinking…")
	}

	reply, chatErr := v.chatTurn(ctx, domain.ChatSurfaceTalk, transcript)
	out.Reply = reply.Reply
	if chatErr != nil {
		v.sessionError(domain.ErrorCodeBackend, chatErr)
	}

	v.controls.SetStatus(f.control, "Calixo is speaking…")
	speakErr := v.player.Speak(ctx, reply.Reply, f.control, func() {
		v.controls.Reset(f.control, "")
	})
	if speakErr != nil {
		v.sessionError(domain.ErrorCodePlayback, speakErr)
	}
	return out, errors.Join(chatErr, speakErr)
}

// transcribe returns the normalized transcript, or an empty transcript and
// the message to show instead.
func (v *Voice) transcribe(ctx context.Context, f feature, clip domain.AudioClip) (string, string, error) {
	if !clip.Viable(v.cfg.MinClipBytes) {
		return "", noAudioMessage, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()
	text, err := v.svc.Transcriber.Transcribe(callCtx, clip)
	if err != nil {
		v.logger.Warn("transcription failed", zap.String("mode", string(f.mode)), zap.Error(err))
		v.sessionError(domain.ErrorCodeTranscription, err)
		return "", "Transcription failed. Please try again.", fmt.Errorf("transcribe: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", f.noSpeech, nil
	}
	if v.svc.Rules != nil {
		rewritten, err := v.svc.Rules.Apply(text)
		if err != nil {
			v.logger.Warn("transcript rules failed", zap.Error(err))
			v.sessionError(domain.ErrorCodeRules, err)
		} else if strings.TrimSpace(rewritten) != "" {
			text = rewritten
		}
	}
	return text, "", nil
}

func (v *Voice) sessionError(code domain.ErrorCode, err error) {
	if v.events != nil && err != nil {
		v.events.SessionError(code, err.Error())
	}
}

func describeCounts(counts domain.LogCounts) string {
	var parts []string
	if counts.Foods > 0 {
		parts = append(parts, plural(counts.Foods, "food", "foods"))
	}
	if counts.Activities > 0 {
		parts = append(parts, plural(counts.Activities, "activity", "activities"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
