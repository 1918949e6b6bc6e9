package ports

import (
	"context"
	"errors"
	"fmt"
	"io"

	"calixo/internal/domain"
)

// ErrRemoteUnavailable reports that a collaborator answered 503.
var ErrRemoteUnavailable = errors.New("remote service unavailable")

// StatusError is a non-2xx answer from an HTTP collaborator.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned status %d", e.Code)
	}
	return fmt.Sprintf("remote returned status %d: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrRemoteUnavailable) match 503 answers.
func (e *StatusError) Is(target error) bool {
	return target == ErrRemoteUnavailable && e.Code == 503
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
	MimeType() string
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// PlaybackHandle is one audible stream.
type PlaybackHandle interface {
	Done() <-chan struct{}
	Err() error
	Stop() error
}

// AudioOutput plays synthesized speech.
type AudioOutput interface {
	Play(ctx context.Context, audio []byte) (PlaybackHandle, error)
}

// Transcriber turns a finished clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip domain.AudioClip) (string, error)
}

// TranscriptRules normalizes transcripts before interpretation.
type TranscriptRules interface {
	Apply(text string) (string, error)
}

// SpeechInterpreter extracts structured items from a transcript. Empty
// slices mean nothing was understood.
type SpeechInterpreter interface {
	InterpretFood(ctx context.Context, transcript string) ([]domain.FoodItem, error)
	InterpretActivity(ctx context.Context, transcript string) ([]domain.ActivityItem, error)
}

// NutritionLookup resolves the macros of a portion.
type NutritionLookup interface {
	LookupNutrition(ctx context.Context, query domain.NutritionQuery) (domain.Nutrition, error)
}

// ChatService runs one conversational turn.
type ChatService interface {
	Chat(ctx context.Context, history []domain.ChatMessage, snapshot domain.ChatContext) (domain.ChatReply, error)
}

// FitChecker grades a food or activity against the user's goals.
type FitChecker interface {
	CheckFood(ctx context.Context, description string, fit domain.FitContext) (domain.FitVerdict, error)
	CheckActivity(ctx context.Context, description string, fit domain.FitContext) (domain.FitVerdict, error)
}

// SpeechSynthesizer turns text into playable audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SuggestionService produces coaching tips from today's state.
type SuggestionService interface {
	Suggestions(ctx context.Context, summary domain.DaySummary) ([]domain.Suggestion, error)
}

// BriefingService writes a short spoken briefing script.
type BriefingService interface {
	Briefing(ctx context.Context, summary domain.DaySummary) (string, error)
}

// GoalAnalyzer turns a free-form fitness story into daily goals.
type GoalAnalyzer interface {
	AnalyzeGoals(ctx context.Context, story string) (domain.Goals, error)
}

// FoodImageAnalyzer describes the food in a photo as readable text.
type FoodImageAnalyzer interface {
	AnalyzeFoodImage(ctx context.Context, photo domain.FoodPhoto) (string, error)
}

// RemoteStore mirrors the tracking record.
type RemoteStore interface {
	Fetch(ctx context.Context) (domain.TrackingRecord, error)
	Store(ctx context.Context, record domain.TrackingRecord) error
}

// HealthProbe reports remote capabilities.
type HealthProbe interface {
	Health(ctx context.Context) (domain.Health, error)
}

// KeyValueStore is durable client-side storage of string blobs.
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Put(key string, value string) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	ControlChanged(state domain.ControlState)
	RecordChanged()
	PlaybackChanged(active bool)
	AvailabilityChanged(state domain.Availability)
	SessionError(code domain.ErrorCode, detail string)
}
