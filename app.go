package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"calixo/internal/bootstrap"
	"calixo/internal/domain"
)

const (
	eventControl      = "calixo:control"
	eventRecord       = "calixo:record"
	eventPlayback     = "calixo:playback"
	eventError        = "calixo:error"
	eventAvailability = "calixo:availability"
)

// emitFunc matches runtime.EventsEmit.
type emitFunc func(ctx context.Context, name string, data ...interface{})

// App is the Wails application root.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	emit   emitFunc

	services bootstrap.Services
	ready    bool
	bootErr  error
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.services = services
	a.ready = true

	syncCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go services.Start(syncCtx)
}

func (a *App) shutdown(_ context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if !a.ready {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// ToggleVoice is the click handler of every microphone control.
func (a *App) ToggleVoice(mode string) (domain.VoiceOutcome, error) {
	if err := a.requireReady(); err != nil {
		return domain.VoiceOutcome{}, err
	}
	return a.services.Voice.Toggle(a.ctx, domain.Mode(mode))
}

// StopAudio stops whatever is being read aloud.
func (a *App) StopAudio() bool {
	if a.requireReady() != nil {
		return false
	}
	return a.services.Voice.StopAudio()
}

func (a *App) ReadDashboard() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Voice.ReadDashboard(a.ctx)
}

func (a *App) ReadSuggestions() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Voice.ReadSuggestions(a.ctx)
}

func (a *App) CoachBriefing() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Voice.CoachBriefing(a.ctx)
}

func (a *App) CheckFood(description string) (domain.FitVerdict, error) {
	if err := a.requireReady(); err != nil {
		return domain.FitVerdict{}, err
	}
	return a.services.Voice.CheckFood(a.ctx, description)
}

func (a *App) CheckActivity(description string) (domain.FitVerdict, error) {
	if err := a.requireReady(); err != nil {
		return domain.FitVerdict{}, err
	}
	return a.services.Voice.CheckActivity(a.ctx, description)
}

func (a *App) SendChat(text string) (domain.ChatReply, error) {
	if err := a.requireReady(); err != nil {
		return domain.ChatReply{}, err
	}
	return a.services.Voice.SendChat(a.ctx, text)
}

func (a *App) ChatHistory(surface string) ([]domain.ChatMessage, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Voice.ChatHistory(domain.ChatSurface(surface)), nil
}

// LogFood logs a typed food; amount is grams ("150g") or a quantity phrase.
func (a *App) LogFood(name string, amount string) (domain.DietEntry, error) {
	if err := a.requireReady(); err != nil {
		return domain.DietEntry{}, err
	}
	return a.services.Voice.LogFood(a.ctx, name, amount)
}

func (a *App) LogActivity(activityType string, minutes float64, intensity string) (domain.ActivityEntry, error) {
	if err := a.requireReady(); err != nil {
		return domain.ActivityEntry{}, err
	}
	return a.services.Voice.LogActivity(domain.ActivityInput{
		Type:      activityType,
		Duration:  minutes,
		Intensity: intensity,
	})
}

func (a *App) DeleteEntry(date string, id string) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.services.Store.DeleteEntry(date, id)
}

func (a *App) SetGoals(goals domain.Goals, story string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Store.SetGoals(goals, story)
}

// AnalyzeGoals turns the user's fitness story into goals and saves them.
func (a *App) AnalyzeGoals(story string) (domain.Goals, error) {
	if err := a.requireReady(); err != nil {
		return domain.Goals{}, err
	}
	return a.services.Voice.AnalyzeGoals(a.ctx, story)
}

// AnalyzeFoodImage describes a meal photo. data arrives base64-encoded from
// the frontend.
func (a *App) AnalyzeFoodImage(data []byte, mimeType string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.services.Voice.AnalyzeFoodImage(a.ctx, domain.FoodPhoto{Data: data, MimeType: mimeType})
}

func (a *App) LogPhotoMeal(analysis string) (domain.DietEntry, error) {
	if err := a.requireReady(); err != nil {
		return domain.DietEntry{}, err
	}
	return a.services.Voice.LogPhotoMeal(analysis)
}

// WelcomeTalk greets the user when the talk tab opens on a fresh transcript.
func (a *App) WelcomeTalk() (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.services.Voice.WelcomeTalk(a.ctx)
}

// GetToday returns today's totals, goals and recent entries.
func (a *App) GetToday() (domain.DaySummary, error) {
	if err := a.requireReady(); err != nil {
		return domain.DaySummary{}, err
	}
	return a.services.Today(), nil
}

func (a *App) GetControls() []domain.ControlState {
	if a.requireReady() != nil {
		return nil
	}
	return a.services.Controls.Snapshot()
}

func (a *App) Suggestions() ([]domain.Suggestion, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Voice.Suggestions(a.ctx), nil
}

// CheckSync asks the record store for its health again and reports the
// resulting availability.
func (a *App) CheckSync() (domain.Availability, error) {
	if err := a.requireReady(); err != nil {
		return domain.AvailabilityUnknown, err
	}
	return a.services.CheckSync(a.ctx)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if !a.ready {
		return map[string]string{}
	}
	cfg := a.services.Config
	return map[string]string{
		"backend":      cfg.Backend.BaseURL,
		"recordStore":  cfg.Remote.BaseURL,
		"transcriber":  cfg.Transcription.Provider,
		"rulesFile":    cfg.Rules.Path,
		"audioInput":   cfg.Audio.InputDevice,
		"availability": string(a.services.Sync.Availability()),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if !a.ready {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// ControlChanged mirrors a control's label and disabled state to the UI.
func (a *App) ControlChanged(state domain.ControlState) {
	a.send(eventControl, state)
}

// RecordChanged tells the UI to re-render the dashboard.
func (a *App) RecordChanged() {
	a.send(eventRecord)
}

func (a *App) PlaybackChanged(active bool) {
	a.send(eventPlayback, map[string]bool{"active": active})
}

func (a *App) AvailabilityChanged(state domain.Availability) {
	a.send(eventAvailability, map[string]string{"state": string(state)})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) send(name string, data ...interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, data...)
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeMicrophone:
		return "Microphone access denied or unavailable"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Recording stopped unexpectedly"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeInterpret:
		return "Could not understand that"
	case domain.ErrorCodeBackend:
		return "Service error"
	case domain.ErrorCodePlayback:
		return "Read aloud failed"
	case domain.ErrorCodeStorage:
		return "Could not save your data"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	default:
		if strings.TrimSpace(detail) == "" {
			return "Unknown error"
		}
		return detail
	}
}
