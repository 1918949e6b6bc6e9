package domain

// Mode identifies which feature owns the shared recording resource.
type Mode string

const (
	ModeLogFood       Mode = "food"
	ModeLogActivity   Mode = "activity"
	ModeCheckFood     Mode = "check-food"
	ModeCheckActivity Mode = "check-activity"
	ModeChat          Mode = "chat"
	ModeTalk          Mode = "talk"
)

// Modes lists every voice feature in display order.
func Modes() []Mode {
	return []Mode{ModeLogFood, ModeLogActivity, ModeCheckFood, ModeCheckActivity, ModeChat, ModeTalk}
}

// Valid reports whether m is a known feature tag.
func (m Mode) Valid() bool {
	for _, known := range Modes() {
		if m == known {
			return true
		}
	}
	return false
}

// Availability is the remote store latch.
type Availability string

const (
	AvailabilityUnknown     Availability = "unknown"
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
)

// RecorderStatus summarizes the shared capture slot.
type RecorderStatus struct {
	Active bool `json:"active"`
	Mode   Mode `json:"mode,omitempty"`
}

// ErrorCode identifies non-fatal backend errors surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeMicrophone    ErrorCode = "microphone"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeInterpret     ErrorCode = "interpretation"
	ErrorCodeBackend       ErrorCode = "backend"
	ErrorCodePlayback      ErrorCode = "playback"
	ErrorCodeStorage       ErrorCode = "storage"
	ErrorCodeRules         ErrorCode = "rules"
)

// AudioClip is one finished capture.
type AudioClip struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType"`
}

// Viable reports whether the clip is large enough to be worth transcribing.
func (c AudioClip) Viable(minBytes int) bool {
	return len(c.Data) >= minBytes
}

// FoodPhoto is an image of a meal to analyze.
type FoodPhoto struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType"`
}

// ControlID names a UI control that can own a session.
type ControlID string

const (
	ControlLogFood          ControlID = "speech-food-btn"
	ControlLogActivity      ControlID = "speech-activity-btn"
	ControlCheckFood        ControlID = "check-food-mic"
	ControlCheckActivity    ControlID = "check-activity-mic"
	ControlChat             ControlID = "chat-mic"
	ControlTalk             ControlID = "talk-calixo-mic"
	ControlVoiceDashboard   ControlID = "voice-dashboard-btn"
	ControlVoiceSuggestions ControlID = "voice-suggestions-btn"
	ControlVoiceBriefing    ControlID = "voice-briefing-btn"
)

// ControlState is the rendered state of one control.
type ControlState struct {
	ID       ControlID `json:"id"`
	Label    string    `json:"label"`
	Disabled bool      `json:"disabled"`
	Status   string    `json:"status"`
}

// VoiceOutcome describes what a toggle did.
type VoiceOutcome struct {
	Mode       Mode        `json:"mode"`
	Started    bool        `json:"started"`
	Transcript string      `json:"transcript,omitempty"`
	Message    string      `json:"message,omitempty"`
	Logged     LogCounts   `json:"logged"`
	Verdict    *FitVerdict `json:"verdict,omitempty"`
	Reply      string      `json:"reply,omitempty"`
}

// LogCounts reports how many entries a pipeline appended.
type LogCounts struct {
	Foods      int `json:"foods"`
	Activities int `json:"activities"`
}

// Any reports whether anything was logged.
func (c LogCounts) Any() bool {
	return c.Foods > 0 || c.Activities > 0
}
