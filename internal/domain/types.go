package domain

import (
	"errors"
	"time"
)

// Mode models the controller lifecycle. Exactly one non-Idle session may
// exist at a time across all invocations.
type Mode string

const (
	ModeIdle         Mode = "idle"
	ModeRecording    Mode = "recording"
	ModeTranscribing Mode = "transcribing"
	ModeSpeaking     Mode = "speaking"
	ModePaused       Mode = "paused"
)

// Backend selects which TTS engine plays text aloud.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

// Toggle returns the other backend.
func (b Backend) Toggle() Backend {
	if b == BackendRemote {
		return BackendLocal
	}
	return BackendRemote
}

// Action is a requested state transition, one per hotkey combo plus the
// speak entry point.
type Action string

const (
	ActionStartRecording Action = "start-record"
	ActionStopRecording  Action = "stop-record"
	ActionNextParagraph  Action = "next-paragraph"
	ActionPrevParagraph  Action = "prev-paragraph"
	ActionPauseResume    Action = "pause-resume"
	ActionToggleBackend  Action = "toggle-backend"
	ActionSpeak          Action = "speak"
)

// ProcessKind identifies which external child a session owns.
type ProcessKind string

const (
	ProcessRecorder ProcessKind = "recorder"
	ProcessPlayer   ProcessKind = "player"
)

// Session is the durable record of the current mode cycle. It is the
// single source of truth shared by the listener and every short-lived
// command invocation.
type Session struct {
	Mode Mode `json:"mode"`

	// PID and PIDStartedAt together identify the owned child process.
	// PIDStartedAt is the child's kernel start time in unix
	// milliseconds; a pid is never signaled unless its start time still
	// matches, so a recycled pid is not mistaken for ours.
	PID          int   `json:"pid,omitempty"`
	PIDStartedAt int64 `json:"pidStartedAt,omitempty"`

	AudioPath string `json:"audioPath,omitempty"`
	TextPath  string `json:"textPath,omitempty"`

	Backend         Backend `json:"backend,omitempty"`
	ParagraphCursor int     `json:"paragraphCursor"`

	CreatedAt time.Time `json:"createdAt"`
}

// HasProcess reports whether the session references a child process.
func (s Session) HasProcess() bool {
	return s.PID > 0
}

// Active reports whether the session is in any non-Idle mode.
func (s Session) Active() bool {
	return s.Mode != "" && s.Mode != ModeIdle
}

// Speaking reports whether a player is (or should be) running.
func (s Session) Speaking() bool {
	return s.Mode == ModeSpeaking || s.Mode == ModePaused
}

// Error taxonomy. State-machine rejections are distinguished from
// collaborator failures so entry points can exit with different codes.
var (
	ErrAlreadyActive = errors.New("another mode is already active")
	ErrNotRecording  = errors.New("no recording in progress")
	ErrNotSpeaking   = errors.New("no playback in progress")

	ErrSpawnFailed = errors.New("failed to spawn child process")
	ErrNotRunning  = errors.New("tracked process is not running")

	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrPasteFailed         = errors.New("paste automation failed")
	ErrSecretNotFound      = errors.New("secret not found")
	ErrNoFocusTarget       = errors.New("no focused window to paste into")

	ErrCorruptState = errors.New("session record is corrupt")
)

// IsStateConflict reports whether err is a state-machine rejection
// rather than a real failure. Entry points exit 2 for these.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrNotRecording) ||
		errors.Is(err, ErrNotSpeaking)
}
