package ports

import (
	"context"

	"voxctl/internal/domain"
)

// ProcessHandle identifies a supervisor-started child. StartedAt is the
// kernel start time in unix milliseconds and doubles as the identity
// fingerprint guarding against pid reuse.
type ProcessHandle struct {
	PID       int
	StartedAt int64
}

// Signal is a control signal the supervisor can deliver to a child.
type Signal string

const (
	SignalStop   Signal = "stop"   // graceful stop (SIGINT, lets recorders flush)
	SignalKill   Signal = "kill"   // hard terminate (SIGTERM to the group)
	SignalPause  Signal = "pause"  // SIGSTOP to the group
	SignalResume Signal = "resume" // SIGCONT to the group
)

// Supervisor starts, signals and observes external child processes. A
// handle is only ever honored if the live process still matches the
// recorded start-time fingerprint.
type Supervisor interface {
	Start(ctx context.Context, kind domain.ProcessKind, argv []string) (ProcessHandle, error)
	Signal(handle ProcessHandle, sig Signal) error
	IsAlive(handle ProcessHandle) bool
	WaitForExit(ctx context.Context, handle ProcessHandle) error
}

// Transcriber turns a finished capture file into text. Empty text with
// a nil error means the provider heard nothing usable.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Paster places text into the focused window via clipboard and
// keystroke automation.
type Paster interface {
	Paste(ctx context.Context, text string) error
}

// PlayerCommand builds the argv that plays the persisted text from a
// paragraph cursor under the given backend. The supervisor execs it.
type PlayerCommand interface {
	PlayerArgv(textPath string, cursor int, backend domain.Backend) []string
}

// RecorderCommand builds the argv that captures microphone audio into
// the target file until gracefully stopped.
type RecorderCommand interface {
	RecorderArgv(audioPath string) []string
	NewAudioPath() string
}

// SecretSource resolves named credentials. Implementations must hand
// secrets only to the requesting process, never through a broadly
// inherited environment.
type SecretSource interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// Cue names a short audible feedback tone. Cues fire at the moments a
// user cannot watch a notification: hands on the keyboard, mid-speech.
type Cue string

const (
	CueStart Cue = "start" // recording began
	CueStop  Cue = "stop"  // recording stopped, transcription underway
	CueReady Cue = "ready" // text landed in the focused window
)

// Notifier is the user-visible side channel for outcomes and failures.
type Notifier interface {
	Info(summary, body string)
	Error(summary, body string)
	Cue(cue Cue)
}
