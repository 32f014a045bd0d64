// Package controller is the mode state machine. Every action, whether
// it comes from the long-lived listener or an independently spawned
// command, runs as one critical section under the state store's
// exclusive lock: load, reconcile, validate, side effects, save.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"voxctl/internal/domain"
	"voxctl/internal/logger"
	"voxctl/internal/ports"
	"voxctl/internal/statestore"
	"voxctl/internal/transcribe"
)

// Config tunes controller behavior.
type Config struct {
	// StaleAfter is how old a non-Idle session must be before a dead
	// owning process lets it be reaped back to Idle.
	StaleAfter time.Duration
	// StopWait bounds how long StopRecording waits for the recorder to
	// flush and exit after the graceful stop signal.
	StopWait time.Duration
}

// Controller validates and applies mode transitions, delegating side
// effects to the supervisor and the collaborator ports.
type Controller struct {
	store       *statestore.Store
	sup         ports.Supervisor
	transcriber ports.Transcriber
	paster      ports.Paster
	recorder    ports.RecorderCommand
	player      ports.PlayerCommand
	notifier    ports.Notifier
	cfg         Config
}

func New(
	store *statestore.Store,
	sup ports.Supervisor,
	transcriber ports.Transcriber,
	paster ports.Paster,
	recorder ports.RecorderCommand,
	player ports.PlayerCommand,
	notifier ports.Notifier,
	cfg Config,
) *Controller {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.StopWait <= 0 {
		cfg.StopWait = 10 * time.Second
	}
	return &Controller{
		store:       store,
		sup:         sup,
		transcriber: transcriber,
		paster:      paster,
		recorder:    recorder,
		player:      player,
		notifier:    notifier,
		cfg:         cfg,
	}
}

// Apply runs the requested action. ActionSpeak carries text and must go
// through Speak instead.
func (c *Controller) Apply(ctx context.Context, action domain.Action) error {
	switch action {
	case domain.ActionStartRecording:
		return c.StartRecording(ctx)
	case domain.ActionStopRecording:
		return c.StopRecording(ctx)
	case domain.ActionNextParagraph:
		return c.MoveParagraph(ctx, +1)
	case domain.ActionPrevParagraph:
		return c.MoveParagraph(ctx, -1)
	case domain.ActionPauseResume:
		return c.PauseResume(ctx)
	case domain.ActionToggleBackend:
		return c.ToggleBackend(ctx)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

// StartRecording spawns the recorder and persists the new session. The
// session is only written after the child is confirmed started, and the
// child is torn down again if the write fails, so there is never an
// orphaned recorder or a record pointing at nothing.
func (c *Controller) StartRecording(ctx context.Context) error {
	return c.store.WithLock(ctx, func() error {
		session := c.loadReconciled()
		if session.Active() {
			c.notifier.Error("Busy", fmt.Sprintf("Cannot record while %s", session.Mode))
			return fmt.Errorf("%w: mode is %s", domain.ErrAlreadyActive, session.Mode)
		}

		audioPath := c.recorder.NewAudioPath()
		handle, err := c.sup.Start(ctx, domain.ProcessRecorder, c.recorder.RecorderArgv(audioPath))
		if err != nil {
			c.notifier.Error("Recording failed to start", err.Error())
			return err
		}

		session = domain.Session{
			Mode:         domain.ModeRecording,
			PID:          handle.PID,
			PIDStartedAt: handle.StartedAt,
			AudioPath:    audioPath,
			Backend:      c.store.Backend(),
			CreatedAt:    time.Now().UTC(),
		}
		if err := c.store.Save(session); err != nil {
			_ = c.sup.Signal(handle, ports.SignalKill)
			return err
		}

		c.notifier.Cue(ports.CueStart)
		c.notifier.Info("Recording", "Press the stop combo to transcribe")
		return nil
	})
}

// StopRecording stops the recorder, transcribes the capture and pastes
// the text. Whatever happens downstream, the session ends Idle; the
// system is never left stuck in Transcribing because a collaborator
// failed.
func (c *Controller) StopRecording(ctx context.Context) error {
	return c.store.WithLock(ctx, func() error {
		session := c.loadReconciled()
		if session.Mode != domain.ModeRecording {
			return fmt.Errorf("%w: mode is %s", domain.ErrNotRecording, displayMode(session.Mode))
		}

		handle := ports.ProcessHandle{PID: session.PID, StartedAt: session.PIDStartedAt}
		if err := c.sup.Signal(handle, ports.SignalStop); err != nil {
			// Recorder already gone means the target state is reached.
			if !errors.Is(err, domain.ErrNotRunning) {
				return err
			}
			logger.Debug("recorder already exited", "pid", session.PID)
		}

		waitCtx, cancel := context.WithTimeout(ctx, c.cfg.StopWait)
		defer cancel()
		if err := c.sup.WaitForExit(waitCtx, handle); err != nil {
			logger.Warn("recorder did not exit in time", "pid", session.PID, "error", err)
			_ = c.sup.Signal(handle, ports.SignalKill)
		}
		c.notifier.Cue(ports.CueStop)

		session.Mode = domain.ModeTranscribing
		session.PID = 0
		session.PIDStartedAt = 0
		if err := c.store.Save(session); err != nil {
			logger.Warn("cannot persist transcribing state", "error", err)
		}

		text, err := c.transcriber.Transcribe(ctx, session.AudioPath)
		if errors.Is(err, transcribe.ErrEmptyAudio) {
			text, err = "", nil
		}

		c.finishCycle(session.AudioPath)

		if err != nil {
			c.notifier.Error("Transcription failed", err.Error())
			return fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
		}
		if text == "" {
			c.notifier.Info("Nothing transcribed", "The capture was empty")
			return nil
		}

		if err := c.paster.Paste(ctx, text); err != nil {
			c.notifier.Error("Paste failed", err.Error())
			if errors.Is(err, domain.ErrNoFocusTarget) || errors.Is(err, domain.ErrPasteFailed) {
				return err
			}
			return fmt.Errorf("%w: %v", domain.ErrPasteFailed, err)
		}

		c.notifier.Cue(ports.CueReady)
		c.notifier.Info("Transcribed", preview(text))
		return nil
	})
}

// Status reports the current session without mutating anything.
func (c *Controller) Status() (domain.Session, error) {
	session, err := c.store.Load()
	if errors.Is(err, statestore.ErrNotFound) {
		return domain.Session{Mode: domain.ModeIdle, Backend: c.store.Backend()}, nil
	}
	if err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// Clean force-terminates any owned process and wipes the session,
// returning the system to implicit Idle. Used by explicit cleanup.
func (c *Controller) Clean(ctx context.Context) error {
	return c.store.WithLock(ctx, func() error {
		session, err := c.store.Load()
		if err == nil && session.HasProcess() {
			handle := ports.ProcessHandle{PID: session.PID, StartedAt: session.PIDStartedAt}
			if killErr := c.sup.Signal(handle, ports.SignalKill); killErr != nil && !errors.Is(killErr, domain.ErrNotRunning) {
				logger.Warn("cleanup kill failed", "pid", session.PID, "error", killErr)
			}
		}
		if session.AudioPath != "" {
			_ = os.Remove(session.AudioPath)
		}
		return c.store.Clear()
	})
}

// loadReconciled loads the session and repairs anything a crashed or
// finished prior invocation left behind. Corrupt records and stale
// sessions whose process is gone are reaped to implicit Idle; a player
// that reached the end of the text on its own also resolves to Idle.
func (c *Controller) loadReconciled() domain.Session {
	session, err := c.store.Load()
	if err != nil {
		if !errors.Is(err, statestore.ErrNotFound) {
			logger.Warn("reaping unreadable session", "error", err)
			_ = c.store.Clear()
		}
		return domain.Session{Mode: domain.ModeIdle}
	}

	alive := session.HasProcess() && c.sup.IsAlive(ports.ProcessHandle{PID: session.PID, StartedAt: session.PIDStartedAt})

	if session.Speaking() && !alive {
		logger.Debug("playback finished, clearing session")
		_ = c.store.Clear()
		return domain.Session{Mode: domain.ModeIdle}
	}

	if session.Active() && !alive && time.Since(session.CreatedAt) > c.cfg.StaleAfter {
		logger.Warn("reaping stale session", "mode", string(session.Mode), "age", time.Since(session.CreatedAt).String())
		if session.AudioPath != "" {
			_ = os.Remove(session.AudioPath)
		}
		_ = c.store.Clear()
		return domain.Session{Mode: domain.ModeIdle}
	}

	return session
}

// finishCycle clears the session and removes the capture file.
func (c *Controller) finishCycle(audioPath string) {
	if err := c.store.Clear(); err != nil {
		logger.Warn("cannot clear session", "error", err)
	}
	if audioPath != "" {
		_ = os.Remove(audioPath)
	}
}

func displayMode(mode domain.Mode) domain.Mode {
	if mode == "" {
		return domain.ModeIdle
	}
	return mode
}

// preview returns the first 50 runes of s for notification bodies.
func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= 50 {
		return s
	}
	return string(runes[:50]) + "…"
}
