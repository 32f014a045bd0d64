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
	"voxctl/internal/tts"
)

// restartWait bounds how long a player restart waits for the old
// process to die before spawning the replacement.
const restartWait = 3 * time.Second

// Speak persists text and starts playback from the first paragraph.
// Dictation and playback are mutually exclusive; a busy session
// rejects, never queues.
func (c *Controller) Speak(ctx context.Context, text string) error {
	return c.store.WithLock(ctx, func() error {
		session := c.loadReconciled()
		if session.Active() {
			c.notifier.Error("Busy", fmt.Sprintf("Cannot speak while %s", session.Mode))
			return fmt.Errorf("%w: mode is %s", domain.ErrAlreadyActive, session.Mode)
		}

		if len(tts.SplitParagraphs(text)) == 0 {
			c.notifier.Info("Nothing to speak", "The text was empty")
			return nil
		}

		textPath, err := c.store.WriteText(text)
		if err != nil {
			return err
		}

		backend := c.store.Backend()
		handle, err := c.sup.Start(ctx, domain.ProcessPlayer, c.player.PlayerArgv(textPath, 0, backend))
		if err != nil {
			c.notifier.Error("Playback failed to start", err.Error())
			return err
		}

		session = domain.Session{
			Mode:            domain.ModeSpeaking,
			PID:             handle.PID,
			PIDStartedAt:    handle.StartedAt,
			TextPath:        textPath,
			Backend:         backend,
			ParagraphCursor: 0,
			CreatedAt:       time.Now().UTC(),
		}
		if err := c.store.Save(session); err != nil {
			_ = c.sup.Signal(handle, ports.SignalKill)
			return err
		}

		c.notifier.Info("Speaking", fmt.Sprintf("Backend: %s", backend))
		return nil
	})
}

// MoveParagraph shifts the paragraph cursor by delta and restarts the
// player there. The mode is unchanged: a paused session stays paused at
// the new position.
func (c *Controller) MoveParagraph(ctx context.Context, delta int) error {
	return c.store.WithLock(ctx, func() error {
		session := c.loadReconciled()
		if !session.Speaking() {
			return fmt.Errorf("%w: mode is %s", domain.ErrNotSpeaking, displayMode(session.Mode))
		}

		cursor := tts.ClampCursor(session.ParagraphCursor+delta, c.paragraphCount(session))
		return c.restartPlayer(ctx, session, cursor, session.Backend)
	})
}

// PauseResume toggles between Speaking and Paused by stopping and
// continuing the player's process group.
func (c *Controller) PauseResume(ctx context.Context) error {
	return c.store.WithLock(ctx, func() error {
		session := c.loadReconciled()
		if !session.Speaking() {
			return fmt.Errorf("%w: mode is %s", domain.ErrNotSpeaking, displayMode(session.Mode))
		}

		handle := ports.ProcessHandle{PID: session.PID, StartedAt: session.PIDStartedAt}
		sig, next := ports.SignalPause, domain.ModePaused
		if session.Mode == domain.ModePaused {
			sig, next = ports.SignalResume, domain.ModeSpeaking
		}

		if err := c.sup.Signal(handle, sig); err != nil {
			if errors.Is(err, domain.ErrNotRunning) {
				// Player finished between load and signal.
				c.finishCycle("")
				c.notifier.Info("Playback finished", "")
				return nil
			}
			return err
		}

		session.Mode = next
		if err := c.store.Save(session); err != nil {
			return err
		}
		c.notifier.Info(pauseSummary(next), "")
		return nil
	})
}

// ToggleBackend flips the persisted TTS backend. An active playback is
// restarted under the new backend at the same paragraph cursor, so no
// unread text is lost.
func (c *Controller) ToggleBackend(ctx context.Context) error {
	return c.store.WithLock(ctx, func() error {
		backend := c.store.Backend().Toggle()
		if err := c.store.SetBackend(backend); err != nil {
			return err
		}

		session := c.loadReconciled()
		if session.Speaking() {
			if err := c.restartPlayer(ctx, session, session.ParagraphCursor, backend); err != nil {
				return err
			}
		}

		c.notifier.Info("TTS backend", string(backend))
		return nil
	})
}

// restartPlayer kills the current player and spawns a fresh one at
// cursor under backend, preserving the session's mode. Call with the
// store lock held.
func (c *Controller) restartPlayer(ctx context.Context, session domain.Session, cursor int, backend domain.Backend) error {
	old := ports.ProcessHandle{PID: session.PID, StartedAt: session.PIDStartedAt}
	if err := c.sup.Signal(old, ports.SignalKill); err != nil && !errors.Is(err, domain.ErrNotRunning) {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, restartWait)
	defer cancel()
	if err := c.sup.WaitForExit(waitCtx, old); err != nil {
		logger.Warn("old player did not exit in time", "pid", old.PID, "error", err)
	}

	handle, err := c.sup.Start(ctx, domain.ProcessPlayer, c.player.PlayerArgv(session.TextPath, cursor, backend))
	if err != nil {
		// Nothing is playing anymore; do not leave a record claiming
		// otherwise.
		c.finishCycle("")
		c.notifier.Error("Playback failed to restart", err.Error())
		return err
	}

	if session.Mode == domain.ModePaused {
		if err := c.sup.Signal(handle, ports.SignalPause); err != nil && !errors.Is(err, domain.ErrNotRunning) {
			logger.Warn("cannot re-pause restarted player", "pid", handle.PID, "error", err)
		}
	}

	session.PID = handle.PID
	session.PIDStartedAt = handle.StartedAt
	session.ParagraphCursor = cursor
	session.Backend = backend
	if err := c.store.Save(session); err != nil {
		_ = c.sup.Signal(handle, ports.SignalKill)
		return err
	}
	return nil
}

// paragraphCount reads the persisted text to bound cursor movement.
func (c *Controller) paragraphCount(session domain.Session) int {
	raw, err := os.ReadFile(session.TextPath)
	if err != nil {
		logger.Warn("cannot read speech text", "path", session.TextPath, "error", err)
		return session.ParagraphCursor + 2
	}
	return len(tts.SplitParagraphs(string(raw)))
}

func pauseSummary(mode domain.Mode) string {
	if mode == domain.ModePaused {
		return "Paused"
	}
	return "Resumed"
}
