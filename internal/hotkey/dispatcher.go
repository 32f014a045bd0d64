// Package hotkey is the long-lived event side: it grabs the configured
// X11 combos and turns each physical press into exactly one controller
// action. Everything else in the system is short-lived.
package hotkey

import (
	"context"
	"time"

	"voxctl/internal/domain"
	"voxctl/internal/logger"
)

// ActionHandler applies a requested transition. Satisfied by the
// controller.
type ActionHandler interface {
	Apply(ctx context.Context, action domain.Action) error
}

// Dispatcher consumes key events and invokes the handler synchronously.
// Actions are handled one at a time; an event arriving during a slow
// transition (transcription) is not dropped, it waits and is then
// evaluated against the reconciled state at its own dispatch time.
type Dispatcher struct {
	handler  ActionHandler
	debounce time.Duration

	now  func() time.Time
	last map[domain.Action]time.Time
}

func NewDispatcher(handler ActionHandler, debounce time.Duration) *Dispatcher {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &Dispatcher{
		handler:  handler,
		debounce: debounce,
		now:      time.Now,
		last:     make(map[domain.Action]time.Time),
	}
}

// Run processes events until ctx is done or the channel closes.
func (d *Dispatcher) Run(ctx context.Context, events <-chan domain.Action) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case action, ok := <-events:
			if !ok {
				return nil
			}
			d.handle(ctx, action)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, action domain.Action) {
	if d.suppressed(action) {
		logger.Debug("debounced repeat", "action", string(action))
		return
	}

	if err := d.handler.Apply(ctx, action); err != nil {
		if domain.IsStateConflict(err) {
			logger.Info("action rejected", "action", string(action), "reason", err.Error())
			return
		}
		logger.Error("action failed", "action", string(action), "error", err)
	}
}

// suppressed reports whether the action fired within the debounce
// window, which is how a held key's auto-repeat is kept to one action
// per physical press.
func (d *Dispatcher) suppressed(action domain.Action) bool {
	now := d.now()
	if fired, ok := d.last[action]; ok && now.Sub(fired) < d.debounce {
		return true
	}
	d.last[action] = now
	return false
}
