package hotkey

import (
	"context"
	"errors"
	"fmt"

	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil"
	"github.com/jezek/xgbutil/keybind"
	"github.com/jezek/xgbutil/xevent"

	"voxctl/internal/domain"
	"voxctl/internal/logger"
)

// ErrEventLoopClosed reports that the X event loop ended on its own,
// usually because the connection to the display was lost.
var ErrEventLoopClosed = errors.New("x11 event loop ended: connection to the display lost")

// Binding ties one key combo (xgbutil syntax, e.g. "Mod4-F5") to an
// action.
type Binding struct {
	Combo  string
	Action domain.Action
}

// repeatFilter discards X11 auto-repeat. While a key is held the server
// synthesizes KeyRelease+KeyPress pairs sharing one timestamp and
// keycode; a press matching the release seen just before it is a
// repeat, not a physical press. Only the single-threaded event loop
// touches it.
type repeatFilter struct {
	releaseKey  xproto.Keycode
	releaseTime xproto.Timestamp
}

func (f *repeatFilter) release(key xproto.Keycode, at xproto.Timestamp) {
	f.releaseKey = key
	f.releaseTime = at
}

// press reports whether the press is a genuine physical press.
func (f *repeatFilter) press(key xproto.Keycode, at xproto.Timestamp) bool {
	return key != f.releaseKey || at != f.releaseTime
}

// X11Source registers passive grabs for every binding on the root
// window and emits the matching action on each physical press.
type X11Source struct {
	xu       *xgbutil.XUtil
	bindings []Binding
	events   chan domain.Action
	repeats  repeatFilter
}

// NewX11Source connects to the X server and grabs all bindings. A
// combo that cannot be grabbed (usually because another client owns
// it) fails the whole listener rather than silently running with a
// partial keymap.
func NewX11Source(bindings []Binding) (*X11Source, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("cannot connect to X11: %w", err)
	}
	keybind.Initialize(xu)

	source := &X11Source{
		xu:       xu,
		bindings: bindings,
		events:   make(chan domain.Action, 16),
	}

	for _, binding := range bindings {
		action := binding.Action
		err := keybind.KeyPressFun(func(_ *xgbutil.XUtil, ev xevent.KeyPressEvent) {
			if !source.repeats.press(ev.Detail, ev.Time) {
				logger.Debug("discarded auto-repeat", "action", string(action))
				return
			}
			// Blocking send: events arriving while the dispatcher is
			// busy queue up instead of being dropped.
			source.events <- action
		}).Connect(xu, xu.RootWin(), binding.Combo, true)
		if err != nil {
			xu.Conn().Close()
			return nil, fmt.Errorf("cannot grab %q: %w", binding.Combo, err)
		}

		// The press grab routes the matching releases to us too; no
		// second grab here, just the handler feeding the repeat filter.
		err = keybind.KeyReleaseFun(func(_ *xgbutil.XUtil, ev xevent.KeyReleaseEvent) {
			source.repeats.release(ev.Detail, ev.Time)
		}).Connect(xu, xu.RootWin(), binding.Combo, false)
		if err != nil {
			xu.Conn().Close()
			return nil, fmt.Errorf("cannot watch releases for %q: %w", binding.Combo, err)
		}
		logger.Debug("grabbed combo", "combo", binding.Combo, "action", string(action))
	}

	return source, nil
}

// Events exposes the press stream.
func (s *X11Source) Events() <-chan domain.Action {
	return s.events
}

// Run pumps the X event loop until ctx is done. An event loop that
// ends while ctx is still live means the display connection dropped,
// which the caller must surface, not treat as a clean shutdown.
func (s *X11Source) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		xevent.Quit(s.xu)
	}()

	xevent.Main(s.xu)
	close(s.events)
	keybind.Detach(s.xu, s.xu.RootWin())
	s.xu.Conn().Close()
	return exitReason(ctx.Err())
}

// exitReason translates why the event loop ended into Run's result.
func exitReason(ctxErr error) error {
	if ctxErr != nil {
		return ctxErr
	}
	return ErrEventLoopClosed
}
