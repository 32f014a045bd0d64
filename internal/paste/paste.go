// Package paste delivers transcribed text into the focused window:
// clipboard write first, then a paste keystroke. Terminal emulators get
// ctrl+shift+v, everything else gets ctrl+v.
package paste

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"voxctl/internal/domain"
	"voxctl/internal/logger"
)

// terminalClasses are WM_CLASS fragments identifying terminal emulators.
var terminalClasses = []string{
	"gnome-terminal", "xterm", "urxvt", "alacritty", "kitty", "konsole",
	"xfce4-terminal", "terminator", "tilix", "st", "sakura", "guake",
	"terminology", "wezterm", "foot",
}

// Automation implements ports.Paster on top of the clipboard and
// xdotool keystroke synthesis.
type Automation struct {
	// XdotoolCommand and XpropCommand are overridable for tests.
	XdotoolCommand string
	XpropCommand   string

	// KeystrokeDelay gives the window manager a beat between the
	// clipboard write and the synthetic keypress.
	KeystrokeDelay time.Duration

	setClipboard func(text string) error
	runCommand   func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewAutomation() *Automation {
	return &Automation{
		XdotoolCommand: "xdotool",
		XpropCommand:   "xprop",
		KeystrokeDelay: 50 * time.Millisecond,
		setClipboard:   clipboard.WriteAll,
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Paste writes text to the clipboard and synthesizes the paste
// keystroke into the focused window.
func (a *Automation) Paste(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	if err := a.setClipboard(text); err != nil {
		return fmt.Errorf("%w: clipboard write: %v", domain.ErrPasteFailed, err)
	}

	window, err := a.activeWindow(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNoFocusTarget, err)
	}

	combo := "ctrl+v"
	if a.isTerminal(ctx, window) {
		combo = "ctrl+shift+v"
	}

	if a.KeystrokeDelay > 0 {
		time.Sleep(a.KeystrokeDelay)
	}
	if _, err := a.runCommand(ctx, a.XdotoolCommand, "key", "--clearmodifiers", combo); err != nil {
		return fmt.Errorf("%w: keystroke: %v", domain.ErrPasteFailed, err)
	}
	return nil
}

func (a *Automation) activeWindow(ctx context.Context) (string, error) {
	out, err := a.runCommand(ctx, a.XdotoolCommand, "getactivewindow")
	if err != nil {
		return "", fmt.Errorf("no active window: %v", err)
	}
	window := strings.TrimSpace(string(out))
	if window == "" {
		return "", fmt.Errorf("no active window")
	}
	return window, nil
}

func (a *Automation) isTerminal(ctx context.Context, window string) bool {
	out, err := a.runCommand(ctx, a.XpropCommand, "-id", window, "WM_CLASS")
	if err != nil {
		logger.Debug("WM_CLASS lookup failed", "window", window, "error", err)
		return false
	}
	class := strings.ToLower(string(out))
	for _, terminal := range terminalClasses {
		if strings.Contains(class, terminal) {
			return true
		}
	}
	return false
}
