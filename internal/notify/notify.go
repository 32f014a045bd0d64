// Package notify surfaces outcomes as desktop notifications, the only
// user-visible side channel besides exit codes.
package notify

import (
	"github.com/gen2brain/beeep"

	"voxctl/internal/logger"
	"voxctl/internal/ports"
)

const appName = "voxctl"

// Desktop sends notifications through the freedesktop notification
// service and audible cues through a Beeper. Delivery is best-effort; a
// missing notification daemon only downgrades to a log line.
type Desktop struct {
	beeper *Beeper
}

func NewDesktop() *Desktop {
	return &Desktop{beeper: NewBeeper()}
}

func (d *Desktop) Info(summary, body string) {
	if err := beeep.Notify(appName+": "+summary, body, ""); err != nil {
		logger.Debug("notification failed", "summary", summary, "error", err)
	}
}

func (d *Desktop) Error(summary, body string) {
	if err := beeep.Alert(appName+": "+summary, body, ""); err != nil {
		logger.Warn("error notification failed", "summary", summary, "error", err)
	}
}

func (d *Desktop) Cue(cue ports.Cue) {
	d.beeper.Play(cue)
}
