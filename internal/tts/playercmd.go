package tts

import (
	"os"
	"strconv"

	"voxctl/internal/domain"
)

// PlayerLauncher implements ports.PlayerCommand by re-invoking this
// binary's hidden play subcommand. Running playback as a separate
// process is what lets independent invocations pause, resume and
// restart it by pid.
type PlayerLauncher struct {
	exe string
}

func NewPlayerLauncher() *PlayerLauncher {
	exe, err := os.Executable()
	if err != nil {
		exe = "voxctl"
	}
	return &PlayerLauncher{exe: exe}
}

func (l *PlayerLauncher) PlayerArgv(textPath string, cursor int, backend domain.Backend) []string {
	return []string{
		l.exe, "play",
		"--text", textPath,
		"--start", strconv.Itoa(cursor),
		"--backend", string(backend),
	}
}
