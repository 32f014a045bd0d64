// Package capture builds the microphone recorder command. The recorder
// runs as a supervised external process writing a wav file and
// finalizes it when gracefully stopped.
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config controls how the recorder is invoked.
type Config struct {
	Command    string // recorder binary, default arecord
	Device     string // ALSA device, empty for default
	SampleRate int
	Channels   int
	OutputDir  string // directory for capture files, default os.TempDir
}

// Recorder implements ports.RecorderCommand.
type Recorder struct {
	cfg Config
}

func NewRecorder(cfg Config) *Recorder {
	if cfg.Command == "" {
		cfg.Command = "arecord"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.TempDir()
	}
	return &Recorder{cfg: cfg}
}

// NewAudioPath returns a fresh capture target. Every recording gets its
// own file; no two sessions ever share an audioPath.
func (r *Recorder) NewAudioPath() string {
	name := fmt.Sprintf("voxctl-%d-%s.wav", time.Now().UnixNano(), uuid.NewString()[:8])
	return filepath.Join(r.cfg.OutputDir, name)
}

// RecorderArgv builds the capture command for the given target file.
// SIGINT makes arecord flush and close the wav header cleanly.
func (r *Recorder) RecorderArgv(audioPath string) []string {
	argv := []string{
		r.cfg.Command,
		"-f", "S16_LE",
		"-r", strconv.Itoa(r.cfg.SampleRate),
		"-c", strconv.Itoa(r.cfg.Channels),
		"-t", "wav",
		"-q",
	}
	if r.cfg.Device != "" {
		argv = append(argv, "-D", r.cfg.Device)
	}
	return append(argv, audioPath)
}
