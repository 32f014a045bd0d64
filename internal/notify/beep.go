package notify

import (
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voxctl/internal/logger"
	"voxctl/internal/ports"
)

const (
	beepSampleRate = 16000
	beepVolume     = 0.15
)

// cueTones are the sine tones per cue: a high blip when recording
// starts, a low one when it stops, a mid tone once the text landed.
var cueTones = map[ports.Cue]struct {
	freq     float64
	duration time.Duration
}{
	ports.CueStart: {880, 100 * time.Millisecond},
	ports.CueStop:  {440, 100 * time.Millisecond},
	ports.CueReady: {660, 150 * time.Millisecond},
}

// Beeper plays short generated tones through aplay. Tone files are
// rendered once into the temp dir and reused; playback runs detached so
// a cue never delays the transition it decorates.
type Beeper struct {
	AplayCommand string

	dir string
	run func(argv ...string)

	mu    sync.Mutex
	paths map[ports.Cue]string
}

func NewBeeper() *Beeper {
	return &Beeper{
		AplayCommand: "aplay",
		dir:          os.TempDir(),
		run:          runQuiet,
		paths:        make(map[ports.Cue]string),
	}
}

// Play sounds the cue. Best-effort: a failed render or a missing aplay
// only downgrades to a log line.
func (b *Beeper) Play(cue ports.Cue) {
	tone, ok := cueTones[cue]
	if !ok {
		return
	}
	path, err := b.tonePath(cue, tone.freq, tone.duration)
	if err != nil {
		logger.Debug("cannot render cue", "cue", string(cue), "error", err)
		return
	}
	go b.run(b.AplayCommand, "-q", path)
}

func (b *Beeper) tonePath(cue ports.Cue, freq float64, duration time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if path, ok := b.paths[cue]; ok {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	path := filepath.Join(b.dir, "voxctl-cue-"+string(cue)+".wav")
	if err := writeTone(path, freq, duration); err != nil {
		return "", err
	}
	b.paths[cue] = path
	return path, nil
}

// writeTone renders a mono 16-bit sine wav.
func writeTone(path string, freq float64, duration time.Duration) error {
	n := int(beepSampleRate * duration.Seconds())
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: beepSampleRate},
		Data:           make([]int, n),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = int(math.Sin(2*math.Pi*freq*float64(i)/beepSampleRate) * 32767 * beepVolume)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, beepSampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func runQuiet(argv ...string) {
	_ = exec.Command(argv[0], argv[1:]...).Run()
}
