// Package config resolves runtime configuration from an optional yaml
// file under the user config directory, with environment overrides and
// defaults matching the stock desktop setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores runtime configuration for all components.
type Config struct {
	State      StateConfig
	Audio      AudioConfig
	Transcribe TranscribeConfig
	TTS        TTSConfig
	Hotkeys    HotkeyConfig

	// CredentialDir holds per-key credential files for the secrets
	// fallback chain.
	CredentialDir string
}

type StateConfig struct {
	Dir        string
	StaleAfter time.Duration
	StopWait   time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	Device          string
	SampleRate      int
	Channels        int
	OutputDir       string
}

type TranscribeConfig struct {
	BaseURL string
	Model   string
	KeyName string
	Timeout time.Duration
}

type TTSConfig struct {
	PiperCommand  string
	PiperModelEN  string
	PiperModelFR  string
	AplayCommand  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAIVoice   string
	OpenAIKeyName string
}

type HotkeyConfig struct {
	StartRecord   string
	StopRecord    string
	NextParagraph string
	PrevParagraph string
	PauseResume   string
	ToggleBackend string
	Debounce      time.Duration
}

// Load reads configuration from ~/.config/voxctl/config.yaml.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("cannot determine home directory: %w", err)
	}
	return LoadFrom(filepath.Join(home, ".config", "voxctl"))
}

// LoadFrom reads configuration from the given directory. A missing
// config file is fine; defaults and environment overrides still apply.
func LoadFrom(configDir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetDefault("state.dir", "")
	v.SetDefault("state.stale_after", "5m")
	v.SetDefault("state.stop_wait", "10s")

	v.SetDefault("audio.recorder_command", "arecord")
	v.SetDefault("audio.device", "")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.output_dir", "")

	v.SetDefault("transcribe.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("transcribe.model", "whisper-large-v3-turbo")
	v.SetDefault("transcribe.key_name", "GROQ_API_KEY")
	v.SetDefault("transcribe.timeout", "60s")

	v.SetDefault("tts.piper_command", "piper")
	v.SetDefault("tts.piper_model_en", "/tmp/piper-voices/en_medium.onnx")
	v.SetDefault("tts.piper_model_fr", "/tmp/piper-voices/fr_medium.onnx")
	v.SetDefault("tts.aplay_command", "aplay")
	v.SetDefault("tts.openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("tts.openai_model", "tts-1")
	v.SetDefault("tts.openai_voice", "shimmer")
	v.SetDefault("tts.openai_key_name", "OPENAI_API_KEY")

	v.SetDefault("hotkeys.start_record", "Mod4-F5")
	v.SetDefault("hotkeys.stop_record", "Mod4-F6")
	v.SetDefault("hotkeys.next_paragraph", "Mod4-F7")
	v.SetDefault("hotkeys.prev_paragraph", "Mod4-Shift-F7")
	v.SetDefault("hotkeys.pause_resume", "Mod4-F8")
	v.SetDefault("hotkeys.toggle_backend", "Mod4-F9")
	v.SetDefault("hotkeys.debounce", "300ms")

	v.SetDefault("credential_dir", filepath.Join(configDir, "credentials"))

	v.SetEnvPrefix("VOXCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config error: %w", err)
		}
	}

	cfg := Config{
		State: StateConfig{
			Dir:        v.GetString("state.dir"),
			StaleAfter: v.GetDuration("state.stale_after"),
			StopWait:   v.GetDuration("state.stop_wait"),
		},
		Audio: AudioConfig{
			RecorderCommand: v.GetString("audio.recorder_command"),
			Device:          v.GetString("audio.device"),
			SampleRate:      v.GetInt("audio.sample_rate"),
			Channels:        v.GetInt("audio.channels"),
			OutputDir:       v.GetString("audio.output_dir"),
		},
		Transcribe: TranscribeConfig{
			BaseURL: v.GetString("transcribe.base_url"),
			Model:   v.GetString("transcribe.model"),
			KeyName: v.GetString("transcribe.key_name"),
			Timeout: v.GetDuration("transcribe.timeout"),
		},
		TTS: TTSConfig{
			PiperCommand:  v.GetString("tts.piper_command"),
			PiperModelEN:  v.GetString("tts.piper_model_en"),
			PiperModelFR:  v.GetString("tts.piper_model_fr"),
			AplayCommand:  v.GetString("tts.aplay_command"),
			OpenAIBaseURL: v.GetString("tts.openai_base_url"),
			OpenAIModel:   v.GetString("tts.openai_model"),
			OpenAIVoice:   v.GetString("tts.openai_voice"),
			OpenAIKeyName: v.GetString("tts.openai_key_name"),
		},
		Hotkeys: HotkeyConfig{
			StartRecord:   v.GetString("hotkeys.start_record"),
			StopRecord:    v.GetString("hotkeys.stop_record"),
			NextParagraph: v.GetString("hotkeys.next_paragraph"),
			PrevParagraph: v.GetString("hotkeys.prev_paragraph"),
			PauseResume:   v.GetString("hotkeys.pause_resume"),
			ToggleBackend: v.GetString("hotkeys.toggle_backend"),
			Debounce:      v.GetDuration("hotkeys.debounce"),
		},
		CredentialDir: v.GetString("credential_dir"),
	}

	if cfg.State.StaleAfter <= 0 {
		cfg.State.StaleAfter = 5 * time.Minute
	}
	if cfg.State.StopWait <= 0 {
		cfg.State.StopWait = 10 * time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Transcribe.Timeout <= 0 {
		cfg.Transcribe.Timeout = 60 * time.Second
	}
	if cfg.Hotkeys.Debounce <= 0 {
		cfg.Hotkeys.Debounce = 300 * time.Millisecond
	}

	return cfg, nil
}
