// Package bootstrap assembles the runtime graph shared by every
// subcommand: configuration, state store, process supervision and the
// collaborator adapters behind the controller.
package bootstrap

import (
	"voxctl/internal/capture"
	"voxctl/internal/config"
	"voxctl/internal/controller"
	"voxctl/internal/notify"
	"voxctl/internal/paste"
	"voxctl/internal/secrets"
	"voxctl/internal/statestore"
	"voxctl/internal/supervisor"
	"voxctl/internal/transcribe"
	"voxctl/internal/tts"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *controller.Controller
	Store      *statestore.Store
	Secrets    *secrets.Resolver
	Config     config.Config
}

// Build wires all dependencies for the current runtime.
func Build() (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWith(cfg)
}

// BuildWith wires dependencies from an already-loaded configuration.
func BuildWith(cfg config.Config) (Services, error) {
	store, err := statestore.New(cfg.State.Dir)
	if err != nil {
		return Services{}, err
	}

	resolver := secrets.NewResolver(cfg.CredentialDir)

	ctl := controller.New(
		store,
		supervisor.New(store.Dir(), cfg.Transcribe.KeyName, cfg.TTS.OpenAIKeyName),
		transcribe.NewProvider(transcribe.Config{
			BaseURL: cfg.Transcribe.BaseURL,
			Model:   cfg.Transcribe.Model,
			KeyName: cfg.Transcribe.KeyName,
			Timeout: cfg.Transcribe.Timeout,
		}, resolver),
		paste.NewAutomation(),
		capture.NewRecorder(capture.Config{
			Command:    cfg.Audio.RecorderCommand,
			Device:     cfg.Audio.Device,
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
			OutputDir:  cfg.Audio.OutputDir,
		}),
		tts.NewPlayerLauncher(),
		notify.NewDesktop(),
		controller.Config{
			StaleAfter: cfg.State.StaleAfter,
			StopWait:   cfg.State.StopWait,
		},
	)

	return Services{
		Controller: ctl,
		Store:      store,
		Secrets:    resolver,
		Config:     cfg,
	}, nil
}

// Engine builds the speech loop used by the player subprocess. It
// shares the secrets chain with the rest of the graph but deliberately
// not the controller: the player never touches the session record.
func Engine(cfg config.Config) *tts.Engine {
	return tts.NewEngine(tts.EngineConfig{
		PiperCommand:  cfg.TTS.PiperCommand,
		PiperModelEN:  cfg.TTS.PiperModelEN,
		PiperModelFR:  cfg.TTS.PiperModelFR,
		AplayCommand:  cfg.TTS.AplayCommand,
		OpenAIBaseURL: cfg.TTS.OpenAIBaseURL,
		OpenAIModel:   cfg.TTS.OpenAIModel,
		OpenAIVoice:   cfg.TTS.OpenAIVoice,
		OpenAIKeyName: cfg.TTS.OpenAIKeyName,
	}, secrets.NewResolver(cfg.CredentialDir))
}
