package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"voxctl/internal/domain"
	"voxctl/internal/logger"
	"voxctl/internal/ports"
)

// EngineConfig holds both backends' settings; which one speaks is
// decided per run.
type EngineConfig struct {
	PiperCommand string
	PiperModelEN string
	PiperModelFR string

	AplayCommand string

	OpenAIBaseURL string
	OpenAIModel   string
	OpenAIVoice   string
	OpenAIKeyName string
	OpenAITimeout time.Duration
}

// Engine is the in-player speech loop: it reads the persisted text and
// speaks paragraphs from the start cursor through the end.
type Engine struct {
	cfg     EngineConfig
	secrets ports.SecretSource
	client  *http.Client
}

func NewEngine(cfg EngineConfig, secrets ports.SecretSource) *Engine {
	if cfg.PiperCommand == "" {
		cfg.PiperCommand = "piper"
	}
	if cfg.AplayCommand == "" {
		cfg.AplayCommand = "aplay"
	}
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "tts-1"
	}
	if cfg.OpenAIVoice == "" {
		cfg.OpenAIVoice = "shimmer"
	}
	if cfg.OpenAIKeyName == "" {
		cfg.OpenAIKeyName = "OPENAI_API_KEY"
	}
	if cfg.OpenAITimeout <= 0 {
		cfg.OpenAITimeout = 120 * time.Second
	}
	return &Engine{
		cfg:     cfg,
		secrets: secrets,
		client:  &http.Client{Timeout: cfg.OpenAITimeout},
	}
}

// Run speaks the text at textPath from paragraph start onward under the
// given backend, stopping early when ctx is canceled.
func (e *Engine) Run(ctx context.Context, textPath string, start int, backend domain.Backend) error {
	raw, err := os.ReadFile(textPath)
	if err != nil {
		return fmt.Errorf("failed to read speech text: %w", err)
	}

	paragraphs := SplitParagraphs(string(raw))
	if len(paragraphs) == 0 {
		return nil
	}
	start = ClampCursor(start, len(paragraphs))

	for i := start; i < len(paragraphs); i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Debug("speaking paragraph", "index", i, "backend", string(backend))
		if backend == domain.BackendRemote {
			err = e.speakRemote(ctx, paragraphs[i])
		} else {
			err = e.speakLocal(ctx, paragraphs[i])
		}
		if err != nil {
			return fmt.Errorf("paragraph %d: %w", i, err)
		}
	}
	return nil
}

// speakLocal pipes the paragraph through piper into aplay, choosing the
// voice model by detected language.
func (e *Engine) speakLocal(ctx context.Context, paragraph string) error {
	model := e.cfg.PiperModelEN
	if DetectLanguage(paragraph) == "fr" && e.cfg.PiperModelFR != "" {
		model = e.cfg.PiperModelFR
	}
	if model == "" {
		return fmt.Errorf("no piper voice model configured")
	}

	piper := exec.CommandContext(ctx, e.cfg.PiperCommand, "--model", model, "--output-raw")
	piper.Stdin = strings.NewReader(paragraph)

	aplay := exec.CommandContext(ctx, e.cfg.AplayCommand, "-q", "-r", "22050", "-f", "S16_LE", "-c", "1")
	pipe, err := piper.StdoutPipe()
	if err != nil {
		return fmt.Errorf("piper pipe: %w", err)
	}
	aplay.Stdin = pipe

	if err := aplay.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.cfg.AplayCommand, err)
	}
	if err := piper.Run(); err != nil {
		_ = aplay.Process.Kill()
		_ = aplay.Wait()
		return fmt.Errorf("%s: %w", e.cfg.PiperCommand, err)
	}
	if err := aplay.Wait(); err != nil {
		return fmt.Errorf("%s: %w", e.cfg.AplayCommand, err)
	}
	return nil
}

// speakRemote streams OpenAI speech synthesis straight into aplay.
func (e *Engine) speakRemote(ctx context.Context, paragraph string) error {
	apiKey, err := e.secrets.Lookup(ctx, e.cfg.OpenAIKeyName)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"model":           e.cfg.OpenAIModel,
		"voice":           e.cfg.OpenAIVoice,
		"input":           paragraph,
		"response_format": "wav",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(e.cfg.OpenAIBaseURL, "/")+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("speech request: status %d: %s", resp.StatusCode, logger.Redact(string(body)))
	}

	aplay := exec.CommandContext(ctx, e.cfg.AplayCommand, "-q")
	stdin, err := aplay.StdinPipe()
	if err != nil {
		return fmt.Errorf("aplay pipe: %w", err)
	}
	if err := aplay.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.cfg.AplayCommand, err)
	}

	_, copyErr := io.Copy(stdin, resp.Body)
	_ = stdin.Close()
	waitErr := aplay.Wait()
	if copyErr != nil {
		return fmt.Errorf("stream audio: %w", copyErr)
	}
	return waitErr
}
