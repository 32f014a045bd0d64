// Package transcribe uploads finished capture files to an
// OpenAI-compatible transcription endpoint and returns the recognized
// text.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voxctl/internal/logger"
	"voxctl/internal/ports"
)

// Failure classes. The controller maps all of them onto
// domain.ErrTranscriptionFailed; they stay distinct here so logs and
// notifications can say what actually went wrong.
var (
	ErrAuth       = errors.New("transcription auth rejected")
	ErrNetwork    = errors.New("transcription request failed")
	ErrEmptyAudio = errors.New("capture file is empty")
)

// Config controls the transcription provider.
type Config struct {
	BaseURL   string
	Model     string
	KeyName   string // secret name resolved at call time
	Timeout   time.Duration
	MinBytes  int64 // captures smaller than this are rejected as empty
	UserAgent string
}

// Provider implements ports.Transcriber against the Groq API.
type Provider struct {
	cfg     Config
	secrets ports.SecretSource
	client  *http.Client
}

func NewProvider(cfg Config, secrets ports.SecretSource) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-large-v3-turbo"
	}
	if cfg.KeyName == "" {
		cfg.KeyName = "GROQ_API_KEY"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MinBytes <= 0 {
		// A wav header alone is 44 bytes; anything that small carries
		// no audio worth uploading.
		cfg.MinBytes = 128
	}
	return &Provider{
		cfg:     cfg,
		secrets: secrets,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Transcribe uploads audioPath and returns the trimmed transcript.
// Empty text with nil error means the provider heard nothing.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (string, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmptyAudio, err)
	}
	if info.Size() < p.cfg.MinBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrEmptyAudio, info.Size())
	}

	apiKey, err := p.secrets.Lookup(ctx, p.cfg.KeyName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}

	body, contentType, err := buildUpload(audioPath, p.cfg.Model)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/audio/transcriptions", body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", contentType)
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		logger.Debug("transcription rejected", "status", resp.StatusCode, "body", logger.Redact(string(payload)))
		return "", fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", fmt.Errorf("%w: bad response: %v", ErrNetwork, err)
	}
	return strings.TrimSpace(result.Text), nil
}

func buildUpload(audioPath, model string) (*bytes.Buffer, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrEmptyAudio, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	_ = w.WriteField("model", model)
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return &buf, w.FormDataContentType(), nil
}
