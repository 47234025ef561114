package stt

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/castiq-transcriber/internal/config"
)

// Request holds the parameters for a single transcription.
type Request struct {
	FilePath string `json:"file_path"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// Result holds the transcription output.
type Result struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// New builds the backend selected by cfg.Backend. It is called once at startup
// and the returned provider is shared by every request.
func New(cfg config.STTConfig) (Provider, error) {
	switch cfg.Backend {
	case "openai":
		return NewOpenAI(OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}), nil
	case "local", "":
		return NewLocal(LocalConfig{
			BaseURL: cfg.LocalBaseURL,
			Model:   cfg.LocalModel,
		}), nil
	default:
		return nil, fmt.Errorf("stt: unknown backend %q (supported: local, openai)", cfg.Backend)
	}
}
