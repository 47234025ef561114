package stt

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for the OpenAI STT backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "whisper-1"
}

// OpenAI transcribes audio using OpenAI's Whisper API (or a compatible endpoint).
type OpenAI struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAI creates an OpenAI provider with sensible defaults applied.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: 300 * time.Second}

	return &OpenAI{
		name:   "openai-whisper",
		model:  cfg.Model,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (o *OpenAI) Name() string { return o.name }

// Transcribe uploads the file at req.FilePath and returns the decoded text.
func (o *OpenAI) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if req.FilePath == "" {
		return nil, fmt.Errorf("%s: file path required", o.name)
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: req.FilePath,
		Language: req.Language,
		Prompt:   req.Prompt,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%s transcription: %w", o.name, err)
	}

	return &Result{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}
