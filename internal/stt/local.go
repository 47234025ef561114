package stt

// LocalConfig holds configuration for the local whisper.cpp STT backend.
type LocalConfig struct {
	BaseURL string // default: "http://localhost:8178/v1"
	Model   string // default: "base.en"
}

// Local wraps OpenAI pointing at a local whisper.cpp server.
// Start the server with:
//
//	./whisper-server -m models/ggml-base.en.bin --port 8178 \
//	    --inference-path /v1/audio/transcriptions --convert
type Local struct {
	*OpenAI
}

// NewLocal creates a Local provider backed by a whisper.cpp HTTP server.
func NewLocal(cfg LocalConfig) *Local {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8178/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "base.en"
	}
	o := NewOpenAI(OpenAIConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		// No API key needed for local server
	})
	o.name = "local-whisper"
	return &Local{OpenAI: o}
}
