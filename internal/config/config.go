package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig `toml:"server"`
	Signal   SignalConfig `toml:"signal"`
	Redis    RedisConfig  `toml:"redis"`
	Cache    CacheConfig  `toml:"cache"`
	STT      STTConfig    `toml:"stt"`
	Upload   UploadConfig `toml:"upload"`
	Audio    AudioConfig  `toml:"audio"`
	HTTP     HTTPConfig   `toml:"http"`
	LogLevel string       `toml:"log_level"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type SignalConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type CacheConfig struct {
	Enabled bool     `toml:"enabled"`
	TTL     duration `toml:"ttl"`
}

type STTConfig struct {
	Backend       string `toml:"backend"` // "local" or "openai"
	OpenAIKey     string `toml:"openai_key"`
	OpenAIBaseURL string `toml:"openai_base_url"`
	OpenAIModel   string `toml:"openai_model"`
	LocalBaseURL  string `toml:"local_base_url"` // default: "http://localhost:8178/v1"
	LocalModel    string `toml:"local_model"`
	Language      string `toml:"language"`
	Prompt        string `toml:"prompt"`
}

type UploadConfig struct {
	Field    string `toml:"field"`
	MaxBytes int64  `toml:"max_bytes"`
	SpoolDir string `toml:"spool_dir"`
}

type AudioConfig struct {
	Normalize  bool `toml:"normalize"`
	SampleRate int  `toml:"sample_rate"`
}

type HTTPConfig struct {
	CORSOrigins    []string `toml:"cors_origins"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
}

// duration lets TOML files spell durations as "24h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 5001},
		Signal: SignalConfig{Host: "0.0.0.0", Port: 8080},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		Cache:  CacheConfig{TTL: duration{24 * time.Hour}},
		STT: STTConfig{
			Backend:      "local",
			LocalBaseURL: "http://localhost:8178/v1",
			LocalModel:   "base.en",
		},
		Upload: UploadConfig{
			Field:    "audio",
			MaxBytes: 32 << 20,
			SpoolDir: os.TempDir(),
		},
		Audio: AudioConfig{SampleRate: 16000},
		HTTP: HTTPConfig{
			CORSOrigins:    []string{"*"},
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, an optional TOML file named by
// TRANSCRIBER_CONFIG, a .env file in the working directory, and the process
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv("TRANSCRIBER_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	var err error
	if cfg.Server.Port, err = getEnvInt("SERVER_PORT", cfg.Server.Port); err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	if cfg.Signal.Port, err = getEnvInt("SIGNAL_PORT", cfg.Signal.Port); err != nil {
		return nil, fmt.Errorf("invalid SIGNAL_PORT: %w", err)
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.Upload.MaxBytes, err = getEnvInt64("UPLOAD_MAX_BYTES", cfg.Upload.MaxBytes); err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_BYTES: %w", err)
	}
	if cfg.Audio.SampleRate, err = getEnvInt("AUDIO_SAMPLE_RATE", cfg.Audio.SampleRate); err != nil {
		return nil, fmt.Errorf("invalid AUDIO_SAMPLE_RATE: %w", err)
	}
	if cfg.Audio.Normalize, err = getEnvBool("AUDIO_NORMALIZE", cfg.Audio.Normalize); err != nil {
		return nil, fmt.Errorf("invalid AUDIO_NORMALIZE: %w", err)
	}
	if cfg.Cache.Enabled, err = getEnvBool("CACHE_ENABLED", cfg.Cache.Enabled); err != nil {
		return nil, fmt.Errorf("invalid CACHE_ENABLED: %w", err)
	}
	if cfg.Cache.TTL.Duration, err = getEnvDuration("CACHE_TTL", cfg.Cache.TTL.Duration); err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	if cfg.HTTP.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", cfg.HTTP.RateLimitRPS); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	if cfg.HTTP.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", cfg.HTTP.RateLimitBurst); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Signal.Host = getEnv("SIGNAL_HOST", cfg.Signal.Host)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.STT.Backend = getEnv("STT_BACKEND", cfg.STT.Backend)
	cfg.STT.OpenAIKey = getEnv("OPENAI_API_KEY", cfg.STT.OpenAIKey)
	cfg.STT.OpenAIBaseURL = getEnv("STT_OPENAI_BASE_URL", cfg.STT.OpenAIBaseURL)
	cfg.STT.OpenAIModel = getEnv("STT_OPENAI_MODEL", cfg.STT.OpenAIModel)
	cfg.STT.LocalBaseURL = getEnv("STT_LOCAL_BASE_URL", cfg.STT.LocalBaseURL)
	cfg.STT.LocalModel = getEnv("STT_LOCAL_MODEL", cfg.STT.LocalModel)
	cfg.STT.Language = getEnv("STT_LANGUAGE", cfg.STT.Language)
	cfg.STT.Prompt = getEnv("STT_PROMPT", cfg.STT.Prompt)
	cfg.Upload.Field = getEnv("UPLOAD_FIELD", cfg.Upload.Field)
	cfg.Upload.SpoolDir = getEnv("SPOOL_DIR", cfg.Upload.SpoolDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) SignalAddr() string {
	return fmt.Sprintf("%s:%d", c.Signal.Host, c.Signal.Port)
}

// CacheTTL is the lifetime of a cached transcript.
func (c *Config) CacheTTL() time.Duration {
	return c.Cache.TTL.Duration
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) Validate() error {
	var problems []string
	switch c.STT.Backend {
	case "local":
	case "openai":
		if c.STT.OpenAIKey == "" && c.STT.OpenAIBaseURL == "" {
			problems = append(problems, "OPENAI_API_KEY is required when STT_BACKEND=openai")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STT_BACKEND %q", c.STT.Backend))
	}
	if c.Upload.Field == "" {
		problems = append(problems, "UPLOAD_FIELD must not be empty")
	}
	if c.Upload.MaxBytes <= 0 {
		problems = append(problems, "UPLOAD_MAX_BYTES must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
