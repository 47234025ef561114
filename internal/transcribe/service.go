// Package transcribe turns one uploaded audio file into text: it spools the
// upload, optionally normalizes it, asks the preloaded model for a transcript,
// and removes every file it created before returning.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/castiq-transcriber/internal/cache"
	"github.com/nikhilbhutani/castiq-transcriber/internal/storage"
	"github.com/nikhilbhutani/castiq-transcriber/internal/stt"
)

// ErrUpload marks failures to accept the upload itself, as opposed to
// failures of the transcription.
var ErrUpload = errors.New("upload rejected")

type Normalizer interface {
	Normalize(ctx context.Context, src, dst string) error
}

type Cache interface {
	Get(ctx context.Context, digest string) (*stt.Result, error)
	Set(ctx context.Context, digest string, res *stt.Result) error
}

type Options struct {
	Language string
	Prompt   string
}

type Service struct {
	provider   stt.Provider
	spool      *storage.Spool
	normalizer Normalizer
	cache      Cache
	opts       Options
}

// NewService wires the pieces; normalizer and c may be nil.
func NewService(provider stt.Provider, spool *storage.Spool, normalizer Normalizer, c Cache, opts Options) *Service {
	return &Service{
		provider:   provider,
		spool:      spool,
		normalizer: normalizer,
		cache:      c,
		opts:       opts,
	}
}

// Transcribe reads the audio from r and returns its transcript. The spooled
// file, and the normalized copy if any, are gone when it returns.
func (s *Service) Transcribe(ctx context.Context, r io.Reader, filename string) (*stt.Result, error) {
	start := time.Now()

	f, err := s.spool.Save(ctx, r, filename)
	if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrRead) {
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	if err != nil {
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	defer s.remove(f.Path)

	if s.cache != nil {
		if res, err := s.cache.Get(ctx, f.Digest); err == nil {
			slog.Info("transcript cache hit", "digest", f.Digest)
			return res, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("transcript cache read failed", "error", err)
		}
	}

	path := f.Path
	if s.normalizer != nil {
		path = strings.TrimSuffix(f.Path, ".wav") + ".16k.wav"
		defer s.remove(path)
		if err := s.normalizer.Normalize(ctx, f.Path, path); err != nil {
			return nil, fmt.Errorf("normalize audio: %w", err)
		}
	}

	res, err := s.provider.Transcribe(ctx, stt.Request{
		FilePath: path,
		Language: s.opts.Language,
		Prompt:   s.opts.Prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe with %s: %w", s.provider.Name(), err)
	}
	res.Text = strings.TrimSpace(res.Text)

	slog.Info("transcription successful",
		"provider", s.provider.Name(),
		"bytes", f.Size,
		"audio_seconds", res.Duration,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if s.cache != nil {
		if err := s.cache.Set(ctx, f.Digest, res); err != nil {
			slog.Warn("transcript cache write failed", "error", err)
		}
	}

	return res, nil
}

func (s *Service) remove(path string) {
	if err := s.spool.Remove(path); err != nil {
		slog.Error("failed to remove spooled audio", "path", path, "error", err)
	}
}
