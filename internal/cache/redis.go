package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/castiq-transcriber/internal/stt"
)

const keyPrefix = "transcript:"

// ErrMiss is returned by Get when no transcript is stored for the digest.
var ErrMiss = errors.New("cache miss")

// Transcripts stores transcription results keyed by the SHA-256 of the audio.
type Transcripts struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTranscripts(client *redis.Client, ttl time.Duration) *Transcripts {
	return &Transcripts{client: client, ttl: ttl}
}

func Key(digest string) string {
	return keyPrefix + digest
}

func (c *Transcripts) Get(ctx context.Context, digest string) (*stt.Result, error) {
	val, err := c.client.Get(ctx, Key(digest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", digest, err)
	}

	var res stt.Result
	if err := json.Unmarshal(val, &res); err != nil {
		return nil, fmt.Errorf("decode cached transcript: %w", err)
	}
	return &res, nil
}

func (c *Transcripts) Set(ctx context.Context, digest string, res *stt.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	return c.client.Set(ctx, Key(digest), data, c.ttl).Err()
}

func (c *Transcripts) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
