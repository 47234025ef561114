package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestKey(t *testing.T) {
	if got := Key("abc123"); got != "transcript:abc123" {
		t.Errorf("Unexpected key %q", got)
	}
}

func TestGetUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewTranscripts(client, time.Minute)
	_, err := c.Get(context.Background(), "deadbeef")
	if err == nil {
		t.Fatal("Expected error from unreachable redis")
	}
	if errors.Is(err, ErrMiss) {
		t.Error("Connection failure must not look like a miss")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Error("Expected ping to fail")
	}
}
