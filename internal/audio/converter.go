package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Converter rewrites uploads into the format whisper models are trained on:
// mono 16-bit PCM WAV at a fixed sample rate.
type Converter struct {
	sampleRate int
}

func NewConverter(sampleRate int) *Converter {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Converter{sampleRate: sampleRate}
}

// Args returns the ffmpeg command line used to convert src into dst.
func (c *Converter) Args(src, dst string) []string {
	return ffmpeg.Input(src).
		Output(dst, ffmpeg.KwArgs{"ar": c.sampleRate, "ac": 1, "c:a": "pcm_s16le", "f": "wav"}).
		OverWriteOutput().
		Compile().Args
}

// Normalize converts src into dst, killing ffmpeg if ctx is done first.
func (c *Converter) Normalize(ctx context.Context, src, dst string) error {
	args := c.Args(src, dst)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Debug("normalizing audio", "src", src, "sample_rate", c.sampleRate)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg convert: %w (stderr: %s)", err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
