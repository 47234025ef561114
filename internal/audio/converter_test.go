package audio

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestConverterArgs(t *testing.T) {
	c := NewConverter(0)
	args := c.Args("in.webm", "out.wav")

	if args[0] != "ffmpeg" {
		t.Errorf("Expected ffmpeg binary, got %s", args[0])
	}
	line := strings.Join(args, " ")
	for _, want := range []string{"-i in.webm", "-ar 16000", "-ac 1", "-c:a pcm_s16le", "out.wav", "-y"} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in %q", want, line)
		}
	}
}

func TestNormalizeMissingInput(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	c := NewConverter(16000)
	err := c.Normalize(context.Background(), filepath.Join(dir, "missing.webm"), filepath.Join(dir, "out.wav"))
	if err == nil {
		t.Error("Expected error for missing input")
	}
}

func TestLastLine(t *testing.T) {
	if got := lastLine("a\nb\nc\n"); got != "c" {
		t.Errorf("Expected c, got %q", got)
	}
	if got := lastLine("only"); got != "only" {
		t.Errorf("Expected only, got %q", got)
	}
}
