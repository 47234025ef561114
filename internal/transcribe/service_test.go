package transcribe

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/nikhilbhutani/castiq-transcriber/internal/cache"
	"github.com/nikhilbhutani/castiq-transcriber/internal/storage"
	"github.com/nikhilbhutani/castiq-transcriber/internal/stt"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	paths []string
	text  string
	err   error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	p.mu.Lock()
	p.calls++
	p.paths = append(p.paths, req.FilePath)
	p.mu.Unlock()

	if _, err := os.Stat(req.FilePath); err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	return &stt.Result{Text: p.text, Language: req.Language}, nil
}

type fakeNormalizer struct {
	err error
	dst string
}

func (n *fakeNormalizer) Normalize(ctx context.Context, src, dst string) error {
	n.dst = dst
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return err
	}
	return n.err
}

type memCache struct {
	mu   sync.Mutex
	data map[string]*stt.Result
	err  error
}

func (c *memCache) Get(ctx context.Context, digest string) (*stt.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	res, ok := c.data[digest]
	if !ok {
		return nil, cache.ErrMiss
	}
	return res, nil
}

func (c *memCache) Set(ctx context.Context, digest string, res *stt.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[digest] = res
	return nil
}

func newSpool(t *testing.T) *storage.Spool {
	t.Helper()
	s, err := storage.NewSpool(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("NewSpool failed: %v", err)
	}
	return s
}

func assertEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read spool dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty spool dir, found %d entries", len(entries))
	}
}

func TestTranscribeSuccess(t *testing.T) {
	spool := newSpool(t)
	p := &fakeProvider{text: "  Hello world.  "}
	svc := NewService(p, spool, nil, nil, Options{Language: "en"})

	res, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "clip.wav")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if res.Text != "Hello world." {
		t.Errorf("Expected trimmed text, got %q", res.Text)
	}
	if res.Language != "en" {
		t.Errorf("Expected language to be passed through, got %q", res.Language)
	}
	assertEmpty(t, spool.Dir())
}

func TestTranscribeFailureRemovesFile(t *testing.T) {
	spool := newSpool(t)
	p := &fakeProvider{err: errors.New("decoder crashed")}
	svc := NewService(p, spool, nil, nil, Options{})

	_, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "clip.wav")
	if err == nil {
		t.Fatal("Expected error")
	}
	if errors.Is(err, ErrUpload) {
		t.Error("Provider failure must not be reported as an upload error")
	}
	if p.calls != 1 {
		t.Errorf("Expected one provider call, got %d", p.calls)
	}
	assertEmpty(t, spool.Dir())
}

func TestTranscribeUploadTooLarge(t *testing.T) {
	spool, err := storage.NewSpool(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("NewSpool failed: %v", err)
	}
	p := &fakeProvider{text: "x"}
	svc := NewService(p, spool, nil, nil, Options{})

	_, err = svc.Transcribe(context.Background(), strings.NewReader("too big"), "clip.wav")
	if !errors.Is(err, ErrUpload) || !errors.Is(err, storage.ErrTooLarge) {
		t.Errorf("Expected upload error wrapping ErrTooLarge, got %v", err)
	}
	if p.calls != 0 {
		t.Errorf("Provider should not be called, got %d calls", p.calls)
	}
	assertEmpty(t, spool.Dir())
}

func TestTranscribeSpoolFaultIsNotUploadError(t *testing.T) {
	spool := newSpool(t)
	if err := os.RemoveAll(spool.Dir()); err != nil {
		t.Fatalf("remove spool dir: %v", err)
	}
	p := &fakeProvider{text: "x"}
	svc := NewService(p, spool, nil, nil, Options{})

	_, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "clip.wav")
	if err == nil {
		t.Fatal("Expected error")
	}
	if errors.Is(err, ErrUpload) {
		t.Errorf("Disk fault must not be reported as an upload error, got %v", err)
	}
	if p.calls != 0 {
		t.Errorf("Provider should not be called, got %d calls", p.calls)
	}
}

func TestTranscribeNormalizes(t *testing.T) {
	spool := newSpool(t)
	p := &fakeProvider{text: "normalized"}
	n := &fakeNormalizer{}
	svc := NewService(p, spool, n, nil, Options{})

	if _, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "clip.webm"); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(p.paths) != 1 || p.paths[0] != n.dst {
		t.Errorf("Expected provider to read normalized file %s, got %v", n.dst, p.paths)
	}
	assertEmpty(t, spool.Dir())
}

func TestTranscribeNormalizeFailure(t *testing.T) {
	spool := newSpool(t)
	p := &fakeProvider{text: "x"}
	svc := NewService(p, spool, &fakeNormalizer{err: errors.New("bad codec")}, nil, Options{})

	if _, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "clip.wav"); err == nil {
		t.Fatal("Expected error")
	}
	if p.calls != 0 {
		t.Errorf("Provider should not be called, got %d calls", p.calls)
	}
	assertEmpty(t, spool.Dir())
}

func TestTranscribeCacheHit(t *testing.T) {
	spool := newSpool(t)
	p := &fakeProvider{text: "first"}
	c := &memCache{data: map[string]*stt.Result{}}
	svc := NewService(p, spool, nil, c, Options{})

	for i := 0; i < 3; i++ {
		res, err := svc.Transcribe(context.Background(), strings.NewReader("same audio"), "clip.wav")
		if err != nil {
			t.Fatalf("Transcribe %d failed: %v", i, err)
		}
		if res.Text != "first" {
			t.Errorf("Expected cached text, got %q", res.Text)
		}
	}
	if p.calls != 1 {
		t.Errorf("Expected one provider call, got %d", p.calls)
	}
	assertEmpty(t, spool.Dir())
}

func TestTranscribeCacheErrorsIgnored(t *testing.T) {
	spool := newSpool(t)
	p := &fakeProvider{text: "still works"}
	c := &memCache{data: map[string]*stt.Result{}, err: errors.New("redis down")}
	svc := NewService(p, spool, nil, c, Options{})

	res, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "clip.wav")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if res.Text != "still works" {
		t.Errorf("Unexpected text %q", res.Text)
	}
}

func TestTranscribeConcurrentRequestsUseDistinctFiles(t *testing.T) {
	spool := newSpool(t)
	p := &fakeProvider{text: "ok"}
	svc := NewService(p, spool, nil, nil, Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transcribe(context.Background(), strings.NewReader("audio"), "temp_audio.wav")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent transcribe failed: %v", err)
		}
	}

	seen := make(map[string]bool)
	for _, path := range p.paths {
		if seen[path] {
			t.Errorf("Spool path %s reused across requests", path)
		}
		seen[path] = true
	}
	assertEmpty(t, spool.Dir())
}
