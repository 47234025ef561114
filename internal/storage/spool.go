package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrTooLarge is returned by Save when the upload exceeds the spool's limit.
	ErrTooLarge = errors.New("upload exceeds size limit")
	// ErrRead wraps failures reading the upload itself: a broken request
	// body or a canceled context. Disk faults are never wrapped with it.
	ErrRead = errors.New("read upload")
)

// File describes an upload written to the spool directory.
type File struct {
	Path   string
	Size   int64
	Digest string // hex SHA-256 of the contents
}

// Spool keeps uploads on local disk for the lifetime of one request.
// Every saved file gets its own name, so concurrent requests never share a path.
type Spool struct {
	dir      string
	maxBytes int64
}

func NewSpool(dir string, maxBytes int64) (*Spool, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &Spool{dir: dir, maxBytes: maxBytes}, nil
}

func (s *Spool) Dir() string { return s.dir }

// Save copies r into a fresh file. The extension of filename is kept so
// backends that sniff by suffix still work; it defaults to ".wav".
func (s *Spool) Save(ctx context.Context, r io.Reader, filename string) (*File, error) {
	path := s.Path(uuid.NewString() + extension(filename))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}

	h := sha256.New()
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	cr := &ctxReader{ctx: ctx, r: src}
	n, err := io.Copy(io.MultiWriter(f, h), cr)
	if cr.err != nil {
		err = fmt.Errorf("%w: %w", ErrRead, cr.err)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write spool file: %w", err)
	}

	return &File{Path: path, Size: n, Digest: hex.EncodeToString(h.Sum(nil))}, nil
}

// Path returns the location of name inside the spool directory.
func (s *Spool) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Remove deletes path. A file that is already gone is not an error.
func (s *Spool) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove spool file: %w", err)
	}
	return nil
}

func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		return ".wav"
	}
	return ext
}

// ctxReader stops a copy once the request context is done and remembers
// the first read-side error.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return 0, err
	}
	n, err := c.r.Read(p)
	if err != nil && err != io.EOF {
		c.err = err
	}
	return n, err
}
