// Package sink de-duplicates product records by title and streams the
// survivors into a JSON array file.
package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/user/product-crawler/internal/domain"
)

var (
	// ErrClosed is returned by Offer once the sink has been closed or
	// before it was opened.
	ErrClosed = errors.New("sink is closed")
	// ErrWrite wraps I/O failures on the output file. Once a write has
	// failed every later Offer returns the same error.
	ErrWrite = errors.New("sink write failed")
	// ErrNoTitle is returned for records without a dedup key.
	ErrNoTitle = errors.New("record has no title")
)

// Options configures where and how the array is written.
type Options struct {
	Dir       string
	CrawlName string
	// LegacyTrailingComma writes every record followed by ",\n" and closes
	// with a bare "]". The result is not valid JSON; it matches files
	// produced by older tooling byte for byte.
	LegacyTrailingComma bool
}

// Path is the output file of a crawl.
func Path(dir, crawlName string) string {
	return filepath.Join(dir, "products_"+crawlName+".json")
}

// Sink accepts records from any number of goroutines. The membership check,
// the insert into the seen set and the file write happen under one lock,
// so two records with the same title can never both be written.
type Sink struct {
	path   string
	legacy bool
	logger *zap.Logger

	mu         sync.Mutex
	file       *os.File
	seen       map[string]struct{}
	written    int
	duplicates int
	closed     bool
	err        error
}

// New creates a sink. Nothing touches the filesystem until Open.
func New(opts Options, logger *zap.Logger) *Sink {
	return &Sink{
		path:   Path(opts.Dir, opts.CrawlName),
		legacy: opts.LegacyTrailingComma,
		logger: logger.With(zap.String("component", "sink")),
		seen:   make(map[string]struct{}),
	}
}

// Path is the file the sink writes to.
func (s *Sink) Path() string { return s.path }

// Open truncates the output file and writes the opening bracket.
func (s *Sink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil || s.closed {
		return fmt.Errorf("sink %s already opened", s.path)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	if _, err := f.WriteString("[\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	s.file = f
	s.logger.Info("output opened", zap.String("path", s.path), zap.Bool("legacy_framing", s.legacy))
	return nil
}

// Offer writes p unless a record with the same title was already written.
// It reports whether p was written. A duplicate is not an error.
func (s *Sink) Offer(p *domain.Product) (bool, error) {
	if p == nil || p.Title == "" {
		return false, ErrNoTitle
	}
	data, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encode %q: %w", p.Title, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil || s.closed {
		return false, ErrClosed
	}
	if s.err != nil {
		return false, s.err
	}
	key := titleKey(p.Title)
	if _, ok := s.seen[key]; ok {
		s.duplicates++
		s.logger.Debug("duplicate record dropped", zap.String("title", p.Title), zap.String("url", p.URL))
		return false, nil
	}

	if _, err := s.file.Write(s.frame(data)); err != nil {
		s.err = fmt.Errorf("%w: %v", ErrWrite, err)
		return false, s.err
	}
	s.seen[key] = struct{}{}
	s.written++
	return true, nil
}

// titleKey is the title as it appears in the file: encoding/json writes
// every invalid UTF-8 byte as U+FFFD.
func titleKey(title string) string {
	if utf8.ValidString(title) {
		return title
	}
	var b strings.Builder
	for i := 0; i < len(title); {
		r, size := utf8.DecodeRuneInString(title[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.WriteString(title[i : i+size])
		}
		i += size
	}
	return b.String()
}

// frame wraps one encoded record so that it can be written in a single call.
func (s *Sink) frame(data []byte) []byte {
	if s.legacy {
		return append(data, ",\n"...)
	}
	if s.written == 0 {
		return data
	}
	out := make([]byte, 0, len(data)+2)
	out = append(out, ",\n"...)
	return append(out, data...)
}

// Close writes the closing bracket, syncs and closes the file. Calls after
// the first return nil.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.file == nil {
		return nil
	}

	tail := "]"
	if !s.legacy {
		tail = "]\n"
		if s.written > 0 {
			tail = "\n]\n"
		}
	}
	var errs []error
	if _, err := s.file.WriteString(tail); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrWrite, err))
	}
	if err := s.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync output: %w", err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output: %w", err))
	}
	s.logger.Info("output closed",
		zap.String("path", s.path),
		zap.Int("records", s.written),
		zap.Int("duplicates", s.duplicates))
	return errors.Join(errs...)
}

// Written is the number of records in the file.
func (s *Sink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Duplicates is the number of records dropped because their title was seen.
func (s *Sink) Duplicates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duplicates
}
