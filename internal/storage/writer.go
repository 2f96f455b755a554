// Package storage persists ranked posts as NDJSON for the dashboard and for
// downstream consumers that read exports without going through the API.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/qepting91/viralscout/internal/domain"
)

// WriterService is the single owner of the export file. Producers hand it
// posts over a channel, so the file is never written concurrently.
type WriterService struct {
	FilePath string
	// Truncate starts each run with an empty file instead of appending.
	Truncate bool
	Logger   *slog.Logger

	written int
}

// Start drains input into the export file until the channel is closed.
func (w *WriterService) Start(wg *sync.WaitGroup, input <-chan domain.UnifiedPost) {
	defer wg.Done()
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f, err := w.open()
	if err != nil {
		logger.Error("Export file unavailable", "path", w.FilePath, "err", err)
		for range input {
		}
		return
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for post := range input {
		if err := enc.Encode(post); err != nil {
			logger.Warn("Export encode failed", "id", post.ID, "err", err)
			continue
		}
		w.written++
	}
	if err := bw.Flush(); err != nil {
		logger.Error("Export flush failed", "path", w.FilePath, "err", err)
	}
}

// Written reports how many posts the last Start call persisted.
func (w *WriterService) Written() int { return w.written }

func (w *WriterService) open() (*os.File, error) {
	if dir := filepath.Dir(w.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create export dir: %w", err)
		}
	}
	flags := os.O_APPEND | os.O_CREATE | os.O_WRONLY
	if w.Truncate {
		flags = os.O_TRUNC | os.O_CREATE | os.O_WRONLY
	}
	return os.OpenFile(w.FilePath, flags, 0o644)
}

// LoadPosts reads an NDJSON export. Malformed lines are skipped and a missing
// file reads as empty.
func LoadPosts(path string) ([]domain.UnifiedPost, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.UnifiedPost{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	posts := []domain.UnifiedPost{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var p domain.UnifiedPost
		if err := json.Unmarshal(scanner.Bytes(), &p); err == nil && p.ID != "" {
			posts = append(posts, p)
		}
	}
	return posts, scanner.Err()
}
