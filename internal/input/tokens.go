package input

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// TokenWatcher tails a file that an LLM client appends its output to.
// Text written before Run starts is skipped. When the file shrinks (a new
// conversation truncated it) reading restarts from the beginning.
type TokenWatcher struct {
	path string
	emit func(text string, at time.Time)
	log  zerolog.Logger

	pos int64
}

func NewTokenWatcher(path string, emit func(text string, at time.Time), log zerolog.Logger) *TokenWatcher {
	return &TokenWatcher{path: filepath.Clean(path), emit: emit, log: log}
}

// Run watches until ctx is done. The parent directory must exist; the
// file itself may appear later.
func (tw *TokenWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("token watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(tw.path)); err != nil {
		return fmt.Errorf("token watcher: watch %s: %w", filepath.Dir(tw.path), err)
	}
	if info, err := os.Stat(tw.path); err == nil {
		tw.pos = info.Size()
	}
	tw.log.Info().Str("path", tw.path).Int64("offset", tw.pos).Msg("tailing token stream")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != tw.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				tw.poll()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				tw.pos = 0
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			tw.log.Warn().Err(err).Msg("token watcher error")
		}
	}
}

// poll reads whatever was appended since the last read.
func (tw *TokenWatcher) poll() {
	f, err := os.Open(tw.path)
	if err != nil {
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return
	}
	size := info.Size()
	if size < tw.pos {
		tw.log.Debug().Str("path", tw.path).Msg("token stream truncated, restarting")
		tw.pos = 0
	}
	if size == tw.pos {
		return
	}

	if _, err := f.Seek(tw.pos, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, size-tw.pos))
	if err != nil {
		tw.log.Warn().Err(err).Str("path", tw.path).Msg("token stream read failed")
		return
	}
	tw.pos += int64(len(data))

	if text := string(data); strings.TrimSpace(text) != "" {
		tw.emit(text, time.Now())
	}
}
