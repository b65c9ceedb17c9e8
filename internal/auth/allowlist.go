package auth

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// AllowList holds pre-shared bearer tokens. Tokens come from
// configuration and, optionally, from a file with one token per line
// that is reloaded when it changes. Blank lines and lines starting
// with # are ignored.
type AllowList struct {
	logger *slog.Logger

	mu     sync.RWMutex
	static [][sha256.Size]byte
	file   [][sha256.Size]byte
}

// NewAllowList creates an allow list from the configured tokens.
func NewAllowList(tokens []string, logger *slog.Logger) *AllowList {
	a := &AllowList{logger: logger}

	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			a.static = append(a.static, sha256.Sum256([]byte(t)))
		}
	}

	return a
}

// Contains reports whether token is allow-listed. A nil AllowList
// contains nothing. Tokens are compared as SHA-256 digests in constant
// time.
func (a *AllowList) Contains(token string) bool {
	if a == nil || token == "" {
		return false
	}

	h := sha256.Sum256([]byte(token))

	a.mu.RLock()
	defer a.mu.RUnlock()

	found := 0
	for _, list := range [][][sha256.Size]byte{a.static, a.file} {
		for i := range list {
			found |= subtle.ConstantTimeCompare(h[:], list[i][:])
		}
	}

	return found == 1
}

// Len returns the number of tokens currently loaded.
func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.static) + len(a.file)
}

// LoadFile replaces the file-sourced tokens with the contents of path.
func (a *AllowList) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading bearer token file: %w", err)
	}

	var tokens [][sha256.Size]byte

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tokens = append(tokens, sha256.Sum256([]byte(line)))
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("parsing bearer token file: %w", err)
	}

	a.mu.Lock()
	a.file = tokens
	a.mu.Unlock()

	return nil
}

// Watch loads path and reloads it whenever it changes. It blocks until
// ctx is cancelled. The parent directory is watched so editors that
// replace the file by rename are picked up. A removed file keeps the
// last loaded tokens until it reappears.
func (a *AllowList) Watch(ctx context.Context, path string) error {
	if err := a.LoadFile(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving bearer token file: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching bearer token file: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed")
			}

			if filepath.Clean(event.Name) != abs {
				continue
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			if err := a.LoadFile(abs); err != nil {
				a.logger.Warn("bearer token file reload failed", slog.String("error", err.Error()))
				continue
			}

			a.logger.Info("bearer token file reloaded", slog.Int("tokens", a.Len()))

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed")
			}

			a.logger.Warn("bearer token file watch error", slog.String("error", err.Error()))
		}
	}
}
