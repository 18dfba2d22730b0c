// Package prompt owns the oracle prompt texts. Both files hot-reload on
// change, so prompts can be tuned while the loop keeps running.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"scalper/internal/logger"
)

// Library serves the current system and user prompt texts. Reads are cheap
// snapshots; a failed reload keeps the last good text.
type Library struct {
	systemPath string
	promptPath string

	mu     sync.RWMutex
	system string
	prompt string

	watcher *fsnotify.Watcher
}

// NewLibrary loads both prompt files and starts watching their directories.
// Watching directories rather than the files themselves survives the
// rename-and-replace most editors do on save.
func NewLibrary(systemPath, promptPath string) (*Library, error) {
	l := &Library{
		systemPath: strings.TrimSpace(systemPath),
		promptPath: strings.TrimSpace(promptPath),
	}
	if l.systemPath == "" || l.promptPath == "" {
		return nil, fmt.Errorf("prompt library requires system and prompt paths")
	}
	if err := l.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting prompt watcher: %w", err)
	}
	dirs := map[string]bool{
		filepath.Dir(l.systemPath): true,
		filepath.Dir(l.promptPath): true,
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	l.watcher = watcher
	go l.watch()
	return l, nil
}

// System returns the current system instruction text.
func (l *Library) System() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.system
}

// Render returns the user prompt with {key} placeholders substituted.
func (l *Library) Render(vars map[string]string) string {
	l.mu.RLock()
	text := l.prompt
	l.mu.RUnlock()
	for k, v := range vars {
		text = strings.ReplaceAll(text, "{"+k+"}", v)
	}
	return text
}

func (l *Library) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}

func (l *Library) watch() {
	for {
		select {
		case evt, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !l.concerns(evt.Name) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := l.reload(); err != nil {
				logger.Errorf("prompt reload failed: %v", err)
				continue
			}
			logger.Infof("prompts reloaded after change to %s", evt.Name)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("prompt watcher: %v", err)
		}
	}
}

func (l *Library) concerns(name string) bool {
	return filepath.Clean(name) == filepath.Clean(l.systemPath) ||
		filepath.Clean(name) == filepath.Clean(l.promptPath)
}

func (l *Library) reload() error {
	system, err := os.ReadFile(l.systemPath)
	if err != nil {
		return fmt.Errorf("reading system prompt: %w", err)
	}
	prompt, err := os.ReadFile(l.promptPath)
	if err != nil {
		return fmt.Errorf("reading user prompt: %w", err)
	}
	if len(strings.TrimSpace(string(prompt))) == 0 {
		return fmt.Errorf("user prompt %s is empty", l.promptPath)
	}
	l.mu.Lock()
	l.system = string(system)
	l.prompt = string(prompt)
	l.mu.Unlock()
	return nil
}
