package platform

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce batches bursts of filesystem events (an editor save, an
// unzip of a plugin directory) into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Watcher triggers platform reloads when plugin directories change.
type Watcher struct {
	logger   zerolog.Logger
	platform *Platform
	debounce time.Duration
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a watcher bound to a platform. A non-positive
// debounce falls back to DefaultDebounce.
func NewWatcher(p *Platform, debounce time.Duration, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		logger:   logger.With().Str("component", "watcher").Logger(),
		platform: p,
		debounce: debounce,
		fsw:      fsw,
	}, nil
}

// Run watches the platform's discovery roots until the context is
// canceled. Each debounced change burst triggers one reload, after which
// the watch set is refreshed so newly created plugin directories are
// covered.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	w.refresh()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug().
				Str("op", event.Op.String()).
				Str("path", event.Name).
				Msg("Plugin directory changed")
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watcher error")

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			w.platform.Reload(ctx)
			w.refresh()
		}
	}
}

// refresh points the watch set at the current discovery roots and their
// immediate plugin subdirectories. Missing roots are skipped; they get
// picked up once a reload sees them.
func (w *Watcher) refresh() {
	for _, root := range w.platform.DiscoveryRoots() {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := w.fsw.Add(root); err != nil {
			w.logger.Debug().Err(err).Str("path", root).Msg("Cannot watch root")
			continue
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				_ = w.fsw.Add(filepath.Join(root, entry.Name()))
			}
		}
	}
}

// relevant filters out chmod-only noise and editor temp files.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") && !strings.HasPrefix(base, ".arion") {
		return false
	}
	return !strings.HasSuffix(base, "~") && !strings.HasSuffix(base, ".swp")
}
