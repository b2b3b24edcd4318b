package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads an Engine when .rego files in its directory change.
// Bursts of events are coalesced into one reload.
type Watcher struct {
	engine   *Engine
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload func(error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher watches engine.Dir(). onReload, if set, is called after every
// reload attempt with its error.
func NewWatcher(engine *Engine, onReload func(error)) (*Watcher, error) {
	if engine.Dir() == "" {
		return nil, fmt.Errorf("engine has no policies directory")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(engine.Dir()); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", engine.Dir(), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		engine:   engine,
		watcher:  fw,
		debounce: 200 * time.Millisecond,
		onReload: onReload,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins processing events in the background.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.eventLoop()
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.cancel()
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			err := w.engine.Reload()
			if err != nil {
				slog.Warn("policy reload failed, keeping previous policies", "error", err)
			} else {
				slog.Info("policies reloaded", "count", w.engine.PolicyCount())
			}
			if w.onReload != nil {
				w.onReload(err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("policy watch error", "error", err)

		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".rego") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
