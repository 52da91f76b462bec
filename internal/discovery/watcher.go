package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pluginrunner/pkg/logging"
)

const (
	// DefaultDebounceInterval is the time to wait after the last change
	// before OnChange is called.
	DefaultDebounceInterval = 500 * time.Millisecond

	// DefaultPollInterval is the fallback polling interval when fsnotify is
	// not available.
	DefaultPollInterval = 2 * time.Second
)

// WatcherConfig holds configuration for the watcher.
type WatcherConfig struct {
	// ManifestDir is watched for *.yaml and *.yml changes.
	ManifestDir string

	// Files are single files to watch, e.g. intents.yaml and system.yaml.
	// They do not need to exist yet.
	Files []string

	// Debounce groups bursts of changes into one OnChange call.
	Debounce time.Duration

	// PollInterval is used when fsnotify cannot watch a directory.
	PollInterval time.Duration

	// OnChange is called after relevant changes settle.
	OnChange func()
}

// Watcher monitors manifests and intent files and triggers re-applies. It
// uses fsnotify with a fallback to polling when a directory cannot be
// watched.
type Watcher struct {
	mu sync.Mutex

	config WatcherConfig

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	// lastSeen fingerprints the watched files for fallback polling
	lastSeen map[string]time.Time

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// NewWatcher creates a new watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounceInterval
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Watcher{
		config:   config,
		lastSeen: make(map[string]time.Time),
	}
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.stopCh = make(chan struct{})
	w.running = true

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("Watcher", "fsnotify not available, falling back to polling: %v", err)
		go w.pollForChanges()
		return nil
	}

	for _, dir := range w.watchedDirs() {
		if err := watcher.Add(dir); err != nil {
			logging.Warn("Watcher", "Failed to watch directory %s, falling back to polling: %v", dir, err)
			watcher.Close()
			go w.pollForChanges()
			return nil
		}
	}
	w.fsWatcher = watcher

	// Capture channels before releasing lock to avoid race conditions
	eventsCh := w.fsWatcher.Events
	errorsCh := w.fsWatcher.Errors
	go w.processEvents(eventsCh, errorsCh)

	logging.Info("Watcher", "Started watching %s", strings.Join(w.watchedDirs(), ", "))
	return nil
}

// watchedDirs lists the directories to subscribe to, without duplicates.
func (w *Watcher) watchedDirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if dir == "" || seen[dir] {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	add(w.config.ManifestDir)
	for _, f := range w.config.Files {
		if f != "" {
			add(filepath.Dir(f))
		}
	}
	return dirs
}

// processEvents handles fsnotify events.
// The channels are passed as parameters to avoid race conditions with Stop().
func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("Watcher", err, "fsnotify error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.isRelevant(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	logging.Debug("Watcher", "File changed: %s (%s)", event.Name, event.Op)
	w.triggerDebounced()
}

// isRelevant reports whether a path is a manifest or one of the watched files.
func (w *Watcher) isRelevant(path string) bool {
	clean := filepath.Clean(path)
	for _, f := range w.config.Files {
		if f != "" && filepath.Clean(f) == clean {
			return true
		}
	}
	if w.config.ManifestDir == "" || filepath.Dir(clean) != filepath.Clean(w.config.ManifestDir) {
		return false
	}
	name := filepath.Base(clean)
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func (w *Watcher) triggerDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		running := w.running
		callback := w.config.OnChange
		w.mu.Unlock()

		if running && callback != nil {
			callback()
		}
	})
}

func (w *Watcher) pollForChanges() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.lastSeen = w.fingerprint()

	for {
		select {
		case <-w.stopCh:
			return

		case <-ticker.C:
			current := w.fingerprint()
			if changed(w.lastSeen, current) {
				logging.Debug("Watcher", "Changes detected via polling")
				w.triggerDebounced()
			}
			w.lastSeen = current
		}
	}
}

// fingerprint returns the modification time of every relevant file.
func (w *Watcher) fingerprint() map[string]time.Time {
	seen := make(map[string]time.Time)
	var paths []string
	if files, err := manifestFiles(w.config.ManifestDir); err == nil {
		paths = append(paths, files...)
	}
	paths = append(paths, w.config.Files...)
	sort.Strings(paths)

	for _, p := range paths {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil {
			seen[p] = info.ModTime()
		}
	}
	return seen
}

func changed(before, after map[string]time.Time) bool {
	if len(before) != len(after) {
		return true
	}
	for p, t := range after {
		if prev, ok := before[p]; !ok || !prev.Equal(t) {
			return true
		}
	}
	return false
}

// Stop gracefully stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			logging.Warn("Watcher", "Error closing fsnotify watcher: %v", err)
		}
		w.fsWatcher = nil
	}

	logging.Info("Watcher", "Stopped watcher")
	return nil
}

// IsRunning returns whether the watcher is currently active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
