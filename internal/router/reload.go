package router

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// BuildFunc compiles a parsed config into a Router.
type BuildFunc func(*Config) (*Router, error)

// Watcher watches a config file and atomically swaps the active Router when
// the file changes. Invalid configs are reported and the old Router is kept.
type Watcher struct {
	path     string
	build    BuildFunc
	debounce time.Duration

	fsw     *fsnotify.Watcher
	current atomic.Pointer[Router]

	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex // serializes reloads
	lastRaw []byte

	onChange func(*Config)
	onError  func(error)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the default 150ms debounce window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// OnChange registers a callback fired after every successful swap, including
// the initial load.
func OnChange(fn func(*Config)) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// OnError registers a callback for reload failures.
func OnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// NewWatcher wires a file watcher around path. Nothing is loaded until Start.
func NewWatcher(path string, build BuildFunc, opts ...WatcherOption) (*Watcher, error) {
	if build == nil {
		return nil, errors.New("build func is nil")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		path:     path,
		build:    build,
		debounce: 150 * time.Millisecond,
		fsw:      fsw,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.debounce <= 0 {
		w.debounce = 150 * time.Millisecond
	}
	return w, nil
}

// Start loads and builds the initial config, then begins watching. The file's
// directory is watched so editors that replace the file are noticed.
func (w *Watcher) Start() (*Config, error) {
	raw, cfg, r, err := w.load()
	if err != nil {
		return nil, err
	}
	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		r.Close()
		return nil, fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.lastRaw = raw
	w.current.Store(r)
	if w.onChange != nil {
		w.onChange(cfg)
	}
	w.started.Store(true)
	go w.loop()
	return cfg, nil
}

// Router returns the active router.
func (w *Watcher) Router() *Router {
	return w.current.Load()
}

// Close stops watching and closes the active router.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		if w.started.Load() {
			<-w.done
		}
		err = w.fsw.Close()

		w.mu.Lock()
		defer w.mu.Unlock()
		if r := w.current.Load(); r != nil {
			err = errors.Join(err, r.Close())
		}
	})
	return err
}

func (w *Watcher) load() ([]byte, *Config, *Router, error) {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, r, err := w.compile(raw)
	return raw, cfg, r, err
}

func (w *Watcher) compile(raw []byte) (*Config, *Router, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, nil, err
	}
	r, err := w.build(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build routes: %w", err)
	}
	return cfg, r, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	var timer *time.Timer
	schedule := func() {
		if timer == nil {
			timer = time.AfterFunc(w.debounce, w.reload)
			return
		}
		timer.Reset(w.debounce)
	}

	name := filepath.Clean(w.path)
	for {
		select {
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case err := <-w.fsw.Errors:
			if err != nil && w.onError != nil {
				w.onError(err)
			}
		case evt := <-w.fsw.Events:
			if filepath.Clean(evt.Name) != name {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stop:
		return
	default:
	}

	raw, err := os.ReadFile(w.path)
	if err != nil {
		w.fail(fmt.Errorf("read config: %w", err))
		return
	}
	if bytes.Equal(raw, w.lastRaw) {
		return
	}
	cfg, r, err := w.compile(raw)
	if err != nil {
		w.fail(err)
		return
	}

	old := w.current.Swap(r)
	w.lastRaw = raw
	if old != nil {
		old.Close()
	}
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

func (w *Watcher) fail(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
