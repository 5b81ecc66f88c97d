package config

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "tasky/pkg/logx"
)

const (
	reloadDebounce   = 250 * time.Millisecond
	validateTimeout  = 5 * time.Second
	watchBackoffBase = 250 * time.Millisecond
	watchBackoffMax  = 5 * time.Second
)

var errWatcherClosed = errors.New("watcher closed")

// Manager owns the live config. The config file and the dotenv files feed
// one parse, so editing either one reloads it.
type Manager struct {
	path     string
	envFiles []string

	mu        sync.RWMutex
	cfg       *Config
	hash      uint64
	log       logx.Logger
	validator func(ctx context.Context, cfg *Config) error

	subsMu sync.Mutex
	subs   []chan *Config
}

// NewManager reads path (JSON or YAML) and overlays TASKY_* values from the
// process environment, then from envFiles. Missing env files are skipped.
func NewManager(path string, envFiles ...string) *Manager {
	return &Manager{path: path, envFiles: envFiles, log: logx.Nop()}
}

func (m *Manager) SetLogger(log logx.Logger) {
	if log.IsZero() {
		log = logx.Nop()
	}
	m.mu.Lock()
	m.log = log
	m.mu.Unlock()
}

// SetValidator installs the check a reloaded config must pass before it is
// committed and published.
func (m *Manager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.mu.Lock()
	m.validator = fn
	m.mu.Unlock()
}

func (m *Manager) logger() logx.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.log
}

// Parse reads the current files without committing the result.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeConfig(m.path, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	dotenv, err := readDotEnv(m.envFiles)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg, func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	})
	return cfg, nil
}

// Load parses and commits. It does not run the validator.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.commit(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) commit(cfg *Config) {
	h := hashConfig(cfg)
	m.mu.Lock()
	m.cfg, m.hash = cfg, h
	m.mu.Unlock()
}

// Subscribe returns a channel that receives every committed reload. A slow
// subscriber only ever misses older configs, never the newest one.
func (m *Manager) Subscribe(buffer int) (<-chan *Config, func()) {
	ch := make(chan *Config, max(buffer, 1))
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			if i := slices.Index(m.subs, ch); i >= 0 {
				m.subs = slices.Delete(m.subs, i, i+1)
				close(ch)
			}
		})
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		for {
			select {
			case ch <- cfg:
			default:
				// Full: drop the oldest and retry.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// reload parses, skips unchanged content, validates, then commits and
// publishes.
func (m *Manager) reload(ctx context.Context) {
	log := m.logger()
	cfg, err := m.Parse()
	if err != nil {
		log.Warn("config parse failed", logx.String("path", m.path), logx.Err(err))
		return
	}
	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.hash
	validate := m.validator
	m.mu.RUnlock()
	if unchanged {
		log.Debug("config unchanged", logx.String("path", m.path))
		return
	}
	if validate != nil {
		vctx, cancel := context.WithTimeout(ctx, validateTimeout)
		err := validate(vctx, cfg)
		cancel()
		if err != nil {
			log.Warn("config rejected", logx.String("path", m.path), logx.Err(err))
			return
		}
	}
	m.commit(cfg)
	m.publish(cfg)
	log.Info("config reloaded", logx.String("path", m.path), logx.String("hash", fmt.Sprintf("%x", h)))
}

// Watch reloads whenever the config file or an env file changes. A broken
// watcher is recreated with jittered backoff. It returns nil when ctx ends.
func (m *Manager) Watch(ctx context.Context) error {
	backoff := watchBackoffBase
	for ctx.Err() == nil {
		started := time.Now()
		err := m.watchOnce(ctx)
		if ctx.Err() != nil {
			break
		}
		if time.Since(started) > watchBackoffMax {
			backoff = watchBackoffBase
		}
		wait := backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))
		backoff = min(backoff*2, watchBackoffMax)
		m.logger().Warn("config watcher stopped; restarting", logx.Err(err), logx.Duration("backoff", wait))
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
	return nil
}

func (m *Manager) watchOnce(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	names := m.watchedNames()
	for _, dir := range watchDirs(names) {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	m.logger().Debug("config watcher started", logx.String("files", strings.Join(names, ",")))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errWatcherClosed
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 && slices.Contains(names, filepath.Clean(ev.Name)) {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errWatcherClosed
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; reload to be safe.
				pending = time.After(reloadDebounce)
				continue
			}
			m.logger().Warn("config watch error", logx.Err(err))
		case <-pending:
			pending = nil
			m.reload(ctx)
		}
	}
}

// watchedNames is the cleaned config path plus every env file. fsnotify
// reports names joined onto the watched directory, so both sides are cleaned.
func (m *Manager) watchedNames() []string {
	names := []string{filepath.Clean(m.path)}
	for _, f := range m.envFiles {
		if f = strings.TrimSpace(f); f != "" {
			names = append(names, filepath.Clean(f))
		}
	}
	return names
}

func watchDirs(names []string) []string {
	var dirs []string
	for _, n := range names {
		if d := filepath.Dir(n); !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
