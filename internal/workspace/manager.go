package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"subtitler/internal/logging"
)

const (
	dirPrefix        = "ws-"
	lockFileName     = ".lock"
	defaultChunkSize = 1 << 20
)

// ErrRootLocked means another process owns the temp root.
var ErrRootLocked = errors.New("workspace root is locked by another process")

// Options configures a Manager.
type Options struct {
	Root      string
	ChunkSize int
	Logger    *slog.Logger
}

// Manager hands out workspaces under a process-private temp root.
type Manager struct {
	root      string
	chunkSize int
	logger    *slog.Logger
	lock      *flock.Flock

	mu     sync.Mutex
	active map[string]*Workspace
	cron   *cron.Cron
}

// Open creates the temp root if needed, takes an exclusive lock on it and
// purges leftovers from a previous process.
func Open(opts Options) (*Manager, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	m := &Manager{
		root:      root,
		chunkSize: chunk,
		logger:    logging.NewComponentLogger(opts.Logger, "workspace"),
		lock:      flock.New(filepath.Join(root, lockFileName)),
		active:    make(map[string]*Workspace),
	}

	ok, err := m.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootLocked, root)
	}

	if removed, err := m.PurgeAll(); err != nil {
		m.logger.Warn("failed to purge leftover workspaces",
			logging.String("root", root),
			logging.Error(err),
			logging.String(logging.FieldEventType, "workspace_purge_failed"),
			logging.String(logging.FieldErrorHint, "check temp_root permissions"),
			logging.String(logging.FieldImpact, "disk space from a previous run not reclaimed"),
		)
	} else if removed > 0 {
		m.logger.Info("purged leftover workspaces",
			logging.String("root", root),
			logging.Int("count", removed),
			logging.String(logging.FieldEventType, "workspace_purge"),
		)
	}
	return m, nil
}

// Root returns the temp root directory.
func (m *Manager) Root() string { return m.root }

// Acquire creates a fresh workspace directory.
func (m *Manager) Acquire() (*Workspace, error) {
	id := dirPrefix + uuid.NewString()
	dir := filepath.Join(m.root, id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	ws := &Workspace{id: id, dir: dir, manager: m}
	m.mu.Lock()
	m.active[id] = ws
	m.mu.Unlock()
	return ws, nil
}

// With runs fn inside a fresh workspace and releases it on every exit path,
// including panics. fn's error is returned; release failures are logged.
func (m *Manager) With(fn func(*Workspace) error) error {
	ws, err := m.Acquire()
	if err != nil {
		return err
	}
	defer ws.Release() //nolint:errcheck
	return fn(ws)
}

// Active returns the number of unreleased workspaces.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *Manager) isActive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[id]
	return ok
}

// PurgeAll removes every workspace directory not owned by this manager.
func (m *Manager) PurgeAll() (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) || m.isActive(entry.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.root, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// CleanStaleResult contains the outcome of a stale workspace sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes inactive workspace directories older than maxAge. Live
// workspaces are never touched regardless of age.
func (m *Manager) CleanStale(ctx context.Context, maxAge time.Duration) CleanStaleResult {
	result := CleanStaleResult{}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: m.root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) || m.isActive(entry.Name()) {
			continue
		}
		dirPath := filepath.Join(m.root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			m.logger.Warn("failed to remove stale workspace",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check temp_root permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		m.logger.Info("removed stale workspace",
			logging.String("path", dirPath),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "workspace_cleanup"),
		)
	}
	return result
}

// StartSweeper schedules CleanStale with a cron spec such as "@every 15m".
func (m *Manager) StartSweeper(schedule string, maxAge time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return errors.New("sweeper already running")
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		m.CleanStale(context.Background(), maxAge)
	}); err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	c.Start()
	m.cron = c
	return nil
}

// Close stops the sweeper, releases live workspaces and unlocks the root.
func (m *Manager) Close() error {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	live := make([]*Workspace, 0, len(m.active))
	for _, ws := range m.active {
		live = append(live, ws)
	}
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	var errs []error
	for _, ws := range live {
		if err := ws.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release workspace lock: %w", err))
	}
	return errors.Join(errs...)
}
