package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"subtitler/internal/logging"
	"subtitler/internal/services"
	"subtitler/internal/textutil"
)

// ErrLimitExceeded reports that a staged stream ran past its byte limit.
var ErrLimitExceeded = fmt.Errorf("%w: staged bytes exceed limit", services.ErrPayloadTooLarge)

// ErrReleased is returned when staging into a workspace that was already
// released.
var ErrReleased = errors.New("workspace already released")

// stagedPrefix keeps client-chosen names from colliding with files the
// pipeline writes (captions.srt, output.mp4).
const stagedPrefix = "source-"

// StagedFile is a file written into a workspace.
type StagedFile struct {
	Path string
	Size int64
}

// Workspace is a private directory owned by one request.
type Workspace struct {
	id       string
	dir      string
	manager  *Manager
	once     sync.Once
	released atomic.Bool
	err      error
}

// ID returns the workspace identifier (the directory base name).
func (w *Workspace) ID() string { return w.id }

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Path returns a path for name inside the workspace. Only the base name of
// name is used.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Released reports whether Release has run.
func (w *Workspace) Released() bool { return w.released.Load() }

// Stage copies r into the workspace in chunks. When limit > 0 and r yields
// more than limit bytes, the partial file is removed and ErrLimitExceeded is
// returned with the StagedFile reporting how many bytes were read.
func (w *Workspace) Stage(r io.Reader, suggestedName string, limit int64) (StagedFile, error) {
	if w.Released() {
		return StagedFile{}, ErrReleased
	}
	name := textutil.SanitizeFileName(filepath.Base(strings.ReplaceAll(suggestedName, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		name = "upload"
	}
	path := filepath.Join(w.dir, stagedPrefix+name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return StagedFile{}, fmt.Errorf("stage %s: %w", name, err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	buf := make([]byte, w.manager.chunkSize)
	// Wrapping hides ReaderFrom/WriterTo so the copy really uses buf.
	written, copyErr := io.CopyBuffer(struct{ io.Writer }{file}, struct{ io.Reader }{src}, buf)
	closeErr := file.Close()

	staged := StagedFile{Path: path, Size: written}
	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return staged, fmt.Errorf("stage %s: %w", name, copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return staged, fmt.Errorf("stage %s: %w", name, closeErr)
	case limit > 0 && written > limit:
		_ = os.Remove(path)
		return staged, ErrLimitExceeded
	}
	return staged, nil
}

// Release removes the workspace directory. Only the first call does any
// work; later calls return the first call's result.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		w.released.Store(true)
		if err := os.RemoveAll(w.dir); err != nil {
			w.err = fmt.Errorf("release workspace %s: %w", w.id, err)
			w.manager.logger.Warn("workspace removal failed",
				logging.String("workspace", w.id),
				logging.Error(err),
				logging.String(logging.FieldEventType, "workspace_release_failed"),
				logging.String(logging.FieldErrorHint, "check temp_root permissions"),
				logging.String(logging.FieldImpact, "stale sweeper will retry"),
			)
		}
		w.manager.forget(w.id)
	})
	return w.err
}
