package settings

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	importDirPerm = fs.FileMode(0o700)

	// importSettle is how long a file must go without writes before it
	// is imported, so half-copied files are not read.
	importSettle = 500 * time.Millisecond

	importedSuffix = ".imported"
	failedSuffix   = ".failed"
)

// BackupApplier is the part of the engine the import watcher needs.
type BackupApplier interface {
	RestoreBackup(ctx context.Context, raw []byte) Result
}

// ImportWatcher restores every *.json file dropped into a directory and
// renames it with an .imported or .failed suffix.
type ImportWatcher struct {
	dir     string
	applier BackupApplier
	logger  *slog.Logger
}

func NewImportWatcher(dir string, applier BackupApplier, logger *slog.Logger) *ImportWatcher {
	return &ImportWatcher{dir: dir, applier: applier, logger: logger}
}

// Watch imports files already present, then watches for new ones until
// ctx is cancelled.
func (w *ImportWatcher) Watch(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, importDirPerm); err != nil {
		return fmt.Errorf("creating import dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching import dir: %w", err)
	}

	w.logger.Info("import watcher started", slog.String("dir", w.dir))

	if err := w.ImportExisting(ctx); err != nil {
		w.logger.Warn("importing existing files", slog.String("error", err.Error()))
	}

	pending := make(map[string]time.Time)

	ticker := time.NewTicker(importSettle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if !isImportCandidate(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(pending, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("import watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			now := time.Now()
			for path, t := range pending {
				if now.Sub(t) < importSettle {
					continue
				}

				delete(pending, path)
				w.importFile(ctx, path)
			}
		}
	}
}

// ImportExisting imports every candidate file currently in the
// directory, in name order.
func (w *ImportWatcher) ImportExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading import dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		path := filepath.Join(w.dir, e.Name())
		if isImportCandidate(path) {
			w.importFile(ctx, path)
		}
	}

	return nil
}

func (w *ImportWatcher) importFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("reading backup file", slog.String("path", path), slog.String("error", err.Error()))
		}

		return
	}

	res := w.applier.RestoreBackup(ctx, data)

	suffix := importedSuffix
	if !res.Success {
		suffix = failedSuffix
	}

	if err := os.Rename(path, path+suffix); err != nil {
		w.logger.Warn("renaming backup file", slog.String("path", path), slog.String("error", err.Error()))
	}

	w.logger.Info("backup file processed",
		slog.String("path", path),
		slog.Bool("success", res.Success),
		slog.String("message", res.Message),
	)
}

func isImportCandidate(path string) bool {
	name := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(name), ".json") && !strings.HasPrefix(name, ".")
}
