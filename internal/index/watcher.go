package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/printdeck/internal/library"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, leaf string)

// Watch starts an fsnotify watcher on the models root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after each
// successful index mutation.
//
// The root and each model folder are watched; a change anywhere inside a
// folder re-derives and re-indexes that one model. New folders created at
// runtime are added to the watch list. Rename events trigger a debounced
// reconciliation pass that removes stale index entries.
func Watch(ctx context.Context, db *DB, lib *library.Library, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := lib.Root()
	if err := addModelDirs(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, db, lib, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			leaf, depth := splitEvent(root, ev.Name)
			if leaf == "" {
				continue
			}

			switch {
			case depth == 0 && ev.Op&fsnotify.Create != 0:
				// New top-level entry. Watch it when it is a model folder
				// and index whatever it already contains.
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := w.Add(ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					reindexLeaf(db, lib, leaf, "created", logger, cb)
					// Files may land in the folder before the watch is in
					// place; a reconcile pass picks them up.
					scheduleReconcile()
				}

			case depth == 0 && ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if delErr := db.DeleteModel(leaf); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("leaf", leaf), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: deleted", slog.String("leaf", leaf))
					if cb != nil {
						cb("deleted", leaf)
					}
				}
				// A rename's new path arrives as a separate Create event;
				// reconcile catches anything the events missed.
				scheduleReconcile()

			case depth > 0 && ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0:
				// Something changed inside a model folder. Skip our own
				// atomic-write temp files; everything else re-derives the
				// model.
				if strings.HasPrefix(filepath.Base(ev.Name), ".printdeck-tmp-") {
					continue
				}
				reindexLeaf(db, lib, leaf, "updated", logger, cb)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reindexLeaf re-derives one model folder and upserts it, deleting the index
// row when the folder no longer exists.
func reindexLeaf(db *DB, lib *library.Library, leaf, kind string, logger *slog.Logger, cb EventCallback) {
	m, err := lib.LoadModel(leaf)
	if err != nil {
		if delErr := db.DeleteModel(leaf); delErr == nil {
			logger.Debug("watcher: removed unloadable", slog.String("leaf", leaf))
			if cb != nil {
				cb("deleted", leaf)
			}
		}
		return
	}
	if idxErr := indexModel(db, m); idxErr != nil {
		logger.Warn("watcher: index failed", slog.String("leaf", leaf), slog.String("error", idxErr.Error()))
		return
	}
	logger.Debug("watcher: indexed", slog.String("leaf", leaf), slog.String("op", kind))
	if cb != nil {
		cb(kind, leaf)
	}
}

// reconcile removes index entries without a folder on disk and indexes
// folders whose sidecar changed, using batch checksum lookups.
func reconcile(ctx context.Context, db *DB, lib *library.Library, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	scanned, err := lib.Scan(ctx)
	if err != nil {
		logger.Warn("reconcile: scan failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(scanned))
	for _, m := range scanned {
		disk[m.FolderLeaf] = struct{}{}
	}

	for leaf := range checksums {
		if _, ok := disk[leaf]; !ok {
			if delErr := db.DeleteModel(leaf); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("leaf", leaf))
				if cb != nil {
					cb("deleted", leaf)
				}
			}
		}
	}

	for _, m := range scanned {
		if cs, ok := checksums[m.FolderLeaf]; ok && cs == m.SidecarChecksum {
			continue
		}
		if idxErr := indexModel(db, m); idxErr == nil {
			logger.Debug("reconcile: indexed", slog.String("leaf", m.FolderLeaf))
			if cb != nil {
				cb("created", m.FolderLeaf)
			}
		}
	}
}

// splitEvent resolves an event path to the model-folder leaf it belongs to
// and the depth below that folder (0 means the top-level entry itself).
func splitEvent(root, path string) (leaf string, depth int) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", 0
	}
	parts := strings.Split(rel, string(filepath.Separator))
	return parts[0], len(parts) - 1
}

// addModelDirs watches the root plus each existing model folder. Model
// folders are flat, so one level is enough.
func addModelDirs(w *fsnotify.Watcher, root string) error {
	if err := w.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.Add(filepath.Join(root, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
