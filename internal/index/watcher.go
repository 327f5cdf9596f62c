package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/tgvault/internal/storage"
)

// Change kinds passed to EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, path string)

// Watch follows the notes root with fsnotify and keeps the index in step with
// notes edited, removed or renamed by hand, until ctx is cancelled. cb (if
// non-nil) runs after each index mutation; rewrites that leave a note's
// checksum unchanged are not reported. The assets directory is ignored.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, rel string) {
		if cb != nil {
			cb(kind, rel)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
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
			reconcile(db, store, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if isAssetsPath(root, absPath) {
						continue
					}
					if addErr := addDirsRecursive(w, root, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					indexNewDir(db, store, root, absPath, logger, notify)
					continue
				}
			}

			rel, ok := noteRel(root, absPath)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					// Already gone again, e.g. an editor swap file dance.
					logger.Debug("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				existed, _ := db.GetChecksum(rel)
				changed, idxErr := db.IndexFile(rel, data)
				if idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				if !changed {
					continue
				}
				kind := ChangeUpdated
				if existed == "" {
					kind = ChangeCreated
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				notify(kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteNote(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				notify(ChangeDeleted, rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports Rename on the old path only; the new path
				// arrives as Create when it stays under a watched directory.
				if delErr := db.DeleteNote(rel); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					notify(ChangeDeleted, rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries whose files are gone and indexes files
// the index has not seen.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, notify func(kind, rel string)) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if delErr := db.DeleteNote(p); delErr == nil {
			notify(ChangeDeleted, p)
		}
	}

	for p, cs := range disk {
		prev, known := checksums[p]
		if prev == cs {
			continue
		}
		data, readErr := store.Read(p)
		if readErr != nil {
			continue
		}
		changed, idxErr := db.IndexFile(p, data)
		if idxErr != nil || !changed {
			continue
		}
		if known {
			notify(ChangeUpdated, p)
		} else {
			notify(ChangeCreated, p)
		}
	}
}

func indexNewDir(db *DB, store storage.Provider, root, dirPath string, logger *slog.Logger, notify func(kind, rel string)) {
	_ = filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, ok := noteRel(root, p)
		if !ok {
			return nil
		}
		data, readErr := store.Read(rel)
		if readErr != nil {
			return nil
		}
		if changed, idxErr := db.IndexFile(rel, data); idxErr == nil && changed {
			logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			notify(ChangeCreated, rel)
		}
		return nil
	})
}

// noteRel maps an absolute path to a slash-separated note path, rejecting
// non-notes, dotfiles and anything under the assets directory.
func noteRel(root, absPath string) (string, bool) {
	if !strings.HasSuffix(absPath, ".md") || strings.HasPrefix(filepath.Base(absPath), ".") {
		return "", false
	}
	rel, err := filepath.Rel(root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if isAssetsPath(root, absPath) {
		return "", false
	}
	return rel, true
}

func isAssetsPath(root, absPath string) bool {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel == storage.AssetsDir || strings.HasPrefix(rel, storage.AssetsDir+"/")
}

// addDirsRecursive adds dir and its subdirectories to the watcher, skipping
// the assets directory of root.
func addDirsRecursive(w *fsnotify.Watcher, root, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if isAssetsPath(root, p) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
