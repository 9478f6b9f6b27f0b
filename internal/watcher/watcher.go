// Package watcher reruns work when note files change on disk.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when a non-positive debounce is given.
const DefaultDebounce = 500 * time.Millisecond

// Notes describes the watched directory.
type Notes interface {
	Root() string
	Recursive() bool
	IsNote(name string) bool
}

// ChangeFunc receives the relative paths that changed since the last call.
type ChangeFunc func(ctx context.Context, paths []string)

// Watch starts an fsnotify watcher on the notes root and calls fn once
// events have been quiet for debounce. It blocks until ctx is cancelled.
//
// New directories are added to the watch list when the notes directory
// is scanned recursively.
func Watch(ctx context.Context, notes Notes, debounce time.Duration, logger *slog.Logger, fn ChangeFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := notes.Root()
	if notes.Recursive() {
		err = addDirsRecursive(w, root)
	} else {
		err = w.Add(root)
	}
	if err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root), slog.Duration("debounce", debounce))

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		pending = make(map[string]struct{})
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			timer, timerCh = nil, nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			logger.Debug("watcher: changes settled", slog.Int("paths", len(paths)))
			fn(ctx, paths)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 && notes.Recursive() {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !notes.IsNote(ev.Name) || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			pending[filepath.ToSlash(rel)] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
