package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"tallybook/internal/bootstrap/logging"
	"tallybook/internal/domain/ledger"
	"tallybook/internal/errs"
)

// Watch reloads the registry whenever its engines file changes on disk, so a
// runtime toggle takes effect without a restart. It returns a stop function;
// watch failures after startup are logged, never fatal, and a bad edit keeps
// the previous set in force.
func (r *Registry) Watch(ctx context.Context) (func(), error) {
	if r.path == "" {
		return nil, fmt.Errorf("%w: registry was not loaded from a file", ledger.ErrConfiguration)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Wrap(err, "create engines file watcher")
	}

	// Watch the directory: editors replace files, which drops a watch on the
	// file itself.
	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, errs.Wrapf(err, "watch engines directory %q", dir)
	}

	target := filepath.Clean(r.path)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := r.Reload(ctx); err != nil {
					logging.Warn(ctx, "engines file reload failed, keeping previous set",
						slog.String("file", r.path),
						slog.Any("err", errs.Loggable(err)))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn(ctx, "engines file watcher error",
					slog.Any("err", errs.Loggable(err)))
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
