package templates

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the templates whenever an .html file in the renderer's
// directory changes. It returns once the watcher is installed and stops
// when ctx is done.
func (r *Renderer) Watch(ctx context.Context, log *slog.Logger) error {
	dir := r.Dir()
	if dir == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Ext(ev.Name) != ".html" || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) {
					continue
				}
				if err := r.Reload(); err != nil {
					log.Warn("template reload failed", "file", ev.Name, "err", err)
					continue
				}
				log.Info("templates reloaded", "file", ev.Name)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("template watcher", "err", err)
			}
		}
	}()
	return nil
}
