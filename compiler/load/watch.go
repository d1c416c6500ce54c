package load

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces editor write bursts into one notification.
const watchDebounce = 250 * time.Millisecond

// Watch observes the given schema files and directories and invokes fn
// with the batch of changed paths after each burst of writes. It
// blocks until the context is canceled or the watcher fails.
func Watch(ctx context.Context, paths []string, fn func(changed []string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("icetype/load: watcher: %w", err)
	}
	defer w.Close()
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			return fmt.Errorf("icetype/load: watch %s: %w", p, err)
		}
	}

	var (
		pending []string
		timer   = time.NewTimer(watchDebounce)
	)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(ev) {
				continue
			}
			pending = append(pending, ev.Name)
			timer.Reset(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("icetype/load: watch: %w", err)
		case <-timer.C:
			if len(pending) > 0 {
				fn(dedupe(pending))
				pending = nil
			}
		}
	}
}

// relevantEvent filters for schema-file content changes.
func relevantEvent(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Rename) && !ev.Op.Has(fsnotify.Remove) {
		return false
	}
	return isSchemaFile(ev.Name)
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
