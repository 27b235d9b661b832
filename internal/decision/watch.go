package decision

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watcher wakes on writes to the decisions directory, letting Await
// react to an answer immediately instead of waiting for its next poll
// tick. It is an optimization layered on top of Await's polling loop,
// not a replacement for it — Await still works correctly with no
// Watcher running at all.
type Watcher struct {
	w *fsnotify.Watcher
}

// NewWatcher starts watching dir for writes.
func NewWatcher(dir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("decision: new watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("decision: watch %s: %w", dir, err)
	}
	return &Watcher{w: w}, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.w.Close()
}

// Changed returns a channel that receives the affected decision id
// whenever a record file is written or renamed into place.
func (w *Watcher) Changed(ctx context.Context) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				id := idFromPath(ev.Name)
				if id == "" {
					continue
				}
				select {
				case out <- id:
				case <-ctx.Done():
					return
				}
			case _, ok := <-w.w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out
}

func idFromPath(path string) string {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			base = path[i+1:]
			break
		}
	}
	const ext = ".json"
	if len(base) <= len(ext) || base[len(base)-len(ext):] != ext {
		return ""
	}
	return base[:len(base)-len(ext)]
}
