// Package watch re-runs a callback when watched files change on disk.
package watch

import (
	"context"
	"net/url"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultDebounce is used when no debounce interval is configured.
const DefaultDebounce = 500 * time.Millisecond

// Watcher collects change events for a fixed set of files and delivers them in
// debounced batches.
type Watcher struct {
	fs       *fsnotify.Watcher
	targets  map[string]bool
	debounce time.Duration
}

// New starts watching paths. Parent directories are watched rather than the
// files themselves so that editors replacing a file on save are still seen.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, eris.New("watch: no paths to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "watch: create watcher")
	}
	w := &Watcher{fs: fw, targets: make(map[string]bool, len(paths)), debounce: debounce}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "watch: resolve %s", p)
		}
		w.targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			fw.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "watch: add %s", d)
		}
	}
	return w, nil
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run blocks until ctx is cancelled, calling onChange with the sorted set of
// changed files once no further events arrive for the debounce interval.
// Callbacks run on the Run goroutine, one at a time; a returned error is
// logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string) error) error {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]struct{})
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || !w.targets[name] {
				continue
			}
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)

			zap.L().Info("watch: change detected", zap.Strings("files", changed))
			if err := onChange(ctx, changed); err != nil {
				zap.L().Error("watch: callback failed", zap.Error(err))
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("watch: watcher error", zap.Error(err))
		}
	}
}

// LocalPaths drops remote locations (anything with a URL scheme) and empty
// entries.
func LocalPaths(locations ...string) []string {
	var out []string
	for _, loc := range locations {
		if loc == "" {
			continue
		}
		if u, err := url.Parse(loc); err == nil && len(u.Scheme) > 1 {
			continue
		}
		out = append(out, loc)
	}
	return out
}
