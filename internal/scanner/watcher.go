package scanner

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opencmr/dicomdir/internal/catalog"
)

// Watcher watches a scan root and re-runs a full scan after changes settle.
// Scans stay full re-scans by design: the catalog is rebuilt from scratch,
// there is no incremental diffing.
type Watcher struct {
	root     string
	opts     Options
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onScan   func(*catalog.Catalog, Stats)
	onError  func(error)
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher over root. onScan receives every successful
// rescan result; onError receives rescan failures (including fatal invariant
// violations, which do not stop the watcher).
func NewWatcher(root string, opts Options, onScan func(*catalog.Catalog, Stats), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		opts:     opts,
		watcher:  fsw,
		debounce: 500 * time.Millisecond,
		onScan:   onScan,
		onError:  onError,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if err := w.addDirectoriesRecursively(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the watcher and waits for the event loop to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.watcher.Close()
	})
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// New directories need to join the watch before their files do.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addDirectoriesRecursively(event.Name); err != nil {
						log.Printf("Warning: failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}

			if debounceTimer != nil {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
			}
			debounceTimer = time.NewTimer(w.debounce)
			timerC = debounceTimer.C

		case <-timerC:
			timerC = nil
			w.rescan(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Warning: watch error: %v", err)
		}
	}
}

func (w *Watcher) rescan(ctx context.Context) {
	cat, stats, err := Scan(ctx, w.root, w.opts)
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	if w.onScan != nil {
		w.onScan(cat, stats)
	}
}

func (w *Watcher) addDirectoriesRecursively(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}
