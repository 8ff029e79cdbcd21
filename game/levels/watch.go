package levels

import (
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 100 * time.Millisecond

// Watcher reports level files that were written, created, renamed or removed
type Watcher struct {
	watcher *fsnotify.Watcher
	Events  chan string
	Errors  chan error
	closeCh chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewWatcher watches the given directories
func NewWatcher(dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher: w,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

// Close stops the watcher and closes its channels
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.stopped
		close(w.Events)
		close(w.Errors)
	})
	return err
}

// run coalesces bursts: a path is reported once no further event for it has
// arrived for the debounce interval.
func (w *Watcher) run() {
	defer close(w.stopped)
	pending := make(map[string]time.Time)
	var fire <-chan time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !IsLevelFile(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()
			if fire == nil {
				fire = time.After(debounce)
			}
		case <-fire:
			fire = nil
			now := time.Now()
			var next time.Duration
			for _, path := range sortedPaths(pending) {
				if wait := debounce - now.Sub(pending[path]); wait > 0 {
					if next == 0 || wait < next {
						next = wait
					}
					continue
				}
				delete(pending, path)
				select {
				case w.Events <- path:
				case <-w.closeCh:
					return
				}
			}
			if next > 0 {
				fire = time.After(next)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}

func sortedPaths(pending map[string]time.Time) []string {
	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
