package scene

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type ChangeOp int

const (
	OpCreate ChangeOp = iota
	OpWrite
	OpRemove
	OpRename
)

func (op ChangeOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one settled file change under the project directory
type Change struct {
	Path string
	Op   ChangeOp
}

// Watcher reports batches of project file changes once no further change
// has arrived for the debounce window. Only YAML files are reported.
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func([]Change)
	logger   *zap.Logger

	fsw      *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewWatcher(root string, debounce time.Duration, onChange func([]Change), logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		onChange: onChange,
		logger:   logger.Named("watch"),
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start watches root and its subdirectories until ctx ends or Stop is called
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	if err != nil {
		w.fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop ends watching and waits for the event loop to exit. Pending changes
// are dropped. Must not be called from the onChange callback.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.fsw.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var (
		pending = make(map[string]ChangeOp)
		order   []string
		timer   *time.Timer
		timerC  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if isDir(event.Name) {
					w.watchDir(event.Name)
					continue
				}
			}
			if !strings.HasSuffix(event.Name, ".yaml") {
				continue
			}

			if _, seen := pending[event.Name]; !seen {
				order = append(order, event.Name)
			}
			pending[event.Name] = convertOp(event.Op)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil

			changes := make([]Change, 0, len(order))
			for _, path := range order {
				changes = append(changes, Change{Path: path, Op: pending[path]})
			}
			clear(pending)
			order = order[:0]

			w.logger.Debug("Project files changed", zap.Int("files", len(changes)))
			if w.onChange != nil {
				w.onChange(changes)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watch error", zap.Error(err))
		}
	}
}

func convertOp(op fsnotify.Op) ChangeOp {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

// watchDir adds a directory created after Start. A failure leaves the
// directory unwatched and is logged.
func (w *Watcher) watchDir(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		w.logger.Warn("Failed to watch new directory",
			zap.String("dir", dir),
			zap.Error(err))
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
