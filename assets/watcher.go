// Package assets loads the render core's on-disk inputs (compiled UI
// shaders, font binaries) and, in development builds, watches them for
// changes. Grounded on engine/assets/assets.go's fsnotify.Watcher +
// channel-fan-out pattern, generalized from its generic multi-type
// asset index to the two things this render core hot-reloads: fonts
// and shaders.
package assets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/basalt/core"
)

// Watcher emits a notification whenever a font or shader file under its
// watched directory changes on disk. Gated on config.Config.Dev by the
// caller; production builds never construct one.
type Watcher struct {
	fsw     *fsnotify.Watcher
	fonts   chan string
	shaders chan string
	done    chan struct{}
}

// NewWatcher starts watching dir (and its subdirectories) for font and
// shader file changes.
func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		fonts:   make(chan string, 16),
		shaders: make(chan string, 16),
		done:    make(chan struct{}),
	}

	if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fsw.Add(path)
		}
		return nil
	}); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Fonts emits the path of a font binary (.ttf/.otf/.fnt) each time one
// is created or modified.
func (w *Watcher) Fonts() <-chan string { return w.fonts }

// Shaders emits the path of a compiled SPIR-V shader (.spv) each time
// one is created or modified, so a host can recompile its task graph
// from the new bytes.
func (w *Watcher) Shaders() <-chan string { return w.shaders }

func (w *Watcher) Close() {
	close(w.done)
}

func (w *Watcher) run() {
	defer w.fsw.Close()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.dispatch(ev.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) dispatch(path string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttf", ".otf", ".fnt":
		select {
		case w.fonts <- path:
		default:
			core.LogWarn("asset watcher: dropped font reload for %s, channel full", path)
		}
	case ".spv":
		select {
		case w.shaders <- path:
		default:
			core.LogWarn("asset watcher: dropped shader reload for %s, channel full", path)
		}
	}
}
