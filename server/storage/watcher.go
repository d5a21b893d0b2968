package storage

import (
	"errors"
	"path"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/printbed/vitrine/server/core"
)

// Watcher reports mesh files that appear or change under the mesh directory
// of a disk volume, so their previews can be queued without an explicit
// request.
type Watcher struct {
	volume   *DiskVolume
	fsnotify *fsnotify.Watcher
	onMesh   func(logicalPath string)
	done     chan struct{}
	isClosed bool
}

// NewWatcher watches the given logical directory of the volume. onMesh is
// invoked with the logical path of every created or rewritten ".stl" file.
func NewWatcher(volume *DiskVolume, dir string, onMesh func(string)) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		volume:   volume,
		fsnotify: fsWatch,
		onMesh:   onMesh,
		done:     make(chan struct{}),
	}

	full, err := volume.resolve(dir)
	if err != nil {
		w.fsnotify.Close()
		return nil, err
	}
	if err := w.fsnotify.Add(full); err != nil {
		w.fsnotify.Close()
		return nil, err
	}

	go w.start(dir)

	return w, nil
}

func (w *Watcher) start(dir string) {
	for {
		select {
		case event, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			name := path.Base(strings.ReplaceAll(event.Name, "\\", "/"))
			if !strings.EqualFold(path.Ext(name), ".stl") {
				continue
			}
			core.LogDebug("watcher: mesh changed: %s", name)
			w.onMesh(path.Join(dir, name))
		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("watcher: %s", err.Error())
		case <-w.done:
			return
		}
	}
}

// Close stops watching. Safe to call once.
func (w *Watcher) Close() error {
	if w.isClosed {
		return errors.New("watcher already closed")
	}
	w.isClosed = true
	close(w.done)
	return w.fsnotify.Close()
}
