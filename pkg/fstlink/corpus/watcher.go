package corpus

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher invalidates resident automata whose files are replaced by
// another process.
type Watcher struct {
	r       *Registry
	watcher *fsnotify.Watcher
	files   map[string]string // absolute file -> language
	log     *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// Watch starts watching the directories of all registered automaton files.
func (r *Registry) Watch() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &Watcher{
		r:       r,
		watcher: fw,
		files:   make(map[string]string),
		log:     r.log.Named("watcher"),
		done:    make(chan struct{}),
	}
	dirs := make(map[string]struct{})
	for _, lang := range r.Languages() {
		info, _ := r.Info(lang)
		abs, err := filepath.Abs(info.File)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = lang
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if lang, ok := w.files[abs]; ok {
				w.r.Invalidate(lang)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", zap.Error(err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
