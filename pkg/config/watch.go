package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceWindow coalesces the write bursts editors produce when saving.
const debounceWindow = 250 * time.Millisecond

// Watcher reloads the config file on change and hands the parsed result to
// a callback. Open sessions use it to retune poll intervals without a
// restart. A reload that fails to parse is logged and dropped; the previous
// config stays in effect.
type Watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
}

// Watch starts watching path. onChange runs on the watcher goroutine.
func Watch(path string, log zerolog.Logger, onChange func(*Config)) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors replace the file on save,
	// which would drop a direct file watch.
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, err
	}

	log = log.With().Str("component", "config_watcher").Str("path", path).Logger()
	w := &Watcher{fs: fs, done: make(chan struct{})}
	go w.run(path, log, onChange)
	return w, nil
}

func (w *Watcher) run(path string, log zerolog.Logger, onChange func(*Config)) {
	defer close(w.done)
	var pending <-chan time.Time
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(debounceWindow)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watch error")
		case <-pending:
			pending = nil
			cfg, err := Load(path)
			if err != nil {
				log.Warn().Err(err).Msg("Config reload failed, keeping previous config")
				continue
			}
			log.Info().Msg("Config reloaded")
			onChange(cfg)
		}
	}
}

// Close stops the watcher and waits for the goroutine to exit.
func (w *Watcher) Close() error {
	err := w.fs.Close()
	<-w.done
	return err
}
