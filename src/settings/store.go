package settings

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Store owns the settings file and the live record. It is created once
// at startup and passed to whoever needs it.
type Store struct {
	path string

	mu      sync.Mutex
	current Settings
	subs    []func(Settings)

	watcher *fsnotify.Watcher
}

// NewStore loads path, falling back to defaults when the file is
// missing or unreadable. Load problems are logged, never fatal.
func NewStore(path string) *Store {
	return &Store{path: path, current: loadFile(path)}
}

func loadFile(path string) Settings {
	s := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Failed to read settings file: %v (using defaults)", err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		log.Printf("Failed to parse settings file: %v (using defaults)", err)
		return Defaults()
	}
	return s
}

// Path returns the backing file location.
func (st *Store) Path() string { return st.path }

// Current returns a copy of the live record.
func (st *Store) Current() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

// Save validates next and persists it. Validation failures reject the
// save and leave both the file and the live record untouched. A disk
// write failure only logs: the validated record stays live so the app
// keeps the user's choice for this run.
func (st *Store) Save(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	st.mu.Lock()
	changed := next != st.current
	st.current = next
	st.mu.Unlock()

	if err := writeFileAtomic(st.path, next); err != nil {
		log.Printf("Failed to write settings: %v (keeping in-memory values)", err)
	}
	if changed {
		st.notify(next)
	}
	return nil
}

// Update applies mutate to a copy of the current record and saves it.
func (st *Store) Update(mutate func(*Settings)) error {
	st.mu.Lock()
	next := st.current
	st.mu.Unlock()

	mutate(&next)
	return st.Save(next)
}

// Subscribe registers fn to run after every applied change, with the new
// record. Callbacks run synchronously on the mutating goroutine.
func (st *Store) Subscribe(fn func(Settings)) {
	st.mu.Lock()
	st.subs = append(st.subs, fn)
	st.mu.Unlock()
}

func (st *Store) notify(s Settings) {
	st.mu.Lock()
	subs := make([]func(Settings), len(st.subs))
	copy(subs, st.subs)
	st.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// Reload re-reads the file and notifies subscribers when the record
// changed.
func (st *Store) Reload() {
	next := loadFile(st.path)

	st.mu.Lock()
	changed := next != st.current
	st.current = next
	st.mu.Unlock()

	if changed {
		log.Printf("Settings reloaded from %s", st.path)
		st.notify(next)
	}
}

// Watch reloads the store when the settings file is edited externally.
// Save-induced events reload to an identical record and notify nobody.
func (st *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	st.watcher = watcher
	go st.watchLoop(watcher)
	return nil
}

func (st *Store) watchLoop(watcher *fsnotify.Watcher) {
	base := filepath.Base(st.path)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			st.Reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Settings watcher error: %v", err)
		}
	}
}

// Close stops the watcher, if one is running.
func (st *Store) Close() error {
	if st.watcher != nil {
		return st.watcher.Close()
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}
