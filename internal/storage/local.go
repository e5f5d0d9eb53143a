package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/desertthunder/manhwatrack/internal/shared"
)

type localDocument struct {
	Entries map[string]string `toml:"entries"`
}

// Local is a [Store] persisted to a TOML file. Every write rewrites the file.
//
// A missing or unreadable file loads as empty.
type Local struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// OpenLocal loads the store at path ("~" is expanded).
func OpenLocal(path string) *Local {
	l := &Local{path: shared.ExpandPath(path), values: make(map[string]string)}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return l
	}

	var doc localDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return l
	}
	for k, v := range doc.Entries {
		l.values[k] = v
	}
	return l
}

// Path returns the backing file.
func (l *Local) Path() string { return l.path }

func (l *Local) Get(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.values[key]
	return v, ok
}

func (l *Local) Set(key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev, had := l.values[key]
	l.values[key] = value
	if err := l.flush(); err != nil {
		if had {
			l.values[key] = prev
		} else {
			delete(l.values, key)
		}
		return err
	}
	return nil
}

func (l *Local) Remove(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.values[key]; !ok {
		return nil
	}
	delete(l.values, key)
	return l.flush()
}

func (l *Local) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.values)
	return l.flush()
}

func (l *Local) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedKeys(l.values)
}

func (l *Local) flush() error {
	data, err := toml.Marshal(localDocument{Entries: l.values})
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write storage: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("write storage: %w", err)
	}
	return nil
}
