package levels

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/pushmo/game/engine"
	"github.com/wricardo/mcp-training/pushmo/game/service"
)

var (
	ErrLevelNotFound = errors.New("level not found")
	ErrInvalidLevel  = errors.New("invalid level")
)

// Manager handles level loading and caching
type Manager struct {
	levelDir string
	levels   map[string]*engine.Level
	mu       sync.RWMutex

	watcher *Watcher
	done    chan struct{}
}

// NewManager creates a new level manager
func NewManager(levelDir string) (*Manager, error) {
	if _, err := os.Stat(levelDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("level directory does not exist: %s", levelDir)
	}

	return &Manager{
		levelDir: levelDir,
		levels:   make(map[string]*engine.Level),
	}, nil
}

// Dir returns the directory levels are read from
func (m *Manager) Dir() string {
	return m.levelDir
}

// LoadLevel loads a level by name. The name may carry its extension.
func (m *Manager) LoadLevel(name string) (*engine.Level, error) {
	id := trimExt(name)

	m.mu.RLock()
	if level, exists := m.levels[id]; exists {
		m.mu.RUnlock()
		return level, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if level, exists := m.levels[id]; exists {
		return level, nil
	}

	path, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	level, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	m.levels[id] = level
	return level, nil
}

// resolve finds the file backing name
func (m *Manager) resolve(name string) (string, error) {
	if filepath.Base(name) != name || name == "" || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrLevelNotFound, name)
	}

	if IsLevelFile(name) {
		path := filepath.Join(m.levelDir, name)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrLevelNotFound, name)
		}
		return path, nil
	}

	for _, ext := range Extensions {
		path := filepath.Join(m.levelDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrLevelNotFound, name)
}

// ListLevels returns information about all valid levels, sorted by id.
// Invalid files are skipped.
func (m *Manager) ListLevels() ([]*service.LevelInfo, error) {
	entries, err := os.ReadDir(m.levelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read level directory: %w", err)
	}

	var infos []*service.LevelInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !IsLevelFile(entry.Name()) {
			continue
		}

		id := trimExt(entry.Name())
		if seen[id] {
			continue
		}

		level, err := m.LoadLevel(entry.Name())
		if err != nil {
			log.Printf("Skipping level %s: %v", entry.Name(), err)
			continue
		}
		seen[id] = true

		info := &service.LevelInfo{
			Filename:    entry.Name(),
			LevelID:     id,
			Name:        level.Name,
			Description: level.Description,
			MaxDepth:    level.EffectiveMaxDepth(),
		}
		if board, err := level.Board(); err == nil {
			info.Width = board.Width
			info.Height = board.Height
			info.Segments = len(board.Segments)
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].LevelID < infos[j].LevelID
	})
	return infos, nil
}

// SaveLevel validates level and writes it as JSON
func (m *Manager) SaveLevel(name string, level *engine.Level) error {
	if err := engine.ValidateLevel(level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}

	id := trimExt(name)
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: bad level name %q", ErrInvalidLevel, name)
	}

	data, err := json.MarshalIndent(level, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal level: %w", err)
	}

	path := filepath.Join(m.levelDir, id+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write level file: %w", err)
	}

	m.mu.Lock()
	m.levels[id] = level
	m.mu.Unlock()

	return nil
}

// Invalidate drops the cached copy of a level
func (m *Manager) Invalidate(name string) {
	m.mu.Lock()
	delete(m.levels, trimExt(name))
	m.mu.Unlock()
}

// RefreshCache clears all cached levels
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.levels = make(map[string]*engine.Level)
	m.mu.Unlock()
}

// Watch invalidates cached levels as their files change. It returns once the
// watcher is running; Close stops it.
func (m *Manager) Watch() error {
	w, err := NewWatcher(m.levelDir)
	if err != nil {
		return fmt.Errorf("failed to watch level directory: %w", err)
	}

	m.mu.Lock()
	m.watcher = w
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		for {
			select {
			case path, ok := <-w.Events:
				if !ok {
					return
				}
				log.Printf("Level file changed: %s", filepath.Base(path))
				m.Invalidate(filepath.Base(path))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.handleWatchError(err)
			}
		}
	}()
	return nil
}

// handleWatchError drops the whole cache: after a watcher error, such as an
// event queue overflow, changes may have gone unreported.
func (m *Manager) handleWatchError(err error) {
	log.Printf("Level watcher error, clearing level cache: %v", err)
	m.RefreshCache()
}

// Close stops the watcher if one is running
func (m *Manager) Close() error {
	m.mu.Lock()
	w, done := m.watcher, m.done
	m.watcher = nil
	m.mu.Unlock()

	if w == nil {
		return nil
	}
	err := w.Close()
	<-done
	return err
}
