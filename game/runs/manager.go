package runs

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/pushmo/game/service"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrInvalidRunID = errors.New("invalid run ID")
)

// Manager handles run storage
type Manager struct {
	runs        map[string]*service.Run
	persistence RunPersistence
	mu          sync.RWMutex
}

// NewManager creates an in-memory run manager
func NewManager() *Manager {
	return &Manager{
		runs: make(map[string]*service.Run),
	}
}

// NewManagerWithPersistence creates a run manager that writes through to persistence
func NewManagerWithPersistence(persistence RunPersistence) *Manager {
	return &Manager{
		runs:        make(map[string]*service.Run),
		persistence: persistence,
	}
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// Save stores a run, assigning an ID when it has none. IDs are stored lower
// case. A run is only cached once it has been persisted.
func (m *Manager) Save(run *service.Run) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if !validID(run.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, run.ID)
	}
	run.ID = strings.ToLower(run.ID)
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	if m.persistence != nil {
		if err := m.persistence.Save(run); err != nil {
			return fmt.Errorf("failed to persist run %s: %w", run.ID, err)
		}
	}

	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()
	return nil
}

// Get retrieves a run by ID (case-insensitive), falling back to persistence
func (m *Manager) Get(id string) (*service.Run, error) {
	id = strings.ToLower(id)

	m.mu.RLock()
	run, exists := m.runs[id]
	m.mu.RUnlock()

	if exists {
		return run, nil
	}

	if m.persistence != nil && validID(id) && m.persistence.Exists(id) {
		run, err := m.persistence.Load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted run: %w", err)
		}

		m.mu.Lock()
		m.runs[id] = run
		m.mu.Unlock()

		return run, nil
	}

	return nil, ErrRunNotFound
}

// List returns all runs in memory, newest first
func (m *Manager) List() []*service.Run {
	m.mu.RLock()
	result := make([]*service.Run, 0, len(m.runs))
	for _, run := range m.runs {
		result = append(result, run)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Delete removes a run from memory and persistence
func (m *Manager) Delete(id string) error {
	id = strings.ToLower(id)

	m.mu.Lock()
	_, inMemory := m.runs[id]
	delete(m.runs, id)
	m.mu.Unlock()

	if m.persistence != nil && validID(id) && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted run: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrRunNotFound
	}
	return nil
}

// CleanupExpiredRuns drops runs older than maxAge from memory and returns
// how many were removed. Persisted copies are kept.
func (m *Manager) CleanupExpiredRuns(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, run := range m.runs {
		if run.CreatedAt.Before(cutoff) {
			delete(m.runs, id)
			removed++
		}
	}

	return removed
}

// Count returns the number of runs in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// LoadPersistedRuns loads all persisted runs into memory
func (m *Manager) LoadPersistedRuns() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted runs: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if _, exists := m.runs[strings.ToLower(id)]; exists {
			continue
		}

		run, err := m.persistence.Load(id)
		if err != nil {
			log.Printf("Warning: Failed to load persisted run %s: %v", id, err)
			continue
		}

		m.runs[strings.ToLower(id)] = run
		loaded++
	}

	if loaded > 0 {
		log.Printf("Loaded %d persisted runs from storage", loaded)
	}
	return nil
}

// validID accepts identifiers safe to use as file names
func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
