package memory

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/abdul-hamid-achik/codebridge/internal/logging"
)

// Manager hands out one Store per project root and keeps it open for the
// process lifetime.
type Manager struct {
	mu     sync.Mutex
	stores map[string]*Store
	open   func(root string) (*Store, error)
	log    *logging.Logger
}

// NewManager creates an empty store cache.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		stores: make(map[string]*Store),
		open:   Open,
		log:    log.WithPrefix("memory"),
	}
}

// Store returns the store for root, opening it on first use. Concurrent
// callers for the same root share a single Store.
func (m *Manager) Store(root string) (*Store, error) {
	key := filepath.Clean(root)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[key]; ok {
		return s, nil
	}
	s, err := m.open(key)
	if err != nil {
		return nil, err
	}
	m.stores[key] = s
	m.log.Info("memory store ready", logging.F("path", s.Path()))
	return s, nil
}

// Close closes every open store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for key, s := range m.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(m.stores, key)
	}
	return errors.Join(errs...)
}
