package storage

import (
	"context"
	"sync"

	"github.com/example/shelter-matching/internal/models"
)

// MemoryStore implements ShelterStore and ProfileStore in process.
// Shelters are listed in first-insert order.
type MemoryStore struct {
	mu       sync.RWMutex
	order    []string
	shelters map[string]models.ShelterCandidate
	profiles map[string]models.UserProfile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shelters: make(map[string]models.ShelterCandidate),
		profiles: make(map[string]models.UserProfile),
	}
}

func (m *MemoryStore) ListShelters(ctx context.Context) ([]models.ShelterCandidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ShelterCandidate, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.shelters[id])
	}
	return out, nil
}

func (m *MemoryStore) GetShelter(ctx context.Context, id string) (models.ShelterCandidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shelters[id]
	if !ok {
		return models.ShelterCandidate{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) UpsertShelter(ctx context.Context, s models.ShelterCandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shelters[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	m.shelters[s.ID] = s
	return nil
}

func (m *MemoryStore) SaveProfile(ctx context.Context, userID string, p models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = p
	return nil
}

func (m *MemoryStore) LoadProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return models.UserProfile{}, ErrNotFound
	}
	return p, nil
}
