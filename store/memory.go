package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps profiles in a mutex-guarded map. Used in tests and when
// running without a database path.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]Profile
	byUsername map[string]string // username -> id
}

// NewMemoryStore returns an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]Profile),
		byUsername: make(map[string]string),
	}
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) GetOrCreateByUsername(ctx context.Context, username string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byUsername[username]; ok {
		return m.byID[id], nil
	}

	p := Profile{
		ID:       uuid.NewString(),
		Username: username,
		Rating:   DefaultRating,
	}
	m.byID[p.ID] = p
	m.byUsername[p.Username] = p.ID
	return p, nil
}

func (m *MemoryStore) UpdateRating(ctx context.Context, id string, rating int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Rating = rating
	m.byID[id] = p
	return nil
}

func (m *MemoryStore) Leaderboard(ctx context.Context, limit int) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	profiles := make([]Profile, 0, len(m.byID))
	for _, p := range m.byID {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Rating != profiles[j].Rating {
			return profiles[i].Rating > profiles[j].Rating
		}
		return profiles[i].Username < profiles[j].Username
	})
	if len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles, nil
}

var _ ProfileStore = (*MemoryStore)(nil)
