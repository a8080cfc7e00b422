package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps logs in process memory. Used in tests and for
// throwaway servers.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rooms  map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string][]Record),
	}
}

func (m *MemoryStore) Append(ctx context.Context, roomID, userID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rooms[roomID] = append(m.rooms[roomID], Record{
		ID:        m.nextID,
		RoomID:    roomID,
		Message:   message,
		UserID:    userID,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *MemoryStore) List(ctx context.Context, roomID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]Record, len(m.rooms[roomID]))
	copy(records, m.rooms[roomID])
	return records, nil
}

func (m *MemoryStore) Purge(ctx context.Context, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
