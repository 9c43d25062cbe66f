// Package photostore keeps the reference photo of every registered client so encodings can be
// recomputed when the encoder changes.
package photostore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-signin/internal/facematch"
)

// ErrNotFound is returned when no photo is stored for the client.
var ErrNotFound = errors.New("photo not found")

// Store persists one profile photo per client.
type Store interface {
	Put(ctx context.Context, id facematch.Identity, photo []byte) error
	Get(ctx context.Context, id facematch.Identity) ([]byte, error)
	Delete(ctx context.Context, id facematch.Identity) error
}

// Key returns the object key of a client's photo.
func Key(id facematch.Identity) string {
	return fmt.Sprintf("faces/%s.jpg", id)
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	photos map[facematch.Identity][]byte

	PutError    error
	DeleteError error
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory photo store.
func NewMemory() *Memory {
	return &Memory{photos: make(map[facematch.Identity][]byte)}
}

func (m *Memory) Put(ctx context.Context, id facematch.Identity, photo []byte) error {
	if m.PutError != nil {
		return m.PutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[id] = append([]byte(nil), photo...)
	return nil
}

func (m *Memory) Get(ctx context.Context, id facematch.Identity) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	photo, ok := m.photos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), photo...), nil
}

func (m *Memory) Delete(ctx context.Context, id facematch.Identity) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.photos, id)
	return nil
}
