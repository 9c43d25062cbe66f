// Package memory provides an in-memory registry.Store for tests and single-node demos.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-signin/internal/facematch"
	"github.com/kozaktomas/face-signin/internal/registry"
)

// Store keeps clients in insertion order. Insertion order is registration order.
type Store struct {
	mu        sync.RWMutex
	order     []facematch.Identity
	clients   map[facematch.Identity]*registry.Client
	encodings map[facematch.Identity]facematch.Encoding
	tasks     map[facematch.Identity][]registry.Task
	now       func() time.Time

	// Error injection
	GalleryError      error
	SaveEncodingError error
	CreateClientError error
	GetClientError    error
	ListClientsError  error
	UpdateStatusError error
	DeleteClientError error
	TaskError         error
}

var _ registry.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		clients:   make(map[facematch.Identity]*registry.Client),
		encodings: make(map[facematch.Identity]facematch.Encoding),
		tasks:     make(map[facematch.Identity][]registry.Task),
		now:       time.Now,
	}
}

// Gallery returns encodings of the given kind in registration order.
func (s *Store) Gallery(ctx context.Context, kind facematch.Kind) ([]facematch.GalleryEntry, error) {
	if s.GalleryError != nil {
		return nil, s.GalleryError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	gallery := make([]facematch.GalleryEntry, 0, len(s.encodings))
	for _, id := range s.order {
		enc, ok := s.encodings[id]
		if !ok || enc.Kind != kind {
			continue
		}
		gallery = append(gallery, facematch.GalleryEntry{
			Identity: id,
			Encoding: facematch.Encoding{Kind: enc.Kind, Values: append([]float64(nil), enc.Values...)},
		})
	}
	return gallery, nil
}

// SaveEncoding stores the encoding for an existing client.
func (s *Store) SaveEncoding(ctx context.Context, id facematch.Identity, enc facematch.Encoding) error {
	if s.SaveEncodingError != nil {
		return s.SaveEncodingError
	}
	if err := enc.Validate(); err != nil {
		return fmt.Errorf("invalid encoding for %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return registry.ErrClientNotFound
	}
	s.encodings[id] = facematch.Encoding{Kind: enc.Kind, Values: append([]float64(nil), enc.Values...)}
	return nil
}

// Encoding returns the stored encoding for a client.
func (s *Store) Encoding(id facematch.Identity) (facematch.Encoding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc, ok := s.encodings[id]
	return enc, ok
}

// CreateClient stores a new client.
func (s *Store) CreateClient(ctx context.Context, c *registry.Client) error {
	if s.CreateClientError != nil {
		return s.CreateClientError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Email != "" {
		for _, existing := range s.clients {
			if strings.EqualFold(existing.Email, c.Email) {
				return registry.ErrEmailTaken
			}
		}
	}
	if c.ID == "" {
		c.ID = facematch.Identity(uuid.NewString())
	}
	if _, ok := s.clients[c.ID]; ok {
		return fmt.Errorf("client %s already exists", c.ID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	if c.Status == nil {
		c.Status = registry.DefaultStatus()
	}

	stored := *c
	stored.Status = registry.CopyStatus(c.Status)
	s.clients[c.ID] = &stored
	s.order = append(s.order, c.ID)
	return nil
}

// GetClient retrieves a client by identity.
func (s *Store) GetClient(ctx context.Context, id facematch.Identity) (*registry.Client, error) {
	if s.GetClientError != nil {
		return nil, s.GetClientError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, registry.ErrClientNotFound
	}
	return clone(c), nil
}

// ListClients returns all clients in registration order.
func (s *Store) ListClients(ctx context.Context) ([]registry.Client, error) {
	return s.filter(func(*registry.Client) bool { return true })
}

// SearchClients returns clients whose name matches, ignoring case and diacritics.
func (s *Store) SearchClients(ctx context.Context, name string) ([]registry.Client, error) {
	return s.filter(func(c *registry.Client) bool { return c.MatchesName(name) })
}

func (s *Store) filter(keep func(*registry.Client) bool) ([]registry.Client, error) {
	if s.ListClientsError != nil {
		return nil, s.ListClientsError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []registry.Client
	for _, id := range s.order {
		if c := s.clients[id]; keep(c) {
			out = append(out, *clone(c))
		}
	}
	return out, nil
}

// UpdateStatus merges the given flags into the client's status map.
func (s *Store) UpdateStatus(ctx context.Context, id facematch.Identity, status map[string]bool) error {
	if s.UpdateStatusError != nil {
		return s.UpdateStatusError
	}
	if err := registry.ValidateStatus(status); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return registry.ErrClientNotFound
	}
	if c.Status == nil {
		c.Status = make(map[string]bool, len(status))
	}
	for k, v := range status {
		c.Status[k] = v
	}
	return nil
}

// DeleteClient removes a client with its encoding and tasks.
func (s *Store) DeleteClient(ctx context.Context, id facematch.Identity) error {
	if s.DeleteClientError != nil {
		return s.DeleteClientError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return registry.ErrClientNotFound
	}
	delete(s.clients, id)
	delete(s.encodings, id)
	delete(s.tasks, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// AddTask validates and stores a task for an existing client.
func (s *Store) AddTask(ctx context.Context, t *registry.Task) error {
	if s.TaskError != nil {
		return s.TaskError
	}
	if err := t.Normalize(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[t.ClientID]; !ok {
		return registry.ErrClientNotFound
	}
	t.ID = uuid.NewString()
	t.CreatedAt = s.now().UTC()
	stored := *t
	stored.RepeatDays = append([]string(nil), t.RepeatDays...)
	s.tasks[t.ClientID] = append(s.tasks[t.ClientID], stored)
	return nil
}

// ListTasks returns the client's tasks ordered by date.
func (s *Store) ListTasks(ctx context.Context, clientID facematch.Identity) ([]registry.Task, error) {
	if s.TaskError != nil {
		return nil, s.TaskError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.clients[clientID]; !ok {
		return nil, registry.ErrClientNotFound
	}
	out := make([]registry.Task, 0, len(s.tasks[clientID]))
	for _, t := range s.tasks[clientID] {
		t.RepeatDays = append([]string(nil), t.RepeatDays...)
		out = append(out, t)
	}
	registry.SortTasks(out)
	return out, nil
}

// DeleteTask removes one of the client's tasks.
func (s *Store) DeleteTask(ctx context.Context, clientID facematch.Identity, taskID string) error {
	if s.TaskError != nil {
		return s.TaskError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientID]; !ok {
		return registry.ErrClientNotFound
	}
	tasks := s.tasks[clientID]
	for i, t := range tasks {
		if t.ID == taskID {
			s.tasks[clientID] = append(tasks[:i:i], tasks[i+1:]...)
			return nil
		}
	}
	return registry.ErrTaskNotFound
}

func clone(c *registry.Client) *registry.Client {
	out := *c
	out.Status = registry.CopyStatus(c.Status)
	return &out
}
