package todo

import (
	"context"
	"sort"
	"sync"
	"time"

	"todopad.org/internal/ids"
)

// Service defines the persistence operations behind the HTTP handlers.
// Ownership scoping is part of the contract: todo lookups always take the
// owner id, and a todo belonging to a different owner behaves as absent.
type Service interface {
	CreateUser(ctx context.Context, id string, input UserInput) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) (User, error)
	DeleteUser(ctx context.Context, id string) error

	CreateTodos(ctx context.Context, ownerID string, inputs []TodoInput) ([]Todo, error)
	ListTodos(ctx context.Context, ownerID string) ([]Todo, error)
	UpdateTodo(ctx context.Context, ownerID, todoID string, patch TodoPatch) (Todo, error)
	DeleteTodo(ctx context.Context, ownerID, todoID string) error
}

// InMemory implements Service with in-process concurrency safety.
// Used by the httpapi tests; production runs on the pg store.
type InMemory struct {
	mu    sync.RWMutex
	users map[string]*User
	todos map[string]*Todo // todo id -> todo
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		users: make(map[string]*User),
		todos: make(map[string]*Todo),
	}
}

func (s *InMemory) CreateUser(ctx context.Context, id string, input UserInput) (User, error) {
	if id == "" || input.Name == "" || input.Email == "" {
		return User{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; ok {
		return User{}, ErrConflict
	}
	for _, u := range s.users {
		if u.Email == input.Email {
			return User{}, ErrConflict
		}
	}
	now := time.Now().UTC()
	u := &User{ID: id, Name: input.Name, Email: input.Email, CreatedAt: now, UpdatedAt: now}
	s.users[id] = u
	return *u, nil
}

func (s *InMemory) GetUser(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (s *InMemory) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) UpdateUser(ctx context.Context, id string, patch UserPatch) (User, error) {
	if patch.IsEmpty() {
		return User{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if patch.Email != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Email == *patch.Email {
				return User{}, ErrConflict
			}
		}
		u.Email = *patch.Email
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	u.UpdatedAt = time.Now().UTC()
	return *u, nil
}

func (s *InMemory) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	for todoID, t := range s.todos {
		if t.OwnerID == id {
			delete(s.todos, todoID)
		}
	}
	return nil
}

func (s *InMemory) CreateTodos(ctx context.Context, ownerID string, inputs []TodoInput) ([]Todo, error) {
	if len(inputs) == 0 {
		return nil, ErrInvalidInput
	}
	for _, in := range inputs {
		if in.Title == "" {
			return nil, ErrInvalidInput
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[ownerID]; !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	out := make([]Todo, 0, len(inputs))
	for _, in := range inputs {
		t := &Todo{
			ID:        ids.New(),
			OwnerID:   ownerID,
			Title:     in.Title,
			Done:      in.Done,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.todos[t.ID] = t
		out = append(out, *t)
	}
	return out, nil
}

func (s *InMemory) ListTodos(ctx context.Context, ownerID string) ([]Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[ownerID]; !ok {
		return nil, ErrNotFound
	}
	var out []Todo
	for _, t := range s.todos {
		if t.OwnerID == ownerID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if out == nil {
		out = []Todo{}
	}
	return out, nil
}

func (s *InMemory) UpdateTodo(ctx context.Context, ownerID, todoID string, patch TodoPatch) (Todo, error) {
	if patch.IsEmpty() {
		return Todo{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[todoID]
	if !ok || t.OwnerID != ownerID {
		return Todo{}, ErrNotFound
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Done != nil {
		t.Done = *patch.Done
	}
	t.UpdatedAt = time.Now().UTC()
	return *t, nil
}

func (s *InMemory) DeleteTodo(ctx context.Context, ownerID, todoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[todoID]
	if !ok || t.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.todos, todoID)
	return nil
}
