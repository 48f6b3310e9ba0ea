package todo

import (
	"errors"
	"time"
)

// User is a profile owned by an authenticated subject. The ID is the
// subject claim of the identity provider token (opaque, e.g. "auth0|5f4e...").
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Todo is a single todo item. OwnerID always references an existing user.
type Todo struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TodoInput is the payload for creating a todo.
type TodoInput struct {
	Title string `json:"title" validate:"required"`
	Done  bool   `json:"done"`
}

// UserInput is the payload for creating a user profile.
type UserInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// UserPatch carries a partial user update; nil fields are untouched.
type UserPatch struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool { return p.Name == nil && p.Email == nil }

// TodoPatch carries a partial todo update; nil fields are untouched.
type TodoPatch struct {
	Title *string `json:"title" validate:"omitempty,min=1"`
	Done  *bool   `json:"done"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TodoPatch) IsEmpty() bool { return p.Title == nil && p.Done == nil }

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrInvalidInput = errors.New("invalid input")
)
