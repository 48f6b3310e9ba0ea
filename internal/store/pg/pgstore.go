package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/pgconn"

	"todopad.org/internal/ids"
	"todopad.org/internal/todo"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements todo.Service on PostgreSQL. Each call runs in its own
// implicit transaction scope; batch todo creation uses an explicit one.
type Store struct {
	db *sql.DB
}

var _ todo.Service = (*Store)(nil)

// Open connects to PostgreSQL via the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) CreateUser(ctx context.Context, id string, input todo.UserInput) (todo.User, error) {
	if id == "" || input.Name == "" || input.Email == "" {
		return todo.User{}, todo.ErrInvalidInput
	}
	var u todo.User
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, name, email)
		values ($1, $2, $3)
		returning id, name, email, created_at, updated_at
	`, id, input.Name, input.Email)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return todo.User{}, todo.ErrConflict
		}
		return todo.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (todo.User, error) {
	var u todo.User
	err := s.db.QueryRowContext(ctx, `
		select id, name, email, created_at, updated_at from users where id=$1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return todo.User{}, todo.ErrNotFound
	}
	if err != nil {
		return todo.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]todo.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, email, created_at, updated_at from users order by id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []todo.User{}
	for rows.Next() {
		var u todo.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch todo.UserPatch) (todo.User, error) {
	if patch.IsEmpty() {
		return todo.User{}, todo.ErrInvalidInput
	}
	var u todo.User
	row := s.db.QueryRowContext(ctx, `
		update users
		set name = coalesce($2, name),
		    email = coalesce($3, email),
		    updated_at = now()
		where id = $1
		returning id, name, email, created_at, updated_at
	`, id, patch.Name, patch.Email)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return todo.User{}, todo.ErrNotFound
		}
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return todo.User{}, todo.ErrConflict
		}
		return todo.User{}, err
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	// Todos go with the user via on delete cascade.
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return todo.ErrNotFound
	}
	return nil
}

func (s *Store) CreateTodos(ctx context.Context, ownerID string, inputs []todo.TodoInput) ([]todo.Todo, error) {
	if len(inputs) == 0 {
		return nil, todo.ErrInvalidInput
	}
	for _, in := range inputs {
		if in.Title == "" {
			return nil, todo.ErrInvalidInput
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from users where id=$1`, ownerID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, todo.ErrNotFound
		}
		return nil, err
	}

	out := make([]todo.Todo, 0, len(inputs))
	for _, in := range inputs {
		var t todo.Todo
		row := tx.QueryRowContext(ctx, `
			insert into todos (id, owner_id, title, done)
			values ($1, $2, $3, $4)
			returning id, owner_id, title, done, created_at, updated_at
		`, ids.New(), ownerID, in.Title, in.Done)
		if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Done, &t.CreatedAt, &t.UpdatedAt); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return nil, todo.ErrNotFound
			}
			return nil, err
		}
		out = append(out, t)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListTodos(ctx context.Context, ownerID string) ([]todo.Todo, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `select 1 from users where id=$1`, ownerID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, todo.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, owner_id, title, done, created_at, updated_at
		from todos
		where owner_id = $1
		order by id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := []todo.Todo{}
	for rows.Next() {
		var t todo.Todo
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Done, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (s *Store) UpdateTodo(ctx context.Context, ownerID, todoID string, patch todo.TodoPatch) (todo.Todo, error) {
	if patch.IsEmpty() {
		return todo.Todo{}, todo.ErrInvalidInput
	}
	var t todo.Todo
	// The owner filter keeps other users' todos indistinguishable from
	// absent ones.
	row := s.db.QueryRowContext(ctx, `
		update todos
		set title = coalesce($3, title),
		    done = coalesce($4, done),
		    updated_at = now()
		where id = $2 and owner_id = $1
		returning id, owner_id, title, done, created_at, updated_at
	`, ownerID, todoID, patch.Title, patch.Done)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Done, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return todo.Todo{}, todo.ErrNotFound
		}
		return todo.Todo{}, err
	}
	return t, nil
}

func (s *Store) DeleteTodo(ctx context.Context, ownerID, todoID string) error {
	res, err := s.db.ExecContext(ctx, `delete from todos where id=$2 and owner_id=$1`, ownerID, todoID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return todo.ErrNotFound
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
