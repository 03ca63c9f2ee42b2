package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/karlseguin/ccache/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  createdAt DATETIME DEFAULT CURRENT_TIMESTAMP NOT NULL,
  updatedAt DATETIME DEFAULT CURRENT_TIMESTAMP NOT NULL
)`

const (
	findByIDCacheTTL  = 30 * time.Second
	findByIDCacheSize = 1024
)

// Repo provides CRUD access to the users table. Reads by id go through an
// in-memory cache with a short TTL; writes invalidate the cached entry.
//
// Instances should be created using NewRepo.
type Repo struct {
	db     *sql.DB
	cache  *ccache.Cache[User]
	tracer trace.Tracer
}

// NewRepo opens the sqlite database at the given path, creating the users
// table if needed. Use ":memory:" for an ephemeral database.
func NewRepo(path string) (*Repo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer; constraining the pool avoids
	// SQLITE_BUSY errors under concurrent writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createUsersTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate users table: %w", err)
	}

	return &Repo{
		db:     db,
		cache:  ccache.New(ccache.Configure[User]().MaxSize(findByIDCacheSize)),
		tracer: otel.Tracer("github.com/jpowersdev/gomcp/users"),
	}, nil
}

// Close releases the database handle and stops the cache.
func (r *Repo) Close() error {
	r.cache.Stop()
	return r.db.Close()
}

// Create inserts a new user and returns the stored record.
func (r *Repo) Create(ctx context.Context, params CreateUser) (User, error) {
	ctx, span := r.tracer.Start(ctx, "Users.create", trace.WithAttributes(
		attribute.String("user.name", params.Name),
	))
	defer span.End()

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, createdAt, updatedAt) VALUES (?, ?, ?)`,
		params.Name, now, now)
	if err != nil {
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("failed to read inserted id: %w", err)
	}

	return User{
		ID:        id,
		Name:      params.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// FindByID returns the user with the given id, serving repeated lookups
// from the cache. Returns ErrUserNotFound if no such user exists.
func (r *Repo) FindByID(ctx context.Context, id int64) (User, error) {
	ctx, span := r.tracer.Start(ctx, "Users.findById", trace.WithAttributes(
		attribute.Int64("user.id", id),
	))
	defer span.End()

	item, err := r.cache.Fetch(cacheKey(id), findByIDCacheTTL, func() (User, error) {
		return r.findByID(ctx, id)
	})
	if err != nil {
		return User{}, err
	}
	return item.Value(), nil
}

func (r *Repo) findByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, createdAt, updatedAt FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// Update changes the user's mutable fields and returns the stored record.
// Returns ErrUserNotFound if no such user exists.
func (r *Repo) Update(ctx context.Context, id int64, params UpdateUser) (User, error) {
	ctx, span := r.tracer.Start(ctx, "Users.update", trace.WithAttributes(
		attribute.Int64("user.id", id),
	))
	defer span.End()

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, updatedAt = ? WHERE id = ?`,
		params.Name, now, id)
	if err != nil {
		return User{}, fmt.Errorf("failed to update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return User{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return User{}, ErrUserNotFound
	}

	r.cache.Delete(cacheKey(id))

	return r.findByID(ctx, id)
}

// Delete removes the user with the given id. Deleting a missing user is a
// no-op.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "Users.delete", trace.WithAttributes(
		attribute.Int64("user.id", id),
	))
	defer span.End()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	r.cache.Delete(cacheKey(id))
	return nil
}

func cacheKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
