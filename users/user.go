// Package users provides a small user management subsystem backed by
// sqlite, exposed over a REST API. It demonstrates running a conventional
// HTTP resource alongside the protocol endpoints on the same server.
package users

import (
	"errors"
	"time"
)

// ErrUserNotFound is returned when no user exists with the requested id.
var ErrUserNotFound = errors.New("user not found")

// User is a stored user record.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateUser carries the client-settable fields for creating a user.
type CreateUser struct {
	Name string `json:"name"`
}

// UpdateUser carries the client-settable fields for updating a user.
type UpdateUser struct {
	Name string `json:"name"`
}
