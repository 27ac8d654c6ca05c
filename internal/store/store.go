// Package store persists user accounts and their permission grants.
package store

import (
	"time"
)

// User is an account that can authenticate against the daemon.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never returned in JSON
	Role         string    `json:"role"` // "owner", "admin" or "user"
	CanCreate    bool      `json:"can_create_instance"`
	CanDelete    bool      `json:"can_delete_instance"`
	ViewAll      bool      `json:"can_view_all_instances"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type Store interface {
	// User operations
	CreateUser(u *User) error
	GetUser(id string) (*User, error)
	GetUserByUsername(username string) (*User, error)
	ListUsers() ([]*User, error)
	DeleteUser(id string) error

	// Per-instance view grants
	GrantInstanceView(userID, instanceID string) error
	RevokeInstanceView(userID, instanceID string) error
	ListViewableInstances(userID string) ([]string, error)
	// RevokeInstanceViewAll drops every grant for an instance, called after
	// the instance itself is gone.
	RevokeInstanceViewAll(instanceID string) error

	Close() error
}
