package models

import "time"

// User is a profile record owned by the user-management flow. The auth core
// reads it only through the users repository.
type User struct {
	ID           string
	UserName     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsDeleted    bool
	DeletedAt    *time.Time
}
