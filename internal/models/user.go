package models

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type User struct {
	ID           string
	Name         string
	Surname      string
	Email        string
	PasswordHash []byte
	Phone        *string
	Role         UserRole
	IsActive     bool
	AccessB1     bool
	AccessB2     bool
	DeviceLimit  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is one authenticated device binding. The token is an opaque random
// value, never a signed credential; validity is a plain store lookup.
type Session struct {
	Token             string
	UserID            string
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
	CreatedAt         time.Time
	LastActivity      time.Time
}
