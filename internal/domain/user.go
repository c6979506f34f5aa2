package domain

import "time"

// User is the account model for both requesters and staff. Staff is a flag,
// not a separate principal type: staff see and manage every ticket.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	IsStaff      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
