package entity

import "time"

type User struct {
	ID            int64
	Email         string
	Name          string
	PasswordHash  string
	Role          Role
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (u User) Summary() *UserSummary {
	return &UserSummary{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
	}
}

// UserSummary is the identity returned after a completed registration.
type UserSummary struct {
	ID            int64
	Email         string
	Name          string
	Role          Role
	EmailVerified bool
}
