package model

import "time"

// User owns exactly one pomodoro timer and its session history.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public returns a copy safe to hand to clients.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
