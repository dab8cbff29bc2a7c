package domain

import "time"

// User mirrors the identity supplied by the upstream session provider.
type User struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ChatID    int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
