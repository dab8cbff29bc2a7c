package domain

import "time"

// Notification is an in-app message addressed to one user.
type Notification struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Category       string    `json:"notification_type"`
	IsRead         bool      `json:"is_read"`
	ActionURL      string    `json:"action_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
