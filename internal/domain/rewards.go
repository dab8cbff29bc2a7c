package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivitySession accumulates presence minutes for one user on one UTC day.
type ActivitySession struct {
	SessionID          string    `json:"session_id"`
	UserID             string    `json:"user_id"`
	Date               string    `json:"date"`
	StartedAt          time.Time `json:"started_at"`
	LastActiveAt       time.Time `json:"last_active_at"`
	TotalActiveMinutes int       `json:"total_active_minutes"`
	RewardsClaimed     int       `json:"rewards_claimed"`
}

// MessagingReward is one paid chat reward.
type MessagingReward struct {
	RewardID  string          `json:"reward_id"`
	UserID    string          `json:"user_id"`
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// HostType distinguishes video and audio live sessions.
type HostType string

const (
	HostVideo HostType = "video"
	HostAudio HostType = "audio"
)

// HostSessionStatus is the lifecycle of a host session.
type HostSessionStatus string

const (
	HostSessionActive HostSessionStatus = "active"
	HostSessionEnded  HostSessionStatus = "ended"
)

// HostProfile records when a user first hosted; the welcome period starts there.
type HostProfile struct {
	UserID       string    `json:"user_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// HostSession is a single live hosting session.
type HostSession struct {
	SessionID       string            `json:"session_id"`
	UserID          string            `json:"user_id"`
	HostType        HostType          `json:"host_type"`
	Status          HostSessionStatus `json:"status"`
	StartedAt       time.Time         `json:"started_at"`
	EndedAt         *time.Time        `json:"ended_at,omitempty"`
	DurationMinutes int               `json:"duration_minutes"`
	StarsEarned     decimal.Decimal   `json:"stars_earned"`
	IsWelcome       bool              `json:"is_welcome_period"`
}
