// Package notify queues and delivers in-app notifications.
package notify

import (
	"context"
	"sync"
)

// Categories used by the client to group notifications.
const (
	CategoryWallet  = "wallet"
	CategoryVIP     = "vip"
	CategoryReward  = "reward"
	CategoryGift    = "gift"
	CategoryAgency  = "agency"
	CategoryGame    = "game"
	CategoryPayout  = "withdrawal"
	CategoryWelcome = "welcome"
)

// Event asks for a templated notification to be delivered to one user.
// Key selects the message template; Params fill its placeholders.
type Event struct {
	UserID        string            `json:"user_id"`
	Key           string            `json:"key"`
	Params        map[string]string `json:"params,omitempty"`
	Category      string            `json:"category"`
	ActionURL     string            `json:"action_url,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// Notifier hands events to the delivery pipeline. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Recorder keeps events in memory; tests use it to assert on side effects.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Keys lists the template keys recorded for userID, in order.
func (r *Recorder) Keys(userID string) []string {
	var keys []string
	for _, e := range r.Events() {
		if e.UserID == userID {
			keys = append(keys, e.Key)
		}
	}
	return keys
}
