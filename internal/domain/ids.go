package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a short prefixed identifier such as "txn_3f9a0c1b2d4e".
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + raw[:12]
}

// DayKey is the UTC calendar date used to shard per-day records.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
